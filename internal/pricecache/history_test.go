package pricecache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClosingPrice_ExactDate(t *testing.T) {
	c, _ := newTestCache(t, &fakeProvider{})
	ctx := context.Background()

	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	if err := c.RecordClose(ctx, "AAPL", day, d("181.50")); err != nil {
		t.Fatalf("record: %v", err)
	}

	price, err := c.ClosingPrice(ctx, "AAPL", day)
	if err != nil {
		t.Fatalf("closing price: %v", err)
	}
	if !price.Equal(d("181.50")) {
		t.Errorf("price = %s, want 181.50", price)
	}
}

func TestClosingPrice_WeekendFallsBackToFriday(t *testing.T) {
	c, _ := newTestCache(t, &fakeProvider{})
	ctx := context.Background()

	friday := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	if err := c.RecordClose(ctx, "AAPL", friday, d("181.50")); err != nil {
		t.Fatalf("record: %v", err)
	}

	sunday := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	price, err := c.ClosingPrice(ctx, "AAPL", sunday)
	if err != nil {
		t.Fatalf("closing price: %v", err)
	}
	if !price.Equal(d("181.50")) {
		t.Errorf("price = %s, want Friday's close", price)
	}
}

func TestClosingPrice_ExhaustedWindow(t *testing.T) {
	c, _ := newTestCache(t, &fakeProvider{})
	ctx := context.Background()

	// A close 8 days back is outside the 7-day fallback window.
	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	if err := c.RecordClose(ctx, "AAPL", day.AddDate(0, 0, -8), d("170")); err != nil {
		t.Fatalf("record: %v", err)
	}

	_, err := c.ClosingPrice(ctx, "AAPL", day)
	if !errors.Is(err, ErrNoPriceAvailable) {
		t.Errorf("err = %v, want ErrNoPriceAvailable", err)
	}
}

func TestClosingPrice_EdgeOfWindow(t *testing.T) {
	c, _ := newTestCache(t, &fakeProvider{})
	ctx := context.Background()

	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	if err := c.RecordClose(ctx, "AAPL", day.AddDate(0, 0, -7), d("175")); err != nil {
		t.Fatalf("record: %v", err)
	}

	price, err := c.ClosingPrice(ctx, "AAPL", day)
	if err != nil {
		t.Fatalf("closing price: %v", err)
	}
	if !price.Equal(d("175")) {
		t.Errorf("price = %s, want 175 from 7 days back", price)
	}
}
