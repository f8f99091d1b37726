package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// ErrNoPriceAvailable is returned when no historical close exists within
// the fallback window.
var ErrNoPriceAvailable = errors.New("pricecache: no historical price available")

// closeLookback is how many calendar days ClosingPrice walks backward when
// no close exists for the exact date. Seven days covers any weekend plus
// an adjacent holiday run.
const closeLookback = 7

// ClosingPrice returns the historical closing price for a symbol on a
// date. If no exact record exists (weekend, holiday), it walks backward
// day by day and returns the first available close.
func (c *Cache) ClosingPrice(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	price, err := c.store.GetDailyClose(ctx, symbol, day)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, err
	}

	for i := 1; i <= closeLookback; i++ {
		price, err = c.store.GetDailyClose(ctx, symbol, day.AddDate(0, 0, -i))
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, err
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s on or before %s",
		ErrNoPriceAvailable, symbol, day.Format("2006-01-02"))
}

// RecordClose stores one historical closing price.
func (c *Cache) RecordClose(ctx context.Context, symbol string, day time.Time, close decimal.Decimal) error {
	return c.store.UpsertDailyClose(ctx, &model.DailyPrice{
		Symbol: symbol,
		Day:    day,
		Close:  close,
	})
}
