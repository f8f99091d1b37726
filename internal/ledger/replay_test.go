package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(n int) time.Time {
	return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC)
}

func entry(side model.Side, qty, price, total string, occurred time.Time, recorded time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		Side:         side,
		Symbol:       "AAPL",
		Quantity:     d(qty),
		PricePerUnit: d(price),
		TotalAmount:  d(total),
		OccurredAt:   occurred,
		RecordedAt:   recorded,
	}
}

func TestReplay_WeightedAverage(t *testing.T) {
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "10", "100", "1000", day(1), day(1)),
		entry(model.SideBuy, "10", "200", "2000", day(2), day(2)),
	}

	pos := Replay(entries)

	if !pos.Quantity.Equal(d("20")) {
		t.Errorf("quantity = %s, want 20", pos.Quantity)
	}
	if !pos.AverageCost.Equal(d("150")) {
		t.Errorf("average cost = %s, want 150", pos.AverageCost)
	}
	if !pos.TotalCost.Equal(d("3000")) {
		t.Errorf("total cost = %s, want 3000", pos.TotalCost)
	}
}

func TestReplay_SellKeepsAverage(t *testing.T) {
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "10", "100", "1000", day(1), day(1)),
		entry(model.SideBuy, "10", "200", "2000", day(2), day(2)),
		entry(model.SideSell, "5", "300", "1500", day(3), day(3)),
	}

	pos := Replay(entries)

	if !pos.Quantity.Equal(d("15")) {
		t.Errorf("quantity = %s, want 15", pos.Quantity)
	}
	// Selling at 300 realizes a gain; the remaining basis stays at 150.
	if !pos.AverageCost.Equal(d("150")) {
		t.Errorf("average cost = %s, want 150", pos.AverageCost)
	}
	if !pos.TotalCost.Equal(d("2250")) {
		t.Errorf("total cost = %s, want 2250", pos.TotalCost)
	}
}

func TestReplay_FullClosureResetsBasis(t *testing.T) {
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "10", "100", "1000", day(1), day(1)),
		entry(model.SideSell, "10", "120", "1200", day(2), day(2)),
		entry(model.SideBuy, "5", "50", "250", day(3), day(3)),
	}

	pos := Replay(entries)

	if !pos.Quantity.Equal(d("5")) {
		t.Errorf("quantity = %s, want 5", pos.Quantity)
	}
	// The closed position's basis must not bleed into the new one.
	if !pos.AverageCost.Equal(d("50")) {
		t.Errorf("average cost = %s, want 50", pos.AverageCost)
	}
}

func TestReplay_LegacyRowsWithoutTotal(t *testing.T) {
	// Older rows carry quantity and price but a zero total; cost falls
	// back to quantity * price.
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "4", "25.50", "0", day(1), day(1)),
		entry(model.SideBuy, "6", "30", "0", day(2), day(2)),
	}

	pos := Replay(entries)

	if !pos.Quantity.Equal(d("10")) {
		t.Errorf("quantity = %s, want 10", pos.Quantity)
	}
	if !pos.TotalCost.Equal(d("282")) {
		t.Errorf("total cost = %s, want 282", pos.TotalCost)
	}
	if !pos.AverageCost.Equal(d("28.2")) {
		t.Errorf("average cost = %s, want 28.2", pos.AverageCost)
	}
}

func TestReplay_FractionalSharesRounding(t *testing.T) {
	// $500 at $157.23/share bought as a dollar amount.
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "3.18005470", "157.23", "500", day(1), day(1)),
	}

	pos := Replay(entries)

	// 500 / 3.18005470 = 157.2300... rounded to 4 places.
	if !pos.AverageCost.Equal(d("157.2300")) {
		t.Errorf("average cost = %s, want 157.2300", pos.AverageCost)
	}
}

func TestReplay_OversellClampsToZero(t *testing.T) {
	entries := []model.LedgerEntry{
		entry(model.SideBuy, "5", "100", "500", day(1), day(1)),
		entry(model.SideSell, "8", "100", "800", day(2), day(2)),
	}

	pos := Replay(entries)

	if !pos.Quantity.IsZero() || !pos.AverageCost.IsZero() || !pos.TotalCost.IsZero() {
		t.Errorf("position = %+v, want all zero", pos)
	}
}

func TestReplay_Empty(t *testing.T) {
	pos := Replay(nil)
	if !pos.Quantity.IsZero() || !pos.AverageCost.IsZero() {
		t.Errorf("position = %+v, want zero", pos)
	}
}

func TestSortReplayOrder_TiesKeepInsertionOrder(t *testing.T) {
	// Two trades on the same date: the one recorded first replays first.
	first := entry(model.SideBuy, "1", "10", "10", day(5), day(5).Add(1*time.Hour))
	second := entry(model.SideSell, "1", "12", "12", day(5), day(5).Add(2*time.Hour))
	earlier := entry(model.SideBuy, "1", "8", "8", day(4), day(5).Add(3*time.Hour))

	entries := []model.LedgerEntry{second, first, earlier}
	SortReplayOrder(entries)

	if !entries[0].OccurredAt.Equal(day(4)) {
		t.Fatalf("entries[0] occurred %s, want day 4", entries[0].OccurredAt)
	}
	if entries[1].Side != model.SideBuy || entries[2].Side != model.SideSell {
		t.Errorf("tie order = %s, %s; want BUY then SELL", entries[1].Side, entries[2].Side)
	}
}
