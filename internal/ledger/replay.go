// Package ledger derives holdings from the ordered history of trade
// entries using weighted-average-cost accounting. All purchased units pool
// into one average price; a SELL realizes gains without touching the
// average, and a SELL that fully closes the position resets the basis so
// the next BUY starts fresh.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// avgCostScale is the rounding scale for average cost.
const avgCostScale = 4

// Position is the result of replaying one symbol's entries.
type Position struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	TotalCost   decimal.Decimal
}

// Replay applies the weighted-average-cost algorithm to entries in
// chronological order and returns the resulting position. Entries must
// already be sorted in replay order (occurred_at, then insertion order).
//
// A SELL for more than the held quantity drives the running quantity
// negative transiently; the full-closure reset clamps the final state to
// zero, so a negative position is never produced. Callers are expected to
// reject such a SELL before it reaches the ledger.
func Replay(entries []model.LedgerEntry) Position {
	var qty, totalCost, avgCost decimal.Decimal

	for _, e := range entries {
		switch e.Side {
		case model.SideBuy:
			cost := e.TotalAmount
			if cost.IsZero() {
				// Legacy rows without a recorded total.
				cost = e.Quantity.Mul(e.PricePerUnit)
			}
			totalCost = totalCost.Add(cost)
			qty = qty.Add(e.Quantity)
			if qty.IsPositive() {
				avgCost = totalCost.DivRound(qty, avgCostScale)
			}

		case model.SideSell:
			// Average cost is a weighted mean of remaining BUY cost;
			// realizing gains does not move it.
			costRemoved := e.Quantity.Mul(avgCost)
			totalCost = totalCost.Sub(costRemoved)
			qty = qty.Sub(e.Quantity)
			if !qty.IsPositive() {
				// Fully closed: reset the basis.
				qty = decimal.Zero
				totalCost = decimal.Zero
				avgCost = decimal.Zero
			}
		}
	}

	return Position{Quantity: qty, AverageCost: avgCost, TotalCost: totalCost}
}

// SortReplayOrder stably orders entries by trade date, breaking ties by
// insertion time. Stores return entries already ordered; this is the
// in-memory equivalent for callers holding an unsorted slice.
func SortReplayOrder(entries []model.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
}
