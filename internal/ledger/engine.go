package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliotrack/portfolio-engine/internal/metrics"
	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// Engine materializes holdings from the ledger. It owns every write to the
// holdings table; nothing else mutates a holding row.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine creates an accounting engine over the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// SetClock overrides the wall-clock source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Recalculate replays the owner's full ledger and reconciles every touched
// symbol's holding row. Rows are written only when the computed value
// differs from the stored one, so a second call with no new entries is a
// no-op. Returns the number of holdings created, updated, or deleted.
func (e *Engine) Recalculate(ctx context.Context, ownerID string) (int, error) {
	entries, err := e.store.ListLedgerByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list ledger for %s: %w", ownerID, err)
	}

	// Group by symbol; ListLedgerByOwner returns replay order, and
	// per-symbol order is preserved by the grouping.
	bySymbol := make(map[string][]model.LedgerEntry)
	for _, entry := range entries {
		bySymbol[entry.Symbol] = append(bySymbol[entry.Symbol], entry)
	}

	updated := 0
	for symbol, symEntries := range bySymbol {
		changed, err := e.reconcile(ctx, ownerID, symbol, Replay(symEntries))
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}

	if updated > 0 {
		slog.Info("holdings recalculated", "owner", ownerID, "updated", updated)
	}
	return updated, nil
}

// RebuildSymbol replays one (owner, symbol) and reconciles its holding.
// Used after a ledger correction: average cost is path-dependent, so a
// deleted entry cannot be reversed arithmetically — only by replay.
func (e *Engine) RebuildSymbol(ctx context.Context, ownerID, symbol string) error {
	entries, err := e.store.ListLedgerByOwnerSymbol(ctx, ownerID, symbol)
	if err != nil {
		return fmt.Errorf("list ledger for %s/%s: %w", ownerID, symbol, err)
	}

	_, err = e.reconcile(ctx, ownerID, symbol, Replay(entries))
	return err
}

// reconcile writes the computed position into the holdings table:
// upsert when open, delete when closed, nothing when unchanged.
func (e *Engine) reconcile(ctx context.Context, ownerID, symbol string, pos Position) (bool, error) {
	existing, err := e.store.GetHolding(ctx, ownerID, symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if pos.Quantity.IsPositive() {
		if existing != nil &&
			existing.Quantity.Equal(pos.Quantity) &&
			existing.AverageCost.Equal(pos.AverageCost) {
			return false, nil
		}

		h := &model.Holding{
			OwnerID:     ownerID,
			Symbol:      symbol,
			Quantity:    pos.Quantity,
			AverageCost: pos.AverageCost,
			UpdatedAt:   e.now(),
		}
		if err := e.store.UpsertHolding(ctx, h); err != nil {
			return false, fmt.Errorf("upsert holding %s/%s: %w", ownerID, symbol, err)
		}
		metrics.HoldingsRecalculated.Inc()
		slog.Debug("holding reconciled",
			"owner", ownerID, "symbol", symbol,
			"qty", pos.Quantity.String(), "avg_cost", pos.AverageCost.String())
		return true, nil
	}

	// Position closed: the holding row must be absent, not a zero row.
	if existing == nil {
		return false, nil
	}
	if err := e.store.DeleteHolding(ctx, ownerID, symbol); err != nil {
		return false, fmt.Errorf("delete holding %s/%s: %w", ownerID, symbol, err)
	}
	metrics.HoldingsRecalculated.Inc()
	slog.Debug("closed holding removed", "owner", ownerID, "symbol", symbol)
	return true, nil
}
