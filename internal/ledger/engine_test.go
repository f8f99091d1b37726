package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

func seedEntry(t *testing.T, st *store.MemoryStore, symbol string, side model.Side, qty, price, total string, dayN int) {
	t.Helper()
	e := entry(side, qty, price, total, day(dayN), day(dayN))
	e.ID = uuid.New().String()
	e.OwnerID = "user-1"
	e.Symbol = symbol
	if err := st.InsertLedgerEntry(context.Background(), &e); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestRecalculate_MaterializesHoldings(t *testing.T) {
	st := store.NewMemoryStore()
	eng := NewEngine(st)
	ctx := context.Background()

	seedEntry(t, st, "AAPL", model.SideBuy, "10", "100", "1000", 1)
	seedEntry(t, st, "AAPL", model.SideBuy, "10", "200", "2000", 2)
	seedEntry(t, st, "MSFT", model.SideBuy, "5", "300", "1500", 1)

	updated, err := eng.Recalculate(ctx, "user-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	h, err := st.GetHolding(ctx, "user-1", "AAPL")
	if err != nil {
		t.Fatalf("get AAPL holding: %v", err)
	}
	if !h.Quantity.Equal(d("20")) || !h.AverageCost.Equal(d("150")) {
		t.Errorf("AAPL holding = qty %s avg %s, want 20/150", h.Quantity, h.AverageCost)
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	st := store.NewMemoryStore()
	eng := NewEngine(st)
	ctx := context.Background()

	seedEntry(t, st, "AAPL", model.SideBuy, "10", "100", "1000", 1)

	if _, err := eng.Recalculate(ctx, "user-1"); err != nil {
		t.Fatalf("first recalculate: %v", err)
	}
	writes := st.HoldingWrites

	// No ledger changes: the second pass must not touch the holdings table.
	updated, err := eng.Recalculate(ctx, "user-1")
	if err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated = %d, want 0", updated)
	}
	if st.HoldingWrites != writes {
		t.Errorf("holding writes grew from %d to %d on a no-op pass", writes, st.HoldingWrites)
	}
}

func TestRecalculate_RemovesClosedHolding(t *testing.T) {
	st := store.NewMemoryStore()
	eng := NewEngine(st)
	ctx := context.Background()

	seedEntry(t, st, "AAPL", model.SideBuy, "10", "100", "1000", 1)
	if _, err := eng.Recalculate(ctx, "user-1"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	seedEntry(t, st, "AAPL", model.SideSell, "10", "120", "1200", 2)
	if _, err := eng.Recalculate(ctx, "user-1"); err != nil {
		t.Fatalf("recalculate after close: %v", err)
	}

	if _, err := st.GetHolding(ctx, "user-1", "AAPL"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("closed holding still present, err = %v", err)
	}
}

func TestRebuildSymbol_AfterDeletion(t *testing.T) {
	st := store.NewMemoryStore()
	eng := NewEngine(st)
	ctx := context.Background()

	e1 := entry(model.SideBuy, "10", "100", "1000", day(1), day(1))
	e1.ID = uuid.New().String()
	e1.OwnerID = "user-1"
	e2 := entry(model.SideBuy, "10", "200", "2000", day(2), day(2))
	e2.ID = uuid.New().String()
	e2.OwnerID = "user-1"
	for _, e := range []*model.LedgerEntry{&e1, &e2} {
		if err := st.InsertLedgerEntry(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := eng.RebuildSymbol(ctx, "user-1", "AAPL"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// Delete the second buy; average must drop back to the first buy's price.
	if err := st.DeleteLedgerEntry(ctx, e2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := eng.RebuildSymbol(ctx, "user-1", "AAPL"); err != nil {
		t.Fatalf("rebuild after delete: %v", err)
	}

	h, err := st.GetHolding(ctx, "user-1", "AAPL")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if !h.Quantity.Equal(d("10")) || !h.AverageCost.Equal(d("100")) {
		t.Errorf("holding = qty %s avg %s, want 10/100", h.Quantity, h.AverageCost)
	}
}

func TestRebuildSymbol_EmptyLedgerClearsHolding(t *testing.T) {
	st := store.NewMemoryStore()
	eng := NewEngine(st)
	ctx := context.Background()

	e := entry(model.SideBuy, "3", "50", "150", day(1), day(1))
	e.ID = uuid.New().String()
	e.OwnerID = "user-1"
	if err := st.InsertLedgerEntry(ctx, &e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := eng.RebuildSymbol(ctx, "user-1", "AAPL"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if err := st.DeleteLedgerEntry(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := eng.RebuildSymbol(ctx, "user-1", "AAPL"); err != nil {
		t.Fatalf("rebuild after delete: %v", err)
	}

	if _, err := st.GetHolding(ctx, "user-1", "AAPL"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("holding should be gone, err = %v", err)
	}
}
