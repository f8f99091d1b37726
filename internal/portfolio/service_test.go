package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/ledger"
	"github.com/foliotrack/portfolio-engine/internal/marketcal"
	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/pricecache"
	"github.com/foliotrack/portfolio-engine/internal/quote"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Tuesday 2026-08-25 12:00 ET, market open.
var openNow = time.Date(2026, 8, 25, 12, 0, 0, 0, nyLoc())

func nyLoc() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

type testEnv struct {
	store *store.MemoryStore
	svc   *Service
	ctx   context.Context
}

func newTestEnv(t *testing.T, quotes map[string]string) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	cal := marketcal.NewNYSE()

	provider := quote.ProviderFunc(func(_ context.Context, symbols []string) (map[string]model.Quote, error) {
		if quotes == nil {
			return nil, quote.ErrProviderUnavailable
		}
		result := make(map[string]model.Quote)
		for _, sym := range symbols {
			if price, ok := quotes[sym]; ok {
				result[sym] = model.Quote{
					Symbol:      sym,
					Price:       d(price),
					CompanyName: sym + " Inc.",
				}
			}
		}
		return result, nil
	})

	cache := pricecache.New(st, provider, cal, nil)
	cache.SetClock(func() time.Time { return openNow })

	eng := ledger.NewEngine(st)
	svc := NewService(st, cache, eng, cal)
	svc.SetClock(func() time.Time { return openNow })

	return &testEnv{store: st, svc: svc, ctx: context.Background()}
}

func (e *testEnv) record(t *testing.T, symbol, side, qty, price string) *model.LedgerEntry {
	t.Helper()
	entry, err := e.svc.RecordTrade(e.ctx, "user-1", TradeRequest{
		Symbol:       symbol,
		Side:         model.Side(side),
		Quantity:     d(qty),
		PricePerUnit: d(price),
		Date:         "2026-08-20",
	})
	if err != nil {
		t.Fatalf("record %s %s %s@%s: %v", side, symbol, qty, price, err)
	}
	return entry
}

func TestValuate_ComposesHoldingsAndPrices(t *testing.T) {
	env := newTestEnv(t, map[string]string{"AAPL": "180", "MSFT": "400"})

	env.record(t, "AAPL", "BUY", "10", "150")
	env.record(t, "MSFT", "BUY", "5", "350")

	v, err := env.svc.Valuate(env.ctx, "user-1")
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}

	if len(v.Holdings) != 2 {
		t.Fatalf("holdings = %d, want 2", len(v.Holdings))
	}
	// MemoryStore lists holdings sorted by symbol.
	aapl := v.Holdings[0]
	if !aapl.MarketValue.Equal(d("1800")) {
		t.Errorf("AAPL market value = %s, want 1800", aapl.MarketValue)
	}
	if !aapl.GainLoss.Equal(d("300")) {
		t.Errorf("AAPL gain = %s, want 300", aapl.GainLoss)
	}
	if !aapl.GainLossPercent.Equal(d("20")) {
		t.Errorf("AAPL gain%% = %s, want 20", aapl.GainLossPercent)
	}
	if !aapl.PriceFresh {
		t.Error("AAPL price should be fresh after refresh")
	}

	if !v.TotalMarketValue.Equal(d("3800")) {
		t.Errorf("total market value = %s, want 3800", v.TotalMarketValue)
	}
	if !v.TotalCostBasis.Equal(d("3250")) {
		t.Errorf("total cost basis = %s, want 3250", v.TotalCostBasis)
	}
	if !v.TotalGainLoss.Equal(d("550")) {
		t.Errorf("total gain = %s, want 550", v.TotalGainLoss)
	}
	if !v.DataFreshness.Equal(d("100")) {
		t.Errorf("freshness = %s, want 100", v.DataFreshness)
	}
	if !v.MarketOpen {
		t.Error("market should be open at Tuesday noon")
	}
}

func TestValuate_MissingPriceIsNotAnError(t *testing.T) {
	// Provider knows AAPL but not the delisted symbol.
	env := newTestEnv(t, map[string]string{"AAPL": "180"})

	env.record(t, "AAPL", "BUY", "10", "150")
	env.record(t, "GONE", "BUY", "10", "20")

	v, err := env.svc.Valuate(env.ctx, "user-1")
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}

	var gone HoldingView
	for _, h := range v.Holdings {
		if h.Symbol == "GONE" {
			gone = h
		}
	}
	if !gone.MarketValue.IsZero() || !gone.GainLoss.IsZero() {
		t.Errorf("unpriced holding = value %s gain %s, want zeros", gone.MarketValue, gone.GainLoss)
	}
	if gone.PriceFresh {
		t.Error("unpriced holding must not count as fresh")
	}

	// One of two holdings priced: freshness 50.
	if !v.DataFreshness.Equal(d("50")) {
		t.Errorf("freshness = %s, want 50", v.DataFreshness)
	}
	// Only AAPL contributes to the total.
	if !v.TotalMarketValue.Equal(d("1800")) {
		t.Errorf("total market value = %s, want 1800", v.TotalMarketValue)
	}
}

func TestValuate_ProviderDownServesZeroFreshness(t *testing.T) {
	env := newTestEnv(t, nil) // provider always fails

	env.record(t, "AAPL", "BUY", "10", "150")

	v, err := env.svc.Valuate(env.ctx, "user-1")
	if err != nil {
		t.Fatalf("valuate should degrade, not fail: %v", err)
	}
	if !v.DataFreshness.IsZero() {
		t.Errorf("freshness = %s, want 0 with provider down", v.DataFreshness)
	}
}

func TestValuate_EmptyPortfolio(t *testing.T) {
	env := newTestEnv(t, nil)

	v, err := env.svc.Valuate(env.ctx, "user-1")
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}
	if len(v.Holdings) != 0 {
		t.Errorf("holdings = %d, want 0", len(v.Holdings))
	}
	if !v.DataFreshness.Equal(d("100")) {
		t.Errorf("freshness = %s, want 100 for empty portfolio", v.DataFreshness)
	}
}

func TestRecordTrade_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name string
		req  TradeRequest
	}{
		{"missing symbol", TradeRequest{Side: model.SideBuy, Quantity: d("1"), PricePerUnit: d("1"), Date: "2026-08-20"}},
		{"bad side", TradeRequest{Symbol: "AAPL", Side: "SHORT", Quantity: d("1"), PricePerUnit: d("1"), Date: "2026-08-20"}},
		{"zero quantity", TradeRequest{Symbol: "AAPL", Side: model.SideBuy, PricePerUnit: d("1"), Date: "2026-08-20"}},
		{"missing date", TradeRequest{Symbol: "AAPL", Side: model.SideBuy, Quantity: d("1"), PricePerUnit: d("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.RecordTrade(env.ctx, "user-1", tc.req); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDeleteTrade_RebuildsHolding(t *testing.T) {
	env := newTestEnv(t, nil)

	env.record(t, "AAPL", "BUY", "10", "100")
	second := env.record(t, "AAPL", "BUY", "10", "200")

	if err := env.svc.DeleteTrade(env.ctx, "user-1", second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	h, err := env.store.GetHolding(env.ctx, "user-1", "AAPL")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if !h.Quantity.Equal(d("10")) || !h.AverageCost.Equal(d("100")) {
		t.Errorf("holding = qty %s avg %s, want 10/100", h.Quantity, h.AverageCost)
	}
}

func TestDeleteTrade_WrongOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	entry := env.record(t, "AAPL", "BUY", "1", "100")

	if err := env.svc.DeleteTrade(env.ctx, "someone-else", entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestValuateSandbox_TotalsIncludeCash(t *testing.T) {
	env := newTestEnv(t, map[string]string{"AAPL": "120"})

	p := &model.Portfolio{
		ID:             "pf-1",
		OwnerID:        "user-1",
		Name:           "Paper",
		CashBalance:    d("9000"),
		InitialBalance: d("10000"),
		CreatedAt:      openNow.UTC(),
	}
	if err := env.store.CreatePortfolio(env.ctx, p); err != nil {
		t.Fatalf("create portfolio: %v", err)
	}

	// 10 AAPL @ 100 held by the sandbox portfolio.
	entry := &model.LedgerEntry{
		ID: "e-1", OwnerID: "pf-1", Symbol: "AAPL", Side: model.SideBuy,
		Quantity: d("10"), PricePerUnit: d("100"), TotalAmount: d("1000"),
		OccurredAt: openNow.UTC(), RecordedAt: openNow.UTC(),
	}
	if err := env.store.InsertLedgerEntry(env.ctx, entry); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	if _, err := env.svc.Recalculate(env.ctx, "pf-1"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	sv, err := env.svc.ValuateSandbox(env.ctx, "pf-1")
	if err != nil {
		t.Fatalf("valuate sandbox: %v", err)
	}

	// 9000 cash + 10 * 120 market value.
	if !sv.TotalValue.Equal(d("10200")) {
		t.Errorf("total value = %s, want 10200", sv.TotalValue)
	}
	if !sv.OverallGainLoss.Equal(d("200")) {
		t.Errorf("overall gain = %s, want 200", sv.OverallGainLoss)
	}
	if !sv.OverallPercent.Equal(d("2")) {
		t.Errorf("overall %% = %s, want 2", sv.OverallPercent)
	}
}
