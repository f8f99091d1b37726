// Package portfolio composes materialized holdings with cached prices into
// a valuation view, and maintains the real-holdings ledger. Unlike the
// sandbox, real trades carry no virtual cash: deposits and balances live
// with the account system, so a trade only appends to the ledger and
// rebuilds the symbol's holding.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/ledger"
	"github.com/foliotrack/portfolio-engine/internal/marketcal"
	"github.com/foliotrack/portfolio-engine/internal/metrics"
	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/pricecache"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// ErrValidation is returned for a malformed trade request.
var ErrValidation = errors.New("portfolio: invalid trade request")

// Service aggregates holdings and prices into valuations.
type Service struct {
	store  store.Store
	prices *pricecache.Cache
	engine *ledger.Engine
	cal    *marketcal.Calendar
	now    func() time.Time
}

// NewService creates a portfolio aggregation service.
func NewService(st store.Store, prices *pricecache.Cache, engine *ledger.Engine, cal *marketcal.Calendar) *Service {
	return &Service{
		store:  st,
		prices: prices,
		engine: engine,
		cal:    cal,
		now:    time.Now,
	}
}

// SetClock overrides the wall-clock source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// HoldingView is one holding valued at the current cached price. A holding
// with no usable price reports zero market value and zero change rather
// than failing the whole valuation.
type HoldingView struct {
	Symbol             string          `json:"symbol"`
	CompanyName        string          `json:"company_name,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	AverageCost        decimal.Decimal `json:"average_cost"`
	CostBasis          decimal.Decimal `json:"cost_basis"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	MarketValue        decimal.Decimal `json:"market_value"`
	GainLoss           decimal.Decimal `json:"gain_loss"`
	GainLossPercent    decimal.Decimal `json:"gain_loss_percent"`
	DailyChange        decimal.Decimal `json:"daily_change"`
	DailyChangePercent decimal.Decimal `json:"daily_change_percent"`
	PriceFresh         bool            `json:"price_fresh"`
}

// Valuation is the aggregate view across all of an owner's holdings.
type Valuation struct {
	OwnerID          string          `json:"owner_id"`
	Holdings         []HoldingView   `json:"holdings"`
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalCostBasis   decimal.Decimal `json:"total_cost_basis"`
	TotalGainLoss    decimal.Decimal `json:"total_gain_loss"`
	GainLossPercent  decimal.Decimal `json:"gain_loss_percent"`

	// DataFreshness is the percentage of holdings (0-100) whose price came
	// from a non-stale cache entry. 100 when there are no holdings.
	DataFreshness decimal.Decimal `json:"data_freshness"`
	MarketOpen    bool            `json:"market_open"`
	AsOf          time.Time       `json:"as_of"`
}

// Valuate builds the valuation view for an owner. Price refresh is
// best-effort: provider failure degrades freshness, it does not fail the
// request.
func (s *Service) Valuate(ctx context.Context, ownerID string) (*Valuation, error) {
	holdings, err := s.store.ListHoldings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	prices, err := s.prices.GetWithRefresh(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	now := s.now()
	v := &Valuation{
		OwnerID:    ownerID,
		Holdings:   make([]HoldingView, 0, len(holdings)),
		MarketOpen: s.cal.IsMarketOpen(now),
		AsOf:       now.UTC(),
	}

	fresh := 0
	for _, h := range holdings {
		view := HoldingView{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			CostBasis:   h.Quantity.Mul(h.AverageCost),
		}

		if p, ok := prices[h.Symbol]; ok && !p.Price.IsZero() {
			view.CompanyName = p.CompanyName
			view.CurrentPrice = p.Price
			view.MarketValue = h.Quantity.Mul(p.Price)
			view.GainLoss = view.MarketValue.Sub(view.CostBasis)
			if view.CostBasis.IsPositive() {
				view.GainLossPercent = view.GainLoss.
					Div(view.CostBasis).Mul(decimal.NewFromInt(100)).Round(2)
			}
			view.DailyChange = p.DailyChange
			view.DailyChangePercent = p.DailyChangePercent
			view.PriceFresh = !s.prices.IsStale(&p, now)
			if view.PriceFresh {
				fresh++
			}
		}

		v.TotalMarketValue = v.TotalMarketValue.Add(view.MarketValue)
		v.TotalCostBasis = v.TotalCostBasis.Add(view.CostBasis)
		v.Holdings = append(v.Holdings, view)
	}

	v.TotalGainLoss = v.TotalMarketValue.Sub(v.TotalCostBasis)
	if v.TotalCostBasis.IsPositive() {
		v.GainLossPercent = v.TotalGainLoss.
			Div(v.TotalCostBasis).Mul(decimal.NewFromInt(100)).Round(2)
	}

	if len(holdings) == 0 {
		v.DataFreshness = decimal.NewFromInt(100)
	} else {
		v.DataFreshness = decimal.NewFromInt(int64(fresh)).
			Div(decimal.NewFromInt(int64(len(holdings)))).
			Mul(decimal.NewFromInt(100)).Round(2)
	}

	return v, nil
}

// SandboxValuation is a sandbox portfolio valued with its cash balance.
type SandboxValuation struct {
	Portfolio model.Portfolio `json:"portfolio"`
	Valuation Valuation       `json:"valuation"`

	// TotalValue = cash + market value of holdings.
	TotalValue      decimal.Decimal `json:"total_value"`
	OverallGainLoss decimal.Decimal `json:"overall_gain_loss"`
	OverallPercent  decimal.Decimal `json:"overall_percent"`
}

// ValuateSandbox values a sandbox portfolio against its initial balance.
func (s *Service) ValuateSandbox(ctx context.Context, portfolioID string) (*SandboxValuation, error) {
	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	v, err := s.Valuate(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	sv := &SandboxValuation{
		Portfolio:  *p,
		Valuation:  *v,
		TotalValue: p.CashBalance.Add(v.TotalMarketValue),
	}
	sv.OverallGainLoss = sv.TotalValue.Sub(p.InitialBalance)
	if p.InitialBalance.IsPositive() {
		sv.OverallPercent = sv.OverallGainLoss.
			Div(p.InitialBalance).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return sv, nil
}

// TradeRequest records one real BUY or SELL. Price and date are required
// here: real trades are entered after the fact, there is nothing to
// resolve live.
type TradeRequest struct {
	Symbol       string          `json:"symbol"`
	Side         model.Side      `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Date         string          `json:"date"`
}

// RecordTrade appends one real trade to the owner's ledger and rebuilds
// the symbol's holding.
func (s *Service) RecordTrade(ctx context.Context, ownerID string, req TradeRequest) (*model.LedgerEntry, error) {
	if req.Symbol == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: owner and symbol are required", ErrValidation)
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side must be BUY or SELL", ErrValidation)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if req.PricePerUnit.IsNegative() {
		return nil, fmt.Errorf("%w: price_per_unit must not be negative", ErrValidation)
	}

	occurredAt, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}

	total := req.TotalAmount
	if total.IsZero() {
		total = req.Quantity.Mul(req.PricePerUnit)
	}

	entry := &model.LedgerEntry{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		TotalAmount:  total,
		OccurredAt:   occurredAt,
		RecordedAt:   s.now().UTC(),
	}
	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}
	if err := s.engine.RebuildSymbol(ctx, ownerID, req.Symbol); err != nil {
		return nil, fmt.Errorf("rebuild holding: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(string(req.Side)).Inc()
	slog.Info("trade recorded",
		"owner", ownerID, "symbol", req.Symbol, "side", req.Side,
		"qty", req.Quantity.String(), "price", req.PricePerUnit.String())
	return entry, nil
}

// DeleteTrade removes one real ledger entry and rebuilds the symbol's
// holding by replay.
func (s *Service) DeleteTrade(ctx context.Context, ownerID, entryID string) error {
	entry, err := s.store.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.OwnerID != ownerID {
		return store.ErrNotFound
	}

	if err := s.store.DeleteLedgerEntry(ctx, entryID); err != nil {
		return err
	}
	if err := s.engine.RebuildSymbol(ctx, ownerID, entry.Symbol); err != nil {
		return fmt.Errorf("rebuild holding: %w", err)
	}

	slog.Info("trade deleted", "owner", ownerID, "entry", entryID, "symbol", entry.Symbol)
	return nil
}

// ListTrades returns the owner's ledger, newest first.
func (s *Service) ListTrades(ctx context.Context, ownerID string) ([]model.LedgerEntry, error) {
	entries, err := s.store.ListLedgerByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Recalculate replays the owner's entire ledger and reconciles holdings.
func (s *Service) Recalculate(ctx context.Context, ownerID string) (int, error) {
	return s.engine.Recalculate(ctx, ownerID)
}
