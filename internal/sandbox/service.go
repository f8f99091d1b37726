// Package sandbox executes paper trades against a virtual cash balance.
// Holdings follow the same weighted-average-cost accounting as real
// holdings, but sandbox trades are additionally editable: an edit is a
// delete followed by a fresh execution, never an in-place update, so the
// derived holding always equals a full replay of the remaining entries.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/ledger"
	"github.com/foliotrack/portfolio-engine/internal/metrics"
	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/pricecache"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

var (
	ErrValidation           = errors.New("sandbox: invalid trade request")
	ErrInsufficientFunds    = errors.New("sandbox: insufficient funds")
	ErrInsufficientQuantity = errors.New("sandbox: insufficient quantity")
	ErrNoSuchPosition       = errors.New("sandbox: no position in symbol")
)

// quantityScale is the rounding scale when a quantity is derived from a
// dollar amount (fractional shares).
const quantityScale = 8

// Service executes sandbox trades. Uses a mutex for serialized trade
// execution (single-instance). For horizontal scaling, replace with
// database-level row locking on the portfolio.
type Service struct {
	store  store.Store
	prices *pricecache.Cache
	engine *ledger.Engine
	mu     sync.Mutex
	now    func() time.Time
}

// NewService creates a sandbox trade service.
func NewService(st store.Store, prices *pricecache.Cache, engine *ledger.Engine) *Service {
	return &Service{
		store:  st,
		prices: prices,
		engine: engine,
		now:    time.Now,
	}
}

// SetClock overrides the wall-clock source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// TradeRequest describes one BUY or SELL. Either Quantity or DollarAmount
// must be positive; Price of zero means "use the current live quote". Date
// is the trade date in YYYY-MM-DD; empty means today.
type TradeRequest struct {
	Symbol       string          `json:"symbol"`
	Side         model.Side      `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	DollarAmount decimal.Decimal `json:"dollar_amount"`
	Price        decimal.Decimal `json:"price"`
	Date         string          `json:"date"`
}

func (r *TradeRequest) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if !r.Side.Valid() {
		return fmt.Errorf("%w: side must be BUY or SELL", ErrValidation)
	}
	if r.Quantity.IsNegative() || r.DollarAmount.IsNegative() || r.Price.IsNegative() {
		return fmt.Errorf("%w: quantity, dollar_amount and price must not be negative", ErrValidation)
	}
	if r.Quantity.IsZero() && r.DollarAmount.IsZero() {
		return fmt.Errorf("%w: either quantity or dollar_amount is required", ErrValidation)
	}
	if r.Date != "" {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// CreatePortfolioRequest is the JSON body for portfolio creation.
type CreatePortfolioRequest struct {
	OwnerID        string          `json:"owner_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// CreatePortfolio opens a new sandbox portfolio funded with the initial
// balance.
func (s *Service) CreatePortfolio(ctx context.Context, req CreatePortfolioRequest) (*model.Portfolio, error) {
	if req.OwnerID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: owner_id and name are required", ErrValidation)
	}
	if !req.InitialBalance.IsPositive() {
		return nil, fmt.Errorf("%w: initial_balance must be positive", ErrValidation)
	}

	p := &model.Portfolio{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		Name:           req.Name,
		Description:    req.Description,
		CashBalance:    req.InitialBalance,
		InitialBalance: req.InitialBalance,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreatePortfolio(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("sandbox portfolio created",
		"id", p.ID, "owner", p.OwnerID, "initial_balance", p.InitialBalance.String())
	return p, nil
}

// UpdatePortfolio changes a portfolio's name, description, or initial
// balance. Changing the initial balance shifts the cash balance by the
// same delta, so realized performance is preserved.
func (s *Service) UpdatePortfolio(ctx context.Context, id string, name, description string, initialBalance decimal.Decimal) (*model.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		p.Name = name
	}
	if description != "" {
		p.Description = description
	}
	if initialBalance.IsPositive() && !initialBalance.Equal(p.InitialBalance) {
		delta := initialBalance.Sub(p.InitialBalance)
		p.CashBalance = p.CashBalance.Add(delta)
		p.InitialBalance = initialBalance
	}

	if err := s.store.UpdatePortfolio(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePortfolio removes a portfolio with its ledger and holdings.
func (s *Service) DeletePortfolio(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.ListLedgerByOwner(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.store.DeleteLedgerEntry(ctx, e.ID); err != nil {
			return err
		}
	}

	holdings, err := s.store.ListHoldings(ctx, id)
	if err != nil {
		return err
	}
	for _, h := range holdings {
		if err := s.store.DeleteHolding(ctx, id, h.Symbol); err != nil {
			return err
		}
	}

	return s.store.DeletePortfolio(ctx, id)
}

// ListPortfolios returns all sandbox portfolios for an owner.
func (s *Service) ListPortfolios(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	return s.store.ListPortfoliosByOwner(ctx, ownerID)
}

// GetPortfolio returns one portfolio by ID.
func (s *Service) GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error) {
	return s.store.GetPortfolio(ctx, id)
}

// ExecuteTrade executes one BUY or SELL against the portfolio's cash
// balance and records the ledger entry.
func (s *Service) ExecuteTrade(ctx context.Context, portfolioID string, req TradeRequest) (*model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeTrade(ctx, portfolioID, req)
}

// executeTrade is the unlocked body of ExecuteTrade; EditTransaction calls
// it while already holding the mutex.
func (s *Service) executeTrade(ctx context.Context, portfolioID string, req TradeRequest) (*model.LedgerEntry, error) {
	if err := req.validate(); err != nil {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, err
	}

	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	price := req.Price
	if price.IsZero() {
		price, err = s.livePrice(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
	}

	qty := req.Quantity
	if qty.IsZero() {
		// Dollar-amount order: buy as many (fractional) shares as the
		// amount covers at the resolved price.
		if price.IsZero() {
			return nil, fmt.Errorf("%w: cannot derive quantity from dollar_amount at price zero", ErrValidation)
		}
		qty = req.DollarAmount.DivRound(price, quantityScale)
	}
	totalCost := qty.Mul(price)

	occurredAt := s.now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		occurredAt, _ = time.Parse("2006-01-02", req.Date)
	}

	switch req.Side {
	case model.SideBuy:
		if p.CashBalance.LessThan(totalCost) {
			metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
			return nil, fmt.Errorf("%w: need %s, have %s",
				ErrInsufficientFunds, totalCost.StringFixed(2), p.CashBalance.StringFixed(2))
		}
		p.CashBalance = p.CashBalance.Sub(totalCost)

	case model.SideSell:
		holding, err := s.store.GetHolding(ctx, portfolioID, req.Symbol)
		if errors.Is(err, store.ErrNotFound) {
			metrics.TradeRejections.WithLabelValues("no_position").Inc()
			return nil, fmt.Errorf("%w: %s", ErrNoSuchPosition, req.Symbol)
		}
		if err != nil {
			return nil, err
		}
		if holding.Quantity.LessThan(qty) {
			metrics.TradeRejections.WithLabelValues("insufficient_quantity").Inc()
			return nil, fmt.Errorf("%w: hold %s, selling %s",
				ErrInsufficientQuantity, holding.Quantity, qty)
		}
		p.CashBalance = p.CashBalance.Add(totalCost)
	}

	entry := &model.LedgerEntry{
		ID:           uuid.New().String(),
		OwnerID:      portfolioID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     qty,
		PricePerUnit: price,
		TotalAmount:  totalCost,
		OccurredAt:   occurredAt,
		RecordedAt:   s.now().UTC(),
	}
	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}
	if err := s.store.UpdatePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("update cash balance: %w", err)
	}
	if err := s.engine.RebuildSymbol(ctx, portfolioID, req.Symbol); err != nil {
		return nil, fmt.Errorf("rebuild holding: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(string(req.Side)).Inc()
	slog.Info("sandbox trade executed",
		"portfolio", portfolioID,
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", qty.String(),
		"price", price.String(),
		"total", totalCost.String(),
		"cash", p.CashBalance.String(),
	)
	return entry, nil
}

// DeleteTransaction removes one ledger entry, reverses its cash effect,
// and rebuilds the symbol's holding by replay.
func (s *Service) DeleteTransaction(ctx context.Context, portfolioID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTransaction(ctx, portfolioID, entryID)
}

func (s *Service) deleteTransaction(ctx context.Context, portfolioID, entryID string) error {
	entry, err := s.store.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.OwnerID != portfolioID {
		return store.ErrNotFound
	}

	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}

	// Reverse the cash effect: a BUY debited cash, so credit it back;
	// a SELL credited cash, so debit it back.
	switch entry.Side {
	case model.SideBuy:
		p.CashBalance = p.CashBalance.Add(entry.TotalAmount)
	case model.SideSell:
		p.CashBalance = p.CashBalance.Sub(entry.TotalAmount)
	}

	if err := s.store.DeleteLedgerEntry(ctx, entryID); err != nil {
		return err
	}
	if err := s.store.UpdatePortfolio(ctx, p); err != nil {
		return fmt.Errorf("update cash balance: %w", err)
	}

	// Average cost is path-dependent; only replay restores it.
	if err := s.engine.RebuildSymbol(ctx, portfolioID, entry.Symbol); err != nil {
		return fmt.Errorf("rebuild holding: %w", err)
	}

	slog.Info("sandbox trade deleted",
		"portfolio", portfolioID, "entry", entryID, "symbol", entry.Symbol)
	return nil
}

// EditTransaction replaces one ledger entry with a new trade. Implemented
// as delete-then-execute under one lock, never as an in-place update.
func (s *Service) EditTransaction(ctx context.Context, portfolioID, entryID string, req TradeRequest) (*model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := req.validate(); err != nil {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, err
	}
	if err := s.deleteTransaction(ctx, portfolioID, entryID); err != nil {
		return nil, err
	}
	return s.executeTrade(ctx, portfolioID, req)
}

// ListTransactions returns the portfolio's ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, portfolioID string) ([]model.LedgerEntry, error) {
	entries, err := s.store.ListLedgerByOwner(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	// Store order is oldest-first replay order; display wants newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// livePrice resolves the current quote for a symbol through the price
// cache.
func (s *Service) livePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := s.prices.GetWithRefresh(ctx, []string{symbol})
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[symbol]
	if !ok || p.Price.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: no price available for %s", ErrValidation, symbol)
	}
	return p.Price, nil
}
