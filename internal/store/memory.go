package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	ledger     []model.LedgerEntry
	holdings   map[string]*model.Holding // keyed by ownerID + "\x00" + symbol
	prices     map[string]*model.CachedPrice
	closes     map[string]decimal.Decimal // keyed by symbol + "\x00" + "2006-01-02"
	portfolios map[string]*model.Portfolio

	// HoldingWrites counts upserts + deletes; tests use it to assert
	// recalculation idempotence.
	HoldingWrites int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings:   make(map[string]*model.Holding),
		prices:     make(map[string]*model.CachedPrice),
		closes:     make(map[string]decimal.Decimal),
		portfolios: make(map[string]*model.Portfolio),
	}
}

func holdingKey(ownerID, symbol string) string { return ownerID + "\x00" + symbol }
func closeKey(symbol string, day time.Time) string {
	return symbol + "\x00" + day.Format("2006-01-02")
}

// --- Ledger ---

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntry(_ context.Context, id string) (*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ledger {
		if e.ID == id {
			copy := e
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeleteLedgerEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.ledger {
		if e.ID == id {
			s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListLedgerByOwner(_ context.Context, ownerID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.OwnerID == ownerID {
			result = append(result, e)
		}
	}
	sortReplayOrder(result)
	return result, nil
}

func (s *MemoryStore) ListLedgerByOwnerSymbol(_ context.Context, ownerID, symbol string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.OwnerID == ownerID && e.Symbol == symbol {
			result = append(result, e)
		}
	}
	sortReplayOrder(result)
	return result, nil
}

// sortReplayOrder orders entries by trade date, then insertion time.
// The slice is built in insertion order, so the stable sort keeps ties
// in the order they were appended.
func sortReplayOrder(entries []model.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
}

// --- Holdings ---

func (s *MemoryStore) GetHolding(_ context.Context, ownerID, symbol string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[holdingKey(ownerID, symbol)]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *h
	return &copy, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, ownerID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Holding
	for _, h := range s.holdings {
		if h.OwnerID == ownerID {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

func (s *MemoryStore) UpsertHolding(_ context.Context, h *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *h
	s.holdings[holdingKey(h.OwnerID, h.Symbol)] = &copy
	s.HoldingWrites++
	return nil
}

func (s *MemoryStore) DeleteHolding(_ context.Context, ownerID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := holdingKey(ownerID, symbol)
	if _, ok := s.holdings[key]; !ok {
		return ErrNotFound
	}
	delete(s.holdings, key)
	s.HoldingWrites++
	return nil
}

// --- Price cache ---

func (s *MemoryStore) GetCachedPrices(_ context.Context, symbols []string) (map[string]model.CachedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]model.CachedPrice)
	for _, sym := range symbols {
		if p, ok := s.prices[sym]; ok {
			result[sym] = *p
		}
	}
	return result, nil
}

func (s *MemoryStore) UpsertCachedPrice(_ context.Context, p *model.CachedPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.prices[p.Symbol] = &copy
	return nil
}

func (s *MemoryStore) DeleteCachedPrices(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range symbols {
		delete(s.prices, sym)
	}
	return nil
}

// --- Historical daily closes ---

func (s *MemoryStore) GetDailyClose(_ context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.closes[closeKey(symbol, day)]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpsertDailyClose(_ context.Context, p *model.DailyPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes[closeKey(p.Symbol, p.Day)] = p.Close
	return nil
}

// --- Sandbox portfolios ---

func (s *MemoryStore) CreatePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, id string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPortfoliosByOwner(_ context.Context, ownerID string) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Portfolio
	for _, p := range s.portfolios {
		if p.OwnerID == ownerID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryStore) UpdatePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[p.ID]; !ok {
		return ErrNotFound
	}
	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) DeletePortfolio(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[id]; !ok {
		return ErrNotFound
	}
	delete(s.portfolios, id)
	return nil
}
