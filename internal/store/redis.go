package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for holdings and portfolios — the rows the valuation path reads on
// every request. Writes go to the primary store and invalidate the cache.
//
// Price-cache and ledger reads pass through: the price_cache table is
// itself a cache with its own staleness policy, and ledger reads only
// happen on the (rare) replay path.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func holdingsCacheKey(ownerID string) string { return fmt.Sprintf("holdings:%s", ownerID) }
func portfolioCacheKey(id string) string     { return fmt.Sprintf("portfolio:%s", id) }

// --- Ledger (write-through, invalidates the owner's holdings) ---

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := s.primary.InsertLedgerEntry(ctx, entry); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsCacheKey(entry.OwnerID))
	return nil
}

func (s *CachedStore) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	return s.primary.GetLedgerEntry(ctx, id)
}

func (s *CachedStore) DeleteLedgerEntry(ctx context.Context, id string) error {
	// Look up the owner first so the holdings cache can be invalidated.
	entry, err := s.primary.GetLedgerEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.primary.DeleteLedgerEntry(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsCacheKey(entry.OwnerID))
	return nil
}

func (s *CachedStore) ListLedgerByOwner(ctx context.Context, ownerID string) ([]model.LedgerEntry, error) {
	return s.primary.ListLedgerByOwner(ctx, ownerID)
}

func (s *CachedStore) ListLedgerByOwnerSymbol(ctx context.Context, ownerID, symbol string) ([]model.LedgerEntry, error) {
	return s.primary.ListLedgerByOwnerSymbol(ctx, ownerID, symbol)
}

// --- Holdings (read-through per owner) ---

func (s *CachedStore) GetHolding(ctx context.Context, ownerID, symbol string) (*model.Holding, error) {
	return s.primary.GetHolding(ctx, ownerID, symbol)
}

func (s *CachedStore) ListHoldings(ctx context.Context, ownerID string) ([]model.Holding, error) {
	data, err := s.rdb.Get(ctx, holdingsCacheKey(ownerID)).Bytes()
	if err == nil {
		var holdings []model.Holding
		if json.Unmarshal(data, &holdings) == nil {
			return holdings, nil
		}
	}

	holdings, err := s.primary.ListHoldings(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(holdings); err == nil {
		s.rdb.Set(ctx, holdingsCacheKey(ownerID), data, s.ttl)
	}
	return holdings, nil
}

func (s *CachedStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	if err := s.primary.UpsertHolding(ctx, h); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsCacheKey(h.OwnerID))
	return nil
}

func (s *CachedStore) DeleteHolding(ctx context.Context, ownerID, symbol string) error {
	if err := s.primary.DeleteHolding(ctx, ownerID, symbol); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsCacheKey(ownerID))
	return nil
}

// --- Price cache (passthrough) ---

func (s *CachedStore) GetCachedPrices(ctx context.Context, symbols []string) (map[string]model.CachedPrice, error) {
	return s.primary.GetCachedPrices(ctx, symbols)
}

func (s *CachedStore) UpsertCachedPrice(ctx context.Context, p *model.CachedPrice) error {
	return s.primary.UpsertCachedPrice(ctx, p)
}

func (s *CachedStore) DeleteCachedPrices(ctx context.Context, symbols []string) error {
	return s.primary.DeleteCachedPrices(ctx, symbols)
}

// --- Historical daily closes (passthrough) ---

func (s *CachedStore) GetDailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	return s.primary.GetDailyClose(ctx, symbol, day)
}

func (s *CachedStore) UpsertDailyClose(ctx context.Context, p *model.DailyPrice) error {
	return s.primary.UpsertDailyClose(ctx, p)
}

// --- Sandbox portfolios (read-through per ID) ---

func (s *CachedStore) CreatePortfolio(ctx context.Context, p *model.Portfolio) error {
	if err := s.primary.CreatePortfolio(ctx, p); err != nil {
		return err
	}
	s.cachePortfolio(ctx, p)
	return nil
}

func (s *CachedStore) GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error) {
	data, err := s.rdb.Get(ctx, portfolioCacheKey(id)).Bytes()
	if err == nil {
		var p model.Portfolio
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePortfolio(ctx, p)
	return p, nil
}

func (s *CachedStore) ListPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	return s.primary.ListPortfoliosByOwner(ctx, ownerID)
}

func (s *CachedStore) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	if err := s.primary.UpdatePortfolio(ctx, p); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, portfolioCacheKey(p.ID))
	return nil
}

func (s *CachedStore) DeletePortfolio(ctx context.Context, id string) error {
	if err := s.primary.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, portfolioCacheKey(id), holdingsCacheKey(id))
	return nil
}

func (s *CachedStore) cachePortfolio(ctx context.Context, p *model.Portfolio) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, portfolioCacheKey(p.ID), data, s.ttl)
	}
}
