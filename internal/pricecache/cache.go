// Package pricecache serves current quotes for lists of symbols, refreshing
// only symbols whose cached entry is stale. Staleness is market-hours
// aware: after the close, a price fetched after the final bell stays valid
// until the next session, so the cache makes zero provider calls over a
// weekend. Continuously traded symbols (crypto pairs) fall back to a plain
// 15-minute rule.
package pricecache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foliotrack/portfolio-engine/internal/marketcal"
	"github.com/foliotrack/portfolio-engine/internal/metrics"
	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/quote"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// staleAfter is how long an entry stays fresh while the market (or a
// continuous market) is trading.
const staleAfter = 15 * time.Minute

// Cache is the market-hours-aware price cache.
type Cache struct {
	store    store.Store
	provider quote.Provider
	cal      *marketcal.Calendar
	hub      *Hub // optional quote feed; nil disables broadcasting

	// now is the wall-clock source; overridden in tests.
	now func() time.Time
}

// New creates a price cache. Pass nil for hub if the WebSocket quote feed
// is not needed.
func New(st store.Store, provider quote.Provider, cal *marketcal.Calendar, hub *Hub) *Cache {
	return &Cache{
		store:    st,
		provider: provider,
		cal:      cal,
		hub:      hub,
		now:      time.Now,
	}
}

// SetClock overrides the wall-clock source. Tests only.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// GetWithRefresh returns cached prices for the symbols, refreshing stale
// entries with one batched provider call first. Provider failure is not
// fatal: the previous cached values are served best-effort and the error
// is logged.
func (c *Cache) GetWithRefresh(ctx context.Context, symbols []string) (map[string]model.CachedPrice, error) {
	if len(symbols) == 0 {
		return map[string]model.CachedPrice{}, nil
	}

	cached, err := c.store.GetCachedPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	now := c.now()
	var stale []string
	for _, sym := range symbols {
		entry, ok := cached[sym]
		if !ok {
			metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
			stale = append(stale, sym)
			continue
		}
		if c.IsStale(&entry, now) {
			metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
			stale = append(stale, sym)
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("fresh").Inc()
		}
	}

	if len(stale) > 0 {
		metrics.PriceRefreshesTotal.WithLabelValues("stale").Inc()
		if err := c.refresh(ctx, stale, cached); err != nil {
			// Best-effort: serve what we have.
			slog.Error("price refresh failed, serving cached values",
				"symbols", len(stale), "err", err)
		}
	}

	return cached, nil
}

// ForceRefresh bypasses the staleness check and always calls the provider.
// Unlike GetWithRefresh, a provider failure is surfaced — the whole point
// of a forced refresh is the fetch.
func (c *Cache) ForceRefresh(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	cached, err := c.store.GetCachedPrices(ctx, symbols)
	if err != nil {
		return err
	}

	metrics.PriceRefreshesTotal.WithLabelValues("force").Inc()
	slog.Info("force refreshing prices", "symbols", len(symbols))
	return c.refresh(ctx, symbols, cached)
}

// Invalidate removes the cached rows for the symbols. The next read
// fetches fresh data.
func (c *Cache) Invalidate(ctx context.Context, symbols []string) error {
	return c.store.DeleteCachedPrices(ctx, symbols)
}

// IsStale applies the staleness policy, in priority order:
//
//  1. missing price or company name → stale
//  2. continuously traded symbol → stale after 15 minutes
//  3. market open → stale after 15 minutes
//  4. market closed → valid iff fetched after the last close
func (c *Cache) IsStale(p *model.CachedPrice, now time.Time) bool {
	if p == nil || p.Price.IsZero() || p.CompanyName == "" || p.FetchedAt.IsZero() {
		return true
	}

	if isContinuous(p.Symbol) {
		return p.FetchedAt.Before(now.Add(-staleAfter))
	}

	if c.cal.IsMarketOpen(now) {
		return p.FetchedAt.Before(now.Add(-staleAfter))
	}

	// Market closed: an entry fetched after the last close already
	// reflects the final price and stays valid until the next session.
	return !p.FetchedAt.After(c.cal.LastMarketClose(now))
}

// isContinuous reports whether the symbol trades around the clock
// (crypto pairs quoted against USD).
func isContinuous(symbol string) bool {
	return strings.HasSuffix(symbol, "-USD")
}

// refresh makes one batched provider call for the symbols and upserts each
// returned record. Symbols the provider fails to return keep their previous
// cached value; this is logged, not retried inline.
func (c *Cache) refresh(ctx context.Context, symbols []string, cached map[string]model.CachedPrice) error {
	now := c.now()
	marketOpen := c.cal.IsMarketOpen(now)

	start := time.Now()
	quotes, err := c.provider.BatchQuote(ctx, symbols)
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrorsTotal.Inc()
		return fmt.Errorf("batch quote: %w", err)
	}

	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			continue
		}

		p := model.CachedPrice{
			Symbol:                sym,
			Price:                 q.Price,
			CompanyName:           q.CompanyName,
			DailyChange:           q.DailyChange,
			DailyChangePercent:    q.DailyChangePercent,
			FetchedAt:             now,
			MarketOpenWhenFetched: marketOpen,
		}
		if err := c.store.UpsertCachedPrice(ctx, &p); err != nil {
			return fmt.Errorf("upsert price %s: %w", sym, err)
		}
		cached[sym] = p

		if c.hub != nil {
			c.hub.BroadcastQuote(p)
		}
		slog.Debug("price cache updated", "symbol", sym, "price", q.Price.String())
	}

	if len(quotes) < len(symbols) {
		slog.Warn("provider omitted symbols from batch",
			"requested", len(symbols), "returned", len(quotes))
	}
	return nil
}
