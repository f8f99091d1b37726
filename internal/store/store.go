// Package store defines the persistence interface for the portfolio engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for holdings and portfolios.
type Store interface {
	// --- Ledger (immutable rows, delete-only corrections) ---

	// InsertLedgerEntry appends one trade record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntry retrieves one entry by ID.
	GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error)

	// DeleteLedgerEntry removes one entry by ID. The caller is responsible
	// for replaying the affected symbol afterwards.
	DeleteLedgerEntry(ctx context.Context, id string) error

	// ListLedgerByOwner returns all entries for an owner, ordered by
	// (occurred_at, recorded_at) ascending — replay order.
	ListLedgerByOwner(ctx context.Context, ownerID string) ([]model.LedgerEntry, error)

	// ListLedgerByOwnerSymbol returns all entries for one (owner, symbol)
	// in replay order.
	ListLedgerByOwnerSymbol(ctx context.Context, ownerID, symbol string) ([]model.LedgerEntry, error)

	// --- Holdings (materialized view, written only by the accounting engine) ---

	GetHolding(ctx context.Context, ownerID, symbol string) (*model.Holding, error)
	ListHoldings(ctx context.Context, ownerID string) ([]model.Holding, error)
	UpsertHolding(ctx context.Context, h *model.Holding) error
	DeleteHolding(ctx context.Context, ownerID, symbol string) error

	// --- Price cache (one row per symbol, shared across owners) ---

	// GetCachedPrices returns the cached rows for the requested symbols;
	// symbols with no row are simply absent from the map.
	GetCachedPrices(ctx context.Context, symbols []string) (map[string]model.CachedPrice, error)
	UpsertCachedPrice(ctx context.Context, p *model.CachedPrice) error
	DeleteCachedPrices(ctx context.Context, symbols []string) error

	// --- Historical daily closes ---

	GetDailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error)
	UpsertDailyClose(ctx context.Context, p *model.DailyPrice) error

	// --- Sandbox portfolios ---

	CreatePortfolio(ctx context.Context, p *model.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error)
	ListPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p *model.Portfolio) error
	DeletePortfolio(ctx context.Context, id string) error
}
