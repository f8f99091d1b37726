// Package model defines the core domain types shared across the portfolio
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known trade side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// LedgerEntry is an immutable record of one BUY or SELL trade. Entries are
// never modified in place; corrections delete the row and replay the
// remaining history for the symbol.
//
// OwnerID is a user ID for real holdings and a sandbox portfolio ID for
// paper trades — one schema, two disjoint ledgers.
type LedgerEntry struct {
	ID           string          `json:"id" db:"id"`
	OwnerID      string          `json:"owner_id" db:"owner_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Side         Side            `json:"side" db:"side"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" db:"price_per_unit"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	OccurredAt   time.Time       `json:"occurred_at" db:"occurred_at"` // trade date
	RecordedAt   time.Time       `json:"recorded_at" db:"recorded_at"` // insertion time, replay tie-break
}

// Holding is the materialized position for one (owner, symbol), derived
// entirely from the ledger by weighted-average-cost replay. A holding with
// zero quantity is deleted, never stored as a zero row.
type Holding struct {
	OwnerID     string          `json:"owner_id" db:"owner_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// CachedPrice is one upserted row per symbol, shared across all owners.
// Lifetime is governed by the market-hours-aware staleness policy in the
// pricecache package, not a fixed TTL.
type CachedPrice struct {
	Symbol                string          `json:"symbol" db:"symbol"`
	Price                 decimal.Decimal `json:"price" db:"price"`
	CompanyName           string          `json:"company_name" db:"company_name"`
	DailyChange           decimal.Decimal `json:"daily_change" db:"daily_change"`
	DailyChangePercent    decimal.Decimal `json:"daily_change_percent" db:"daily_change_percent"`
	FetchedAt             time.Time       `json:"fetched_at" db:"fetched_at"`
	MarketOpenWhenFetched bool            `json:"market_open_when_fetched" db:"market_open_when_fetched"`
}

// Quote is a single snapshot returned by the market-data provider.
type Quote struct {
	Symbol             string          `json:"symbol"`
	Price              decimal.Decimal `json:"price"`
	PreviousClose      decimal.Decimal `json:"previous_close"`
	DailyChange        decimal.Decimal `json:"daily_change"`
	DailyChangePercent decimal.Decimal `json:"daily_change_percent"`
	CompanyName        string          `json:"company_name"`
	Volume             int64           `json:"volume"`
	Currency           string          `json:"currency"`
}

// Portfolio holds the virtual cash balance for a sandbox portfolio.
// Cash is the one piece of state not derivable from the ledger: it is
// mutated transactionally in lockstep with each ledger append.
type Portfolio struct {
	ID             string          `json:"id" db:"id"`
	OwnerID        string          `json:"owner_id" db:"owner_id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description,omitempty" db:"description"`
	CashBalance    decimal.Decimal `json:"cash_balance" db:"cash_balance"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// DailyPrice is one historical closing price for a symbol.
type DailyPrice struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Day    time.Time       `json:"day" db:"day"`
	Close  decimal.Decimal `json:"close" db:"close"`
}
