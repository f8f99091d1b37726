package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Ledger ---

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, owner_id, symbol, side, quantity, price_per_unit, total_amount, occurred_at, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		e.ID, e.OwnerID, e.Symbol, string(e.Side),
		e.Quantity.String(), e.PricePerUnit.String(), e.TotalAmount.String(),
		e.OccurredAt, e.RecordedAt,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, symbol, side,
		        quantity::TEXT, price_per_unit::TEXT, total_amount::TEXT,
		        occurred_at, recorded_at
		 FROM ledger_entries WHERE id = $1`, id)

	e, err := scanLedgerEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", id, notFound(err))
	}
	return e, nil
}

func (s *PostgresStore) DeleteLedgerEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListLedgerByOwner(ctx context.Context, ownerID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, symbol, side,
		        quantity::TEXT, price_per_unit::TEXT, total_amount::TEXT,
		        occurred_at, recorded_at
		 FROM ledger_entries WHERE owner_id = $1
		 ORDER BY occurred_at, recorded_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) ListLedgerByOwnerSymbol(ctx context.Context, ownerID, symbol string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, symbol, side,
		        quantity::TEXT, price_per_unit::TEXT, total_amount::TEXT,
		        occurred_at, recorded_at
		 FROM ledger_entries WHERE owner_id = $1 AND symbol = $2
		 ORDER BY occurred_at, recorded_at`, ownerID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// --- Holdings ---

func (s *PostgresStore) GetHolding(ctx context.Context, ownerID, symbol string) (*model.Holding, error) {
	var h model.Holding
	var qty, avg string

	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, symbol, quantity::TEXT, average_cost::TEXT, updated_at
		 FROM holdings WHERE owner_id = $1 AND symbol = $2`, ownerID, symbol).
		Scan(&h.OwnerID, &h.Symbol, &qty, &avg, &h.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	h.Quantity, _ = decimal.NewFromString(qty)
	h.AverageCost, _ = decimal.NewFromString(avg)
	return &h, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context, ownerID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, symbol, quantity::TEXT, average_cost::TEXT, updated_at
		 FROM holdings WHERE owner_id = $1 ORDER BY symbol`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var qty, avg string
		if err := rows.Scan(&h.OwnerID, &h.Symbol, &qty, &avg, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Quantity, _ = decimal.NewFromString(qty)
		h.AverageCost, _ = decimal.NewFromString(avg)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (owner_id, symbol, quantity, average_cost, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5)
		 ON CONFLICT (owner_id, symbol) DO UPDATE
		 SET quantity = EXCLUDED.quantity,
		     average_cost = EXCLUDED.average_cost,
		     updated_at = EXCLUDED.updated_at`,
		h.OwnerID, h.Symbol, h.Quantity.String(), h.AverageCost.String(), h.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) DeleteHolding(ctx context.Context, ownerID, symbol string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM holdings WHERE owner_id = $1 AND symbol = $2`, ownerID, symbol)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Price cache ---

func (s *PostgresStore) GetCachedPrices(ctx context.Context, symbols []string) (map[string]model.CachedPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, price::TEXT, company_name, daily_change::TEXT, daily_change_percent::TEXT,
		        fetched_at, market_open_when_fetched
		 FROM price_cache WHERE symbol = ANY($1)`, symbols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]model.CachedPrice)
	for rows.Next() {
		var p model.CachedPrice
		var price, change, changePct string
		if err := rows.Scan(&p.Symbol, &price, &p.CompanyName, &change, &changePct,
			&p.FetchedAt, &p.MarketOpenWhenFetched); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(price)
		p.DailyChange, _ = decimal.NewFromString(change)
		p.DailyChangePercent, _ = decimal.NewFromString(changePct)
		result[p.Symbol] = p
	}
	return result, rows.Err()
}

func (s *PostgresStore) UpsertCachedPrice(ctx context.Context, p *model.CachedPrice) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_cache (symbol, price, company_name, daily_change, daily_change_percent, fetched_at, market_open_when_fetched)
		 VALUES ($1, $2::NUMERIC, $3, $4::NUMERIC, $5::NUMERIC, $6, $7)
		 ON CONFLICT (symbol) DO UPDATE
		 SET price = EXCLUDED.price,
		     company_name = EXCLUDED.company_name,
		     daily_change = EXCLUDED.daily_change,
		     daily_change_percent = EXCLUDED.daily_change_percent,
		     fetched_at = EXCLUDED.fetched_at,
		     market_open_when_fetched = EXCLUDED.market_open_when_fetched`,
		p.Symbol, p.Price.String(), p.CompanyName,
		p.DailyChange.String(), p.DailyChangePercent.String(),
		p.FetchedAt, p.MarketOpenWhenFetched,
	)
	return err
}

func (s *PostgresStore) DeleteCachedPrices(ctx context.Context, symbols []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM price_cache WHERE symbol = ANY($1)`, symbols)
	return err
}

// --- Historical daily closes ---

func (s *PostgresStore) GetDailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	var close string
	err := s.pool.QueryRow(ctx,
		`SELECT close::TEXT FROM daily_prices WHERE symbol = $1 AND day = $2`,
		symbol, day.Format("2006-01-02")).Scan(&close)
	if err != nil {
		return decimal.Zero, notFound(err)
	}
	c, _ := decimal.NewFromString(close)
	return c, nil
}

func (s *PostgresStore) UpsertDailyClose(ctx context.Context, p *model.DailyPrice) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_prices (symbol, day, close)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (symbol, day) DO UPDATE SET close = EXCLUDED.close`,
		p.Symbol, p.Day.Format("2006-01-02"), p.Close.String(),
	)
	return err
}

// --- Sandbox portfolios ---

func (s *PostgresStore) CreatePortfolio(ctx context.Context, p *model.Portfolio) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolios (id, owner_id, name, description, cash_balance, initial_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		p.ID, p.OwnerID, p.Name, p.Description,
		p.CashBalance.String(), p.InitialBalance.String(), p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error) {
	var p model.Portfolio
	var cash, initial string

	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, description, cash_balance::TEXT, initial_balance::TEXT, created_at
		 FROM portfolios WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &cash, &initial, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", id, notFound(err))
	}

	p.CashBalance, _ = decimal.NewFromString(cash)
	p.InitialBalance, _ = decimal.NewFromString(initial)
	return &p, nil
}

func (s *PostgresStore) ListPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, description, cash_balance::TEXT, initial_balance::TEXT, created_at
		 FROM portfolios WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		var cash, initial string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &cash, &initial, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CashBalance, _ = decimal.NewFromString(cash)
		p.InitialBalance, _ = decimal.NewFromString(initial)
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

func (s *PostgresStore) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE portfolios
		 SET name = $2, description = $3,
		     cash_balance = $4::NUMERIC, initial_balance = $5::NUMERIC
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.CashBalance.String(), p.InitialBalance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePortfolio(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scan helpers ---

type pgxRow interface {
	Scan(dest ...interface{}) error
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanLedgerEntry(row pgxRow) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var side, qty, price, total string

	if err := row.Scan(&e.ID, &e.OwnerID, &e.Symbol, &side,
		&qty, &price, &total, &e.OccurredAt, &e.RecordedAt); err != nil {
		return nil, err
	}

	e.Side = model.Side(side)
	e.Quantity, _ = decimal.NewFromString(qty)
	e.PricePerUnit, _ = decimal.NewFromString(price)
	e.TotalAmount, _ = decimal.NewFromString(total)
	return &e, nil
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
