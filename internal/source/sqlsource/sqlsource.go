// Package sqlsource reads account state from a relational store that a
// back office keeps current. Three tables are expected:
//
//	accounts  (login, balance, equity, server)
//	positions (ticket, login, symbol, side, volume, price_open, price_current,
//	           sl, tp, profit, time_open, magic, comment)
//	orders    (ticket, login, symbol, type, volume, price_open, sl, tp, time_setup)
//
// Times are unix seconds. Queries are written with ? placeholders and
// rebound for the driver, so postgres and sqlite both work.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/types"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
)

var ErrNoAccount = errors.New("sqlsource: account not found")

type Params struct {
	Driver string
	DSN    string
	Schema string
	Login  int64
}

type Source struct {
	db     *sqlx.DB
	schema string
	login  int64
	owned  bool
}

var _ interfaces.AccountSource = (*Source)(nil)

type accountRow struct {
	Balance decimal.Decimal `db:"balance"`
	Equity  decimal.Decimal `db:"equity"`
	Server  string          `db:"server"`
}

type positionRow struct {
	Ticket       int64           `db:"ticket"`
	Symbol       string          `db:"symbol"`
	Side         int             `db:"side"`
	Volume       decimal.Decimal `db:"volume"`
	PriceOpen    decimal.Decimal `db:"price_open"`
	PriceCurrent decimal.Decimal `db:"price_current"`
	SL           decimal.Decimal `db:"sl"`
	TP           decimal.Decimal `db:"tp"`
	Profit       decimal.Decimal `db:"profit"`
	TimeOpen     int64           `db:"time_open"`
	Magic        int64           `db:"magic"`
	Comment      string          `db:"comment"`
}

type orderRow struct {
	Ticket    int64           `db:"ticket"`
	Symbol    string          `db:"symbol"`
	Type      int             `db:"type"`
	Volume    decimal.Decimal `db:"volume"`
	PriceOpen decimal.Decimal `db:"price_open"`
	SL        decimal.Decimal `db:"sl"`
	TP        decimal.Decimal `db:"tp"`
	TimeSetup int64           `db:"time_setup"`
}

func newRepository(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open(%q): %w", driver, err)
	}

	// set DB connection parameters
	{
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Minute)
	}
	return db, nil
}

// Open prepares a pool; nothing is dialled until Start.
func Open(p Params) (*Source, error) {
	if p.DSN == "" {
		return nil, errors.New("empty SQL DSN")
	}
	db, err := newRepository(p.Driver, p.DSN)
	if err != nil {
		return nil, err
	}
	s := NewWithDB(db, p.Schema, p.Login)
	s.owned = true
	return s, nil
}

// NewWithDB reads through an existing pool, which the caller keeps owning.
func NewWithDB(db *sqlx.DB, schema string, login int64) *Source {
	return &Source{db: db, schema: schema, login: login}
}

func (s *Source) Start(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}
	return nil
}

func (s *Source) Stop(ctx context.Context) {
	if s.owned {
		_ = s.db.Close()
	}
}

func (s *Source) table(name string) string {
	if s.schema == "" {
		return name
	}
	return s.schema + "." + name
}

func (s *Source) Account(ctx context.Context) (types.AccountSummary, error) {
	q := s.db.Rebind(`select balance, equity, coalesce(server, '') as server
		from ` + s.table("accounts") + ` where login = ?`)

	var row accountRow
	if err := s.db.GetContext(ctx, &row, q, s.login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AccountSummary{}, fmt.Errorf("%w: login %d", ErrNoAccount, s.login)
		}
		return types.AccountSummary{}, fmt.Errorf("failed to select account: %w", err)
	}
	return types.AccountSummary{
		Login:   s.login,
		Balance: row.Balance,
		Equity:  row.Equity,
		Server:  row.Server,
	}, nil
}

// Positions returns open positions ordered by ticket.
func (s *Source) Positions(ctx context.Context) ([]types.PositionRecord, error) {
	q := s.db.Rebind(`select
			ticket,
			symbol,
			side,
			volume,
			price_open,
			price_current,
			coalesce(sl, 0) as sl,
			coalesce(tp, 0) as tp,
			profit,
			time_open,
			coalesce(magic, 0) as magic,
			coalesce(comment, '') as comment
		from ` + s.table("positions") + `
		where login = ?
		order by ticket`)

	var rows []positionRow
	if err := s.db.SelectContext(ctx, &rows, q, s.login); err != nil {
		return nil, fmt.Errorf("failed to select positions: %w", err)
	}

	out := make([]types.PositionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.PositionRecord{
			Ticket:       r.Ticket,
			Symbol:       r.Symbol,
			Side:         types.Side(r.Side),
			Volume:       r.Volume,
			OpenPrice:    r.PriceOpen,
			CurrentPrice: r.PriceCurrent,
			StopLoss:     r.SL,
			TakeProfit:   r.TP,
			Profit:       r.Profit,
			OpenTime:     unixTime(r.TimeOpen),
			MagicNumber:  r.Magic,
			Comment:      r.Comment,
		})
	}
	return out, nil
}

// Orders returns pending orders ordered by ticket.
func (s *Source) Orders(ctx context.Context) ([]types.OrderRecord, error) {
	q := s.db.Rebind(`select
			ticket,
			symbol,
			type,
			volume,
			price_open,
			coalesce(sl, 0) as sl,
			coalesce(tp, 0) as tp,
			time_setup
		from ` + s.table("orders") + `
		where login = ?
		order by ticket`)

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, q, s.login); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}

	out := make([]types.OrderRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.OrderRecord{
			Ticket:     r.Ticket,
			Symbol:     r.Symbol,
			Type:       r.Type,
			Volume:     r.Volume,
			OpenPrice:  r.PriceOpen,
			StopLoss:   r.SL,
			TakeProfit: r.TP,
			SetupTime:  unixTime(r.TimeSetup),
		})
	}
	return out, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
