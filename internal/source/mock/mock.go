// Package mock is an in-memory AccountSource used in DRY_RUN mode and in
// tests. With Simulate on, every account read advances a seeded random walk
// over current prices and profits, and every ModifyEvery reads the stop loss
// of one position is moved so that consumers see a real change.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

type Config struct {
	Login       int64
	Server      string
	Balance     decimal.Decimal
	Positions   int
	Seed        int64
	Simulate    bool
	ModifyEvery int
}

var symbols = []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "AUDUSD"}

type Source struct {
	mu        sync.Mutex
	cfg       Config
	rng       *rand.Rand
	account   types.AccountSummary
	positions []types.PositionRecord
	orders    []types.OrderRecord
	steps     int
	failNext  error
}

var _ interfaces.AccountSource = (*Source)(nil)

// New builds a source seeded with cfg.Positions open positions.
func New(cfg Config) *Source {
	if cfg.ModifyEvery <= 0 {
		cfg.ModifyEvery = 20
	}
	s := &Source{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		account: types.AccountSummary{
			Login:   cfg.Login,
			Balance: cfg.Balance,
			Equity:  cfg.Balance,
			Server:  cfg.Server,
		},
	}
	opened := time.Unix(1700000000, 0)
	for i := 0; i < cfg.Positions; i++ {
		open := decimal.NewFromFloat(1 + s.rng.Float64()).Round(5)
		s.positions = append(s.positions, types.PositionRecord{
			Ticket:       int64(1000 + i),
			Symbol:       symbols[i%len(symbols)],
			Side:         types.Side(i % 2),
			Volume:       decimal.New(int64(1+i%3), -1),
			OpenPrice:    open,
			CurrentPrice: open,
			Profit:       decimal.Zero,
			OpenTime:     opened.Add(time.Duration(i) * time.Minute),
			Comment:      "mock",
		})
	}
	return s
}

func (s *Source) Start(ctx context.Context) error { return nil }
func (s *Source) Stop(ctx context.Context)        {}

func (s *Source) Account(ctx context.Context) (types.AccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return types.AccountSummary{}, err
	}
	if s.cfg.Simulate {
		s.step()
	}
	return s.account, nil
}

func (s *Source) Positions(ctx context.Context) ([]types.PositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]types.PositionRecord, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *Source) Orders(ctx context.Context) ([]types.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]types.OrderRecord, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *Source) SetAccount(a types.AccountSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = a
}

func (s *Source) SetBalance(balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.Balance = balance
}

func (s *Source) SetPositions(p []types.PositionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append([]types.PositionRecord(nil), p...)
}

func (s *Source) SetOrders(o []types.OrderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]types.OrderRecord(nil), o...)
}

// FailNext makes the next read of any kind return err.
func (s *Source) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Source) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	if err != nil {
		return fmt.Errorf("mock source: %w", err)
	}
	return nil
}

// step moves prices by up to 5 points, refreshes profit and equity, and
// periodically tightens a stop loss.
func (s *Source) step() {
	s.steps++
	floating := decimal.Zero
	for i := range s.positions {
		p := &s.positions[i]
		move := decimal.New(int64(s.rng.Intn(11)-5), -5)
		p.CurrentPrice = p.CurrentPrice.Add(move)

		diff := p.CurrentPrice.Sub(p.OpenPrice)
		if p.Side == types.SideSell {
			diff = diff.Neg()
		}
		p.Profit = diff.Mul(p.Volume).Mul(decimal.NewFromInt(100000)).Round(2)
		floating = floating.Add(p.Profit)
	}
	s.account.Equity = s.account.Balance.Add(floating)

	if len(s.positions) > 0 && s.steps%s.cfg.ModifyEvery == 0 {
		p := &s.positions[(s.steps/s.cfg.ModifyEvery-1)%len(s.positions)]
		offset := decimal.New(int64(50+s.rng.Intn(50)), -5)
		if p.Side == types.SideBuy {
			p.StopLoss = p.CurrentPrice.Sub(offset)
		} else {
			p.StopLoss = p.CurrentPrice.Add(offset)
		}
	}
}
