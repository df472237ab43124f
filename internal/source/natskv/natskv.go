// Package natskv is an AccountSource fed by a NATS JetStream key-value
// bucket. A trading back office publishes one key per record:
//
//	account.<login>   accountKV
//	trade.<ticket>    tradeKV
//	order.<ticket>    orderKV
//
// The source watches the whole bucket and keeps the latest value of every
// key for its login in memory; reads never touch the network.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/types"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const (
	openedLayout = "2006-01-02T15:04:05"
	loadTimeout  = 10 * time.Second
)

var ErrNoAccount = errors.New("natskv: account not loaded")

type accountKV struct {
	Login   int64           `json:"login"`
	Balance decimal.Decimal `json:"balance"`
	Equity  decimal.Decimal `json:"equity"`
	Server  string          `json:"server"`
}

type tradeKV struct {
	Id         int64           `json:"trade"`
	AccountId  int64           `json:"account"`
	Symbol     string          `json:"symbol"`
	SellBuy    string          `json:"sellbuy"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Current    decimal.Decimal `json:"current"`
	SL         decimal.Decimal `json:"sl"`
	TP         decimal.Decimal `json:"tp"`
	Profit     decimal.Decimal `json:"profit"`
	Opened     string          `json:"opened"`
	Magic      int64           `json:"magic"`
	Commentary string          `json:"commentary"`
}

type orderKV struct {
	Id        int64           `json:"order"`
	AccountId int64           `json:"account"`
	Symbol    string          `json:"symbol"`
	Type      int             `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	SL        decimal.Decimal `json:"sl"`
	TP        decimal.Decimal `json:"tp"`
	Created   string          `json:"created"`
}

// entry is the part of nats.KeyValueEntry the source consumes.
type entry interface {
	Key() string
	Value() []byte
	Operation() nats.KeyValueOp
}

type Params struct {
	URLs   []string
	Bucket string
	Login  int64
}

type Source struct {
	p  Params
	nc *nats.Conn
	w  nats.KeyWatcher

	mu        sync.RWMutex
	account   *types.AccountSummary
	positions map[int64]types.PositionRecord
	orders    map[int64]types.OrderRecord

	loaded chan struct{}
	done   chan struct{}
}

var _ interfaces.AccountSource = (*Source)(nil)

func New(p Params) *Source {
	return &Source{
		p:         p,
		positions: make(map[int64]types.PositionRecord),
		orders:    make(map[int64]types.OrderRecord),
		loaded:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func newConn(name string, urls []string) (*nats.Conn, error) {
	ctx := context.Background()
	options := []nats.Option{nats.Name(name + ":position-bridge")}

	options = append(options, nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
		logger.Warn(ctx, "NATS disconnected", "error", err)
	}))
	options = append(options, nats.ReconnectHandler(func(nc *nats.Conn) {
		logger.Info(ctx, "NATS reconnected", "url", nc.ConnectedUrl())
	}))
	options = append(options, nats.ClosedHandler(func(nc *nats.Conn) {
		logger.Info(ctx, "NATS closed")
	}))

	return nats.Connect(strings.Join(urls, ","), options...)
}

// Start connects, opens the bucket and blocks until the initial values
// have been replayed, so the first snapshot is complete.
func (s *Source) Start(ctx context.Context) error {
	nc, err := newConn(s.p.Bucket, s.p.URLs)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to open JetStream: %w", err)
	}
	kv, err := js.KeyValue(s.p.Bucket)
	if err != nil {
		nc.Close()
		return fmt.Errorf("bucket %s not found: %w", s.p.Bucket, err)
	}
	w, err := kv.WatchAll()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to watch bucket %s: %w", s.p.Bucket, err)
	}
	s.nc, s.w = nc, w

	go s.consume(ctx, w.Updates())

	select {
	case <-s.loaded:
		return nil
	case <-time.After(loadTimeout):
		return fmt.Errorf("timed out loading bucket %s", s.p.Bucket)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Source) Stop(ctx context.Context) {
	if s.w == nil {
		return
	}
	_ = s.w.Stop()
	s.nc.Close()
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
}

func (s *Source) consume(ctx context.Context, updates <-chan nats.KeyValueEntry) {
	defer close(s.done)
	var count int
	initial := true
	for kve := range updates {
		// nil marks the end of the initial replay
		if kve == nil {
			if initial {
				logger.Info(ctx, "Bucket loading completed", "bucket", s.p.Bucket, "keys", count)
				close(s.loaded)
				initial = false
			}
			continue
		}
		count++
		if err := s.apply(kve); err != nil {
			logger.Warn(ctx, "Skipping bucket entry", "key", kve.Key(), "error", err)
		}
	}
}

// apply folds one bucket entry into the in-memory state.
func (s *Source) apply(e entry) error {
	prefix, id, ok := strings.Cut(e.Key(), ".")
	if !ok {
		return fmt.Errorf("malformed key %q", e.Key())
	}
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed key %q: %w", e.Key(), err)
	}
	deleted := e.Operation() != nats.KeyValuePut

	s.mu.Lock()
	defer s.mu.Unlock()

	switch prefix {
	case "account":
		if key != s.p.Login {
			return nil
		}
		if deleted {
			s.account = nil
			return nil
		}
		var a accountKV
		if err := json.Unmarshal(e.Value(), &a); err != nil {
			return err
		}
		s.account = &types.AccountSummary{Login: key, Balance: a.Balance, Equity: a.Equity, Server: a.Server}

	case "trade":
		if deleted {
			delete(s.positions, key)
			return nil
		}
		var t tradeKV
		if err := json.Unmarshal(e.Value(), &t); err != nil {
			return err
		}
		if t.AccountId != s.p.Login {
			return nil
		}
		p, err := t.record(key)
		if err != nil {
			return err
		}
		s.positions[key] = p

	case "order":
		if deleted {
			delete(s.orders, key)
			return nil
		}
		var o orderKV
		if err := json.Unmarshal(e.Value(), &o); err != nil {
			return err
		}
		if o.AccountId != s.p.Login {
			return nil
		}
		r, err := o.record(key)
		if err != nil {
			return err
		}
		s.orders[key] = r

	default:
		return fmt.Errorf("unknown key prefix %q", prefix)
	}
	return nil
}

func (t tradeKV) record(ticket int64) (types.PositionRecord, error) {
	opened, err := parseTime(t.Opened)
	if err != nil {
		return types.PositionRecord{}, err
	}
	side := types.SideBuy
	if t.SellBuy == "S" {
		side = types.SideSell
	}
	return types.PositionRecord{
		Ticket:       ticket,
		Symbol:       t.Symbol,
		Side:         side,
		Volume:       t.Amount,
		OpenPrice:    t.Price,
		CurrentPrice: t.Current,
		StopLoss:     t.SL,
		TakeProfit:   t.TP,
		Profit:       t.Profit,
		OpenTime:     opened,
		MagicNumber:  t.Magic,
		Comment:      t.Commentary,
	}, nil
}

func (o orderKV) record(ticket int64) (types.OrderRecord, error) {
	created, err := parseTime(o.Created)
	if err != nil {
		return types.OrderRecord{}, err
	}
	return types.OrderRecord{
		Ticket:     ticket,
		Symbol:     o.Symbol,
		Type:       o.Type,
		Volume:     o.Amount,
		OpenPrice:  o.Price,
		StopLoss:   o.SL,
		TakeProfit: o.TP,
		SetupTime:  created,
	}, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(openedLayout, v, time.UTC)
}

func (s *Source) Account(ctx context.Context) (types.AccountSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return types.AccountSummary{}, fmt.Errorf("%w: login %d", ErrNoAccount, s.p.Login)
	}
	return *s.account, nil
}

// Positions returns open trades ordered by ticket.
func (s *Source) Positions(ctx context.Context) ([]types.PositionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PositionRecord, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

// Orders returns pending orders ordered by ticket.
func (s *Source) Orders(ctx context.Context) ([]types.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.OrderRecord, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}
