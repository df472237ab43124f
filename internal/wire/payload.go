package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

// MessageType is the value of the "type" field of every state payload.
const MessageType = "positions"

var ErrUnexpectedType = errors.New("wire: unexpected message type")

// Amount is a monetary or volume value written with 2 decimal places.
type Amount struct{ decimal.Decimal }

// Price is a price, stop-loss or take-profit written with 5 decimal places.
type Price struct{ decimal.Decimal }

func (a Amount) MarshalJSON() ([]byte, error) { return []byte(a.StringFixed(2)), nil }
func (p Price) MarshalJSON() ([]byte, error)  { return []byte(p.StringFixed(5)), nil }

// Message is the JSON document carried by one frame. Field order follows
// the struct declaration order and is part of the protocol.
type Message struct {
	Type        string      `json:"type"`
	Timestamp   int64       `json:"timestamp"`
	AccountInfo AccountInfo `json:"account_info"`
	Positions   []Position  `json:"positions"`
	Orders      []Order     `json:"orders"`
}

type AccountInfo struct {
	Login   int64  `json:"login"`
	Balance Amount `json:"balance"`
	Equity  Amount `json:"equity"`
	Server  string `json:"server"`
}

type Position struct {
	Ticket       int64  `json:"ticket"`
	Symbol       string `json:"symbol"`
	Type         int    `json:"type"`
	Volume       Amount `json:"volume"`
	PriceOpen    Price  `json:"price_open"`
	PriceCurrent Price  `json:"price_current"`
	SL           Price  `json:"sl"`
	TP           Price  `json:"tp"`
	Profit       Amount `json:"profit"`
	Time         int64  `json:"time"`
	Magic        int64  `json:"magic"`
	Comment      string `json:"comment"`
}

type Order struct {
	Ticket    int64  `json:"ticket"`
	Symbol    string `json:"symbol"`
	Type      int    `json:"type"`
	Volume    Amount `json:"volume"`
	PriceOpen Price  `json:"price_open"`
	SL        Price  `json:"sl"`
	TP        Price  `json:"tp"`
	TimeSetup int64  `json:"time_setup"`
}

// NewMessage maps a snapshot onto the wire document.
func NewMessage(s *types.StateSnapshot) *Message {
	m := &Message{
		Type:      MessageType,
		Timestamp: unixOrZero(s.TakenAt),
		AccountInfo: AccountInfo{
			Login:   s.Account.Login,
			Balance: Amount{s.Account.Balance},
			Equity:  Amount{s.Account.Equity},
			Server:  s.Account.Server,
		},
		Positions: make([]Position, 0, len(s.Positions)),
		Orders:    make([]Order, 0, len(s.Orders)),
	}
	for _, p := range s.Positions {
		m.Positions = append(m.Positions, Position{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Type:         int(p.Side),
			Volume:       Amount{p.Volume},
			PriceOpen:    Price{p.OpenPrice},
			PriceCurrent: Price{p.CurrentPrice},
			SL:           Price{p.StopLoss},
			TP:           Price{p.TakeProfit},
			Profit:       Amount{p.Profit},
			Time:         unixOrZero(p.OpenTime),
			Magic:        p.MagicNumber,
			Comment:      p.Comment,
		})
	}
	for _, o := range s.Orders {
		m.Orders = append(m.Orders, Order{
			Ticket:    o.Ticket,
			Symbol:    o.Symbol,
			Type:      o.Type,
			Volume:    Amount{o.Volume},
			PriceOpen: Price{o.OpenPrice},
			SL:        Price{o.StopLoss},
			TP:        Price{o.TakeProfit},
			TimeSetup: unixOrZero(o.SetupTime),
		})
	}
	return m
}

// Serialize renders s as the frame payload. Output is byte-identical for
// the same snapshot; string fields are escaped per standard JSON rules.
func Serialize(s *types.StateSnapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("wire: nil snapshot")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewMessage(s)); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Decode parses a frame payload produced by Serialize.
func Decode(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if m.Type != MessageType {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedType, m.Type)
	}
	return &m, nil
}

// Snapshot converts a decoded message back into the domain model.
func (m *Message) Snapshot() *types.StateSnapshot {
	s := &types.StateSnapshot{
		TakenAt: time.Unix(m.Timestamp, 0),
		Account: types.AccountSummary{
			Login:   m.AccountInfo.Login,
			Balance: m.AccountInfo.Balance.Decimal,
			Equity:  m.AccountInfo.Equity.Decimal,
			Server:  m.AccountInfo.Server,
		},
		Positions: make([]types.PositionRecord, 0, len(m.Positions)),
		Orders:    make([]types.OrderRecord, 0, len(m.Orders)),
	}
	for _, p := range m.Positions {
		s.Positions = append(s.Positions, types.PositionRecord{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Side:         types.Side(p.Type),
			Volume:       p.Volume.Decimal,
			OpenPrice:    p.PriceOpen.Decimal,
			CurrentPrice: p.PriceCurrent.Decimal,
			StopLoss:     p.SL.Decimal,
			TakeProfit:   p.TP.Decimal,
			Profit:       p.Profit.Decimal,
			OpenTime:     timeOrZero(p.Time),
			MagicNumber:  p.Magic,
			Comment:      p.Comment,
		})
	}
	for _, o := range m.Orders {
		s.Orders = append(s.Orders, types.OrderRecord{
			Ticket:     o.Ticket,
			Symbol:     o.Symbol,
			Type:       o.Type,
			Volume:     o.Volume.Decimal,
			OpenPrice:  o.PriceOpen.Decimal,
			StopLoss:   o.SL.Decimal,
			TakeProfit: o.TP.Decimal,
			SetupTime:  timeOrZero(o.TimeSetup),
		})
	}
	return s
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
