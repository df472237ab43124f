package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an open position. The numeric values are the
// ones written to the wire as the position "type" field.
type Side int

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType codes carried in OrderRecord.Type.
const (
	OrderBuyLimit      = 2
	OrderSellLimit     = 3
	OrderBuyStop       = 4
	OrderSellStop      = 5
	OrderBuyStopLimit  = 6
	OrderSellStopLimit = 7
)

type AccountSummary struct {
	Login   int64
	Balance decimal.Decimal
	Equity  decimal.Decimal
	Server  string
}

type PositionRecord struct {
	Ticket       int64
	Symbol       string
	Side         Side
	Volume       decimal.Decimal
	OpenPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	Profit       decimal.Decimal
	OpenTime     time.Time
	MagicNumber  int64
	Comment      string
}

// OrderRecord is a pending (not yet triggered) order.
type OrderRecord struct {
	Ticket     int64
	Symbol     string
	Type       int
	Volume     decimal.Decimal
	OpenPrice  decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	SetupTime  time.Time
}

// StateSnapshot is one complete read of the account. It is built once per
// cycle and never mutated afterwards; the next cycle replaces it.
type StateSnapshot struct {
	TakenAt   time.Time
	Account   AccountSummary
	Positions []PositionRecord
	Orders    []OrderRecord
}

// CycleResult describes what one scheduled cycle did.
type CycleResult struct {
	Accepted    bool   `json:"accepted"`
	Connected   bool   `json:"connected"`
	Changed     bool   `json:"changed"`
	Delivered   bool   `json:"delivered"`
	Bytes       int    `json:"bytes,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Reason      string `json:"reason"`
}

// DeliveryStats is a point-in-time copy of the broadcaster counters.
type DeliveryStats struct {
	State           string    `json:"state"`
	Remote          string    `json:"remote,omitempty"`
	Cycles          uint64    `json:"cycles"`
	Frames          uint64    `json:"frames"`
	Accepts         uint64    `json:"accepts"`
	SendFailures    uint64    `json:"send_failures"`
	SnapshotErrors  uint64    `json:"snapshot_errors"`
	LastBytes       int       `json:"last_bytes"`
	LastFingerprint string    `json:"last_fingerprint,omitempty"`
	LastDelivery    time.Time `json:"last_delivery,omitzero"`
}
