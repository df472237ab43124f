package zerodha

import (
	"hash/fnv"
	"strconv"
	"time"

	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// Kite order and transaction type values.
const (
	orderTypeSL  = "SL"
	orderTypeSLM = "SL-M"
	txnBuy       = "BUY"
)

// Order statuses that mean the order is still resting.
var pendingStatuses = map[string]bool{
	"OPEN":             true,
	"TRIGGER PENDING":  true,
	"AMO REQ RECEIVED": true,
}

var productCodes = map[string]int64{
	"CNC":  1,
	"NRML": 2,
	"MIS":  3,
	"MTF":  4,
}

// balanceFromMargins returns the cash balance and the net equity of the
// equity segment.
func balanceFromMargins(m kiteconnect.AllMargins) (balance, equity decimal.Decimal) {
	return decimal.NewFromFloat(m.Equity.Available.Cash), decimal.NewFromFloat(m.Equity.Net)
}

// positionTicket combines the instrument token with the product so that a
// CNC and an MIS position in the same instrument stay distinct.
func positionTicket(p kiteconnect.Position) int64 {
	return int64(p.InstrumentToken)<<4 | productCodes[p.Product]
}

// toPositions keeps net positions with a non-zero quantity, in the order
// the API returned them.
func toPositions(net []kiteconnect.Position) []types.PositionRecord {
	out := make([]types.PositionRecord, 0, len(net))
	for _, p := range net {
		qty := decimal.NewFromFloat(float64(p.Quantity))
		if qty.IsZero() {
			continue
		}
		side := types.SideBuy
		if qty.IsNegative() {
			side = types.SideSell
		}
		out = append(out, types.PositionRecord{
			Ticket:       positionTicket(p),
			Symbol:       p.Tradingsymbol,
			Side:         side,
			Volume:       qty.Abs(),
			OpenPrice:    decimal.NewFromFloat(p.AveragePrice),
			CurrentPrice: decimal.NewFromFloat(p.LastPrice),
			Profit:       decimal.NewFromFloat(p.PnL),
			Comment:      p.Product,
		})
	}
	return out
}

// orderTypeCode maps a Kite transaction and order type onto the pending
// order codes. MARKET orders only rest as AMO and are treated as limits.
func orderTypeCode(transactionType, orderType string) int {
	buy := transactionType == txnBuy
	switch orderType {
	case orderTypeSLM:
		if buy {
			return types.OrderBuyStop
		}
		return types.OrderSellStop
	case orderTypeSL:
		if buy {
			return types.OrderBuyStopLimit
		}
		return types.OrderSellStopLimit
	default:
		if buy {
			return types.OrderBuyLimit
		}
		return types.OrderSellLimit
	}
}

// orderTicket parses the numeric Kite order id, hashing anything else.
func orderTicket(id string) int64 {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() >> 1)
}

func toOrders(orders kiteconnect.Orders) []types.OrderRecord {
	out := make([]types.OrderRecord, 0, len(orders))
	for _, o := range orders {
		if !pendingStatuses[o.Status] {
			continue
		}
		code := orderTypeCode(o.TransactionType, o.OrderType)
		// stop orders rest at their trigger
		price := o.Price
		if o.OrderType == orderTypeSLM || o.OrderType == orderTypeSL {
			price = o.TriggerPrice
		}
		out = append(out, types.OrderRecord{
			Ticket:    orderTicket(o.OrderID),
			Symbol:    o.TradingSymbol,
			Type:      code,
			Volume:    decimal.NewFromFloat(float64(o.Quantity)),
			OpenPrice: decimal.NewFromFloat(price),
			SetupTime: setupTime(o.OrderTimestamp.Time),
		})
	}
	return out
}

func setupTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}
