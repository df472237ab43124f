// Package fingerprint derives a compact comparison key from a snapshot.
//
// The key covers only the business-relevant fields of the account: login,
// balance, the position/order counts and, per record, ticket, symbol,
// side/type, volume, open price, stop-loss and take-profit. Equity,
// floating profit and current price are left out because they move on
// every tick.
//
// Records are visited in the snapshot's own order, so two snapshots that
// hold the same records in a different order produce different keys.
// The key is not a cryptographic hash and is only compared within one
// process lifetime.
package fingerprint

import (
	"strconv"
	"strings"

	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

const (
	fieldSep  = ':'
	recordSep = '|'

	volumePlaces = 2
	pricePlaces  = 5
	moneyPlaces  = 2
)

// Compute returns the fingerprint of s. A nil snapshot yields "".
func Compute(s *types.StateSnapshot) string {
	if s == nil {
		return ""
	}
	return ComputeWithBalance(s, s.Account.Balance)
}

// ComputeWithBalance is Compute with the account balance replaced by
// balance. The change detector uses it so that balance movement inside the
// tolerance band cannot leak into the fingerprint through rounding.
func ComputeWithBalance(s *types.StateSnapshot, balance decimal.Decimal) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	b.Grow(32 + 64*(len(s.Positions)+len(s.Orders)))

	b.WriteString(strconv.FormatInt(s.Account.Login, 10))
	b.WriteByte(fieldSep)
	b.WriteString(balance.StringFixed(moneyPlaces))
	b.WriteByte(fieldSep)
	b.WriteString(strconv.Itoa(len(s.Positions)))
	b.WriteByte(fieldSep)
	b.WriteString(strconv.Itoa(len(s.Orders)))
	b.WriteByte(recordSep)

	for i := range s.Positions {
		p := &s.Positions[i]
		writeRecord(&b, 'P', p.Ticket, p.Symbol, int(p.Side), p.Volume, p.OpenPrice, p.StopLoss, p.TakeProfit)
	}
	for i := range s.Orders {
		o := &s.Orders[i]
		writeRecord(&b, 'O', o.Ticket, o.Symbol, o.Type, o.Volume, o.OpenPrice, o.StopLoss, o.TakeProfit)
	}

	return b.String()
}

func writeRecord(b *strings.Builder, kind byte, ticket int64, symbol string, typ int, volume, open, sl, tp decimal.Decimal) {
	b.WriteByte(kind)
	b.WriteByte(fieldSep)
	b.WriteString(strconv.FormatInt(ticket, 10))
	b.WriteByte(fieldSep)
	b.WriteString(symbol)
	b.WriteByte(fieldSep)
	b.WriteString(strconv.Itoa(typ))
	b.WriteByte(fieldSep)
	b.WriteString(volume.StringFixed(volumePlaces))
	b.WriteByte(fieldSep)
	b.WriteString(open.StringFixed(pricePlaces))
	b.WriteByte(fieldSep)
	b.WriteString(sl.StringFixed(pricePlaces))
	b.WriteByte(fieldSep)
	b.WriteString(tp.StringFixed(pricePlaces))
	b.WriteByte(recordSep)
}
