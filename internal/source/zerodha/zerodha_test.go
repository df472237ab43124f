package zerodha

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"position-bridge/internal/types"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
)

// fakeKite serves canned API documents in the Kite JSON shape.
type fakeKite struct {
	profile   string
	margins   string
	positions string
	orders    string
	err       error
}

func decode[T any](t *testing.T, doc string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		t.Fatalf("Expected fixture to decode, got %v", err)
	}
	return v
}

type fakeClient struct {
	t *testing.T
	f *fakeKite
}

func (c fakeClient) GetUserProfile() (kiteconnect.UserProfile, error) {
	if c.f.err != nil {
		return kiteconnect.UserProfile{}, c.f.err
	}
	return decode[kiteconnect.UserProfile](c.t, c.f.profile), nil
}

func (c fakeClient) GetUserMargins() (kiteconnect.AllMargins, error) {
	if c.f.err != nil {
		return kiteconnect.AllMargins{}, c.f.err
	}
	return decode[kiteconnect.AllMargins](c.t, c.f.margins), nil
}

func (c fakeClient) GetPositions() (kiteconnect.Positions, error) {
	if c.f.err != nil {
		return kiteconnect.Positions{}, c.f.err
	}
	return decode[kiteconnect.Positions](c.t, c.f.positions), nil
}

func (c fakeClient) GetOrders() (kiteconnect.Orders, error) {
	if c.f.err != nil {
		return nil, c.f.err
	}
	return decode[kiteconnect.Orders](c.t, c.f.orders), nil
}

func fixture() *fakeKite {
	return &fakeKite{
		profile: `{"user_id":"AB1234","broker":"ZERODHA"}`,
		margins: `{"equity":{"enabled":true,"net":1012.34,"available":{"cash":1000.00}}}`,
		positions: `{"net":[
			{"tradingsymbol":"INFY","exchange":"NSE","instrument_token":408065,"product":"CNC","quantity":10,"average_price":1500.5,"last_price":1510.25,"pnl":97.5},
			{"tradingsymbol":"SBIN","exchange":"NSE","instrument_token":779521,"product":"MIS","quantity":0,"average_price":600,"last_price":601,"pnl":12},
			{"tradingsymbol":"TCS","exchange":"NSE","instrument_token":2953217,"product":"MIS","quantity":-5,"average_price":3500,"last_price":3490,"pnl":50}
		]}`,
		orders: `[
			{"order_id":"151220000000001","status":"OPEN","tradingsymbol":"INFY","transaction_type":"SELL","order_type":"LIMIT","quantity":10,"price":1550,"trigger_price":0,"order_timestamp":"2024-01-15 09:20:00"},
			{"order_id":"151220000000002","status":"TRIGGER PENDING","tradingsymbol":"INFY","transaction_type":"SELL","order_type":"SL-M","quantity":10,"price":0,"trigger_price":1480,"order_timestamp":"2024-01-15 09:21:00"},
			{"order_id":"151220000000003","status":"COMPLETE","tradingsymbol":"TCS","transaction_type":"SELL","order_type":"MARKET","quantity":5,"price":0,"trigger_price":0,"order_timestamp":"2024-01-15 09:22:00"}
		]`,
	}
}

func newTestSource(t *testing.T, f *fakeKite, login int64) *Source {
	return newWithClient(fakeClient{t: t, f: f}, Params{APIKey: "key", AccessToken: "token", Login: login})
}

func TestStartResolvesLogin(t *testing.T) {
	s := newTestSource(t, fixture(), 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	acc, err := s.Account(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if acc.Login != loginFromUserID("AB1234") || acc.Login == 0 {
		t.Errorf("Expected login derived from user id, got %d", acc.Login)
	}
	if acc.Server != "ZERODHA" {
		t.Errorf("Expected server ZERODHA, got %s", acc.Server)
	}
	if acc.Balance.StringFixed(2) != "1000.00" || acc.Equity.StringFixed(2) != "1012.34" {
		t.Errorf("Expected 1000.00/1012.34, got %s/%s", acc.Balance, acc.Equity)
	}
}

func TestStartConfiguredLogin(t *testing.T) {
	s := newTestSource(t, fixture(), 12345)
	_ = s.Start(context.Background())
	acc, _ := s.Account(context.Background())
	if acc.Login != 12345 {
		t.Errorf("Expected configured login 12345, got %d", acc.Login)
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	s := newWithClient(fakeClient{t: t, f: fixture()}, Params{})
	if err := s.Start(context.Background()); err == nil {
		t.Error("Expected missing credentials to fail")
	}
}

func TestPositionsConversion(t *testing.T) {
	s := newTestSource(t, fixture(), 1)
	ps, err := s.Positions(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("Expected flat position to be skipped, got %d", len(ps))
	}

	infy := ps[0]
	if infy.Symbol != "INFY" || infy.Side != types.SideBuy {
		t.Errorf("Expected INFY buy, got %s %s", infy.Symbol, infy.Side)
	}
	if infy.Volume.String() != "10" || infy.OpenPrice.StringFixed(5) != "1500.50000" {
		t.Errorf("Unexpected volume/price %s/%s", infy.Volume, infy.OpenPrice)
	}
	if infy.Ticket != 408065<<4|1 {
		t.Errorf("Expected ticket to combine token and product, got %d", infy.Ticket)
	}
	if infy.Comment != "CNC" {
		t.Errorf("Expected product as comment, got %q", infy.Comment)
	}

	tcs := ps[1]
	if tcs.Side != types.SideSell || tcs.Volume.String() != "5" {
		t.Errorf("Expected TCS sell 5, got %s %s", tcs.Side, tcs.Volume)
	}
}

func TestOrdersConversion(t *testing.T) {
	s := newTestSource(t, fixture(), 1)
	orders, err := s.Orders(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("Expected completed order to be skipped, got %d", len(orders))
	}
	if orders[0].Ticket != 151220000000001 || orders[0].Type != types.OrderSellLimit {
		t.Errorf("Expected sell limit 151220000000001, got %d type %d", orders[0].Ticket, orders[0].Type)
	}
	if orders[1].Type != types.OrderSellStop || orders[1].OpenPrice.String() != "1480" {
		t.Errorf("Expected sell stop at trigger 1480, got type %d at %s", orders[1].Type, orders[1].OpenPrice)
	}
	if orders[0].SetupTime.IsZero() {
		t.Error("Expected setup time to be parsed")
	}
}

func TestOrderTypeCode(t *testing.T) {
	cases := []struct {
		txn, typ string
		want     int
	}{
		{"BUY", "LIMIT", types.OrderBuyLimit},
		{"SELL", "LIMIT", types.OrderSellLimit},
		{"BUY", "SL-M", types.OrderBuyStop},
		{"SELL", "SL-M", types.OrderSellStop},
		{"BUY", "SL", types.OrderBuyStopLimit},
		{"SELL", "SL", types.OrderSellStopLimit},
		{"BUY", "MARKET", types.OrderBuyLimit},
	}
	for _, c := range cases {
		if got := orderTypeCode(c.txn, c.typ); got != c.want {
			t.Errorf("%s %s: expected %d, got %d", c.txn, c.typ, c.want, got)
		}
	}
}

func TestOrderTicketFallsBackToHash(t *testing.T) {
	a, b := orderTicket("X-1"), orderTicket("X-1")
	if a != b || a < 0 {
		t.Errorf("Expected stable non-negative hash, got %d and %d", a, b)
	}
	if orderTicket("X-2") == a {
		t.Error("Expected different ids to hash differently")
	}
}

func TestAPIErrorsAreWrapped(t *testing.T) {
	f := fixture()
	f.err = errors.New("TokenException")
	s := newTestSource(t, f, 1)

	if _, err := s.Account(context.Background()); !errors.Is(err, f.err) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if _, err := s.Positions(context.Background()); !errors.Is(err, f.err) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if _, err := s.Orders(context.Background()); !errors.Is(err, f.err) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestTickerCoalescesSignals(t *testing.T) {
	tk := NewTicker("key", "token", []uint32{408065})
	for i := 0; i < 5; i++ {
		tk.onTick(models.Tick{InstrumentToken: 408065})
	}
	tk.onOrderUpdate(kiteconnect.Order{OrderID: "1", Status: "OPEN"})

	if n := len(tk.Ticks()); n != 1 {
		t.Fatalf("Expected a single pending signal, got %d", n)
	}
	<-tk.Ticks()
	select {
	case <-tk.Ticks():
		t.Error("Expected no further signal")
	default:
	}
}
