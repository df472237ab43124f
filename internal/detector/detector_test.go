package detector

import (
	"testing"
	"time"

	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

func snapshot(balance string) *types.StateSnapshot {
	return &types.StateSnapshot{
		TakenAt: time.Unix(1700000000, 0),
		Account: types.AccountSummary{
			Login:   12345,
			Balance: decimal.RequireFromString(balance),
			Equity:  decimal.RequireFromString(balance),
			Server:  "Demo-Server",
		},
		Positions: []types.PositionRecord{
			{
				Ticket:    555,
				Symbol:    "EURUSD",
				Side:      types.SideBuy,
				Volume:    decimal.RequireFromString("1.00"),
				OpenPrice: decimal.RequireFromString("1.10500"),
				Profit:    decimal.RequireFromString("12.34"),
			},
		},
	}
}

func delivered(s *types.StateSnapshot) *Baseline {
	b := &Baseline{}
	b.Update(s)
	return b
}

func TestEmptyBaselineAlwaysChanged(t *testing.T) {
	b := &Baseline{}
	if !b.IsEmpty() {
		t.Fatal("Expected zero baseline to be empty")
	}
	if got := Compare(snapshot("1000.00"), b); got != ReasonEmpty {
		t.Errorf("Expected reason %q, got %q", ReasonEmpty, got)
	}
	if !HasChanged(snapshot("1000.00"), nil) {
		t.Error("Expected nil baseline to report a change")
	}
}

func TestIdenticalSnapshotNotChanged(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	if HasChanged(snapshot("1000.00"), b) {
		t.Error("Expected identical snapshot to report no change")
	}
}

func TestBalanceToleranceBoundary(t *testing.T) {
	b := delivered(snapshot("1000.00"))

	if got := Compare(snapshot("1000.0099"), b); got != ReasonNone {
		t.Errorf("Expected delta 0.0099 to be ignored, got reason %q", got)
	}
	if got := Compare(snapshot("999.9901"), b); got != ReasonNone {
		t.Errorf("Expected delta -0.0099 to be ignored, got reason %q", got)
	}
	if got := Compare(snapshot("1000.0101"), b); got != ReasonBalance {
		t.Errorf("Expected delta 0.0101 to report %q, got %q", ReasonBalance, got)
	}
	if got := Compare(snapshot("999.9899"), b); got != ReasonBalance {
		t.Errorf("Expected delta -0.0101 to report %q, got %q", ReasonBalance, got)
	}
}

func TestBalanceExactlyAtTolerance(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	if HasChanged(snapshot("1000.01"), b) {
		t.Error("Expected delta of exactly 0.01 to be ignored")
	}
}

func TestLoginSwitch(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	s := snapshot("1000.00")
	s.Account.Login = 67890
	if got := Compare(s, b); got != ReasonLogin {
		t.Errorf("Expected reason %q, got %q", ReasonLogin, got)
	}
}

func TestCountChange(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	s := snapshot("1000.00")
	s.Orders = append(s.Orders, types.OrderRecord{
		Ticket:    901,
		Symbol:    "EURUSD",
		Type:      types.OrderSellStop,
		Volume:    decimal.RequireFromString("0.10"),
		OpenPrice: decimal.RequireFromString("1.09000"),
	})
	if got := Compare(s, b); got != ReasonCounts {
		t.Errorf("Expected reason %q, got %q", ReasonCounts, got)
	}
}

func TestTakeProfitEditCaughtByFingerprint(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	s := snapshot("1000.00")
	s.Positions[0].TakeProfit = decimal.RequireFromString("1.12000")
	if got := Compare(s, b); got != ReasonFingerprint {
		t.Errorf("Expected reason %q, got %q", ReasonFingerprint, got)
	}
}

func TestVolatileFieldsIgnored(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	s := snapshot("1000.00")
	s.Account.Equity = decimal.RequireFromString("950.00")
	s.Positions[0].Profit = decimal.RequireFromString("-50.00")
	s.Positions[0].CurrentPrice = decimal.RequireFromString("1.10000")
	if HasChanged(s, b) {
		t.Error("Expected equity/profit/current price movement to be ignored")
	}
}

func TestResetForcesChange(t *testing.T) {
	s := snapshot("1000.00")
	b := delivered(s)
	if HasChanged(s, b) {
		t.Fatal("Expected no change before reset")
	}
	b.Reset()
	if !b.IsEmpty() {
		t.Error("Expected baseline to be empty after reset")
	}
	if !HasChanged(s, b) {
		t.Error("Expected identical snapshot to report a change after reset")
	}
}

func TestUpdateStoresFingerprint(t *testing.T) {
	b := delivered(snapshot("1000.00"))
	if b.Fingerprint() == "" {
		t.Error("Expected fingerprint to be recorded after update")
	}
	b.Update(nil)
	if b.Fingerprint() == "" {
		t.Error("Expected nil update to leave the baseline alone")
	}
}
