package fingerprint

import (
	"testing"
	"time"

	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

func snapshot() *types.StateSnapshot {
	return &types.StateSnapshot{
		TakenAt: time.Unix(1700000000, 0),
		Account: types.AccountSummary{
			Login:   12345,
			Balance: decimal.RequireFromString("1000.00"),
			Equity:  decimal.RequireFromString("1012.34"),
			Server:  "Demo-Server",
		},
		Positions: []types.PositionRecord{
			{
				Ticket:       555,
				Symbol:       "EURUSD",
				Side:         types.SideBuy,
				Volume:       decimal.RequireFromString("1.00"),
				OpenPrice:    decimal.RequireFromString("1.10500"),
				CurrentPrice: decimal.RequireFromString("1.10623"),
				Profit:       decimal.RequireFromString("12.34"),
			},
			{
				Ticket:    556,
				Symbol:    "GBPUSD",
				Side:      types.SideSell,
				Volume:    decimal.RequireFromString("0.5"),
				OpenPrice: decimal.RequireFromString("1.27"),
				StopLoss:  decimal.RequireFromString("1.28"),
			},
		},
		Orders: []types.OrderRecord{
			{
				Ticket:    900,
				Symbol:    "USDJPY",
				Type:      types.OrderBuyLimit,
				Volume:    decimal.RequireFromString("0.10"),
				OpenPrice: decimal.RequireFromString("149.5"),
			},
		},
	}
}

func TestComputeFormat(t *testing.T) {
	got := Compute(snapshot())
	want := "12345:1000.00:2:1|" +
		"P:555:EURUSD:0:1.00:1.10500:0.00000:0.00000|" +
		"P:556:GBPUSD:1:0.50:1.27000:1.28000:0.00000|" +
		"O:900:USDJPY:2:0.10:149.50000:0.00000:0.00000|"
	if got != want {
		t.Errorf("Expected fingerprint\n%s\ngot\n%s", want, got)
	}
}

func TestComputeDeterministic(t *testing.T) {
	s := snapshot()
	first := Compute(s)
	for i := 0; i < 10; i++ {
		if got := Compute(s); got != first {
			t.Fatalf("Expected identical fingerprint on call %d, got %s vs %s", i, got, first)
		}
	}
}

func TestComputeIgnoresVolatileFields(t *testing.T) {
	a := snapshot()
	b := snapshot()
	b.Account.Equity = decimal.RequireFromString("987.65")
	b.Positions[0].Profit = decimal.RequireFromString("-40.00")
	b.Positions[0].CurrentPrice = decimal.RequireFromString("1.09900")
	b.TakenAt = b.TakenAt.Add(time.Minute)

	if Compute(a) != Compute(b) {
		t.Error("Expected equity/profit/current price changes to leave the fingerprint unchanged")
	}
}

func TestComputeDetectsStopLossEdit(t *testing.T) {
	a := snapshot()
	b := snapshot()
	b.Positions[0].StopLoss = decimal.RequireFromString("1.10000")

	if Compute(a) == Compute(b) {
		t.Error("Expected a stop-loss edit to change the fingerprint")
	}
}

func TestComputeIsOrderSensitive(t *testing.T) {
	a := snapshot()
	b := snapshot()
	b.Positions[0], b.Positions[1] = b.Positions[1], b.Positions[0]

	if Compute(a) == Compute(b) {
		t.Error("Expected reordering positions to change the fingerprint")
	}
}

func TestComputeRoundsToContractPrecision(t *testing.T) {
	a := snapshot()
	b := snapshot()
	b.Account.Balance = decimal.RequireFromString("1000.001")
	b.Positions[0].OpenPrice = decimal.RequireFromString("1.105001")

	if Compute(a) != Compute(b) {
		t.Error("Expected sub-precision differences to be rounded away")
	}
}

func TestComputeNil(t *testing.T) {
	if got := Compute(nil); got != "" {
		t.Errorf("Expected empty fingerprint for nil snapshot, got %q", got)
	}
}
