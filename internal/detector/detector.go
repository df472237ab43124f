package detector

import (
	"position-bridge/internal/fingerprint"
	"position-bridge/internal/types"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest balance movement that is still treated as
// rounding noise. A delta must be strictly greater to count as a change.
var BalanceTolerance = decimal.New(1, -2)

// Reason names the first check that reported a change.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEmpty       Reason = "baseline_empty"
	ReasonLogin       Reason = "login"
	ReasonBalance     Reason = "balance"
	ReasonCounts      Reason = "counts"
	ReasonFingerprint Reason = "fingerprint"
)

// Baseline summarises the last snapshot that reached the current client.
// The zero value is the empty baseline.
type Baseline struct {
	lastFingerprint    string
	lastAccountLogin   int64
	lastBalance        decimal.Decimal
	lastPositionsCount int
	lastOrdersCount    int
}

// IsEmpty reports whether nothing has been delivered since the last reset.
func (b *Baseline) IsEmpty() bool {
	return b.lastFingerprint == ""
}

// Fingerprint returns the fingerprint of the last delivered snapshot.
func (b *Baseline) Fingerprint() string {
	return b.lastFingerprint
}

// Reset returns the baseline to empty so the next comparison always
// reports a change. Called whenever a new client connects.
func (b *Baseline) Reset() {
	*b = Baseline{}
}

// Update records s as delivered. Call only after the frame built from s
// was written successfully.
func (b *Baseline) Update(s *types.StateSnapshot) {
	if s == nil {
		return
	}
	b.lastFingerprint = fingerprint.Compute(s)
	b.lastAccountLogin = s.Account.Login
	b.lastBalance = s.Account.Balance
	b.lastPositionsCount = len(s.Positions)
	b.lastOrdersCount = len(s.Orders)
}

// Compare runs the change checks cheapest first and returns the reason of
// the first one that fires, or ReasonNone.
func Compare(s *types.StateSnapshot, b *Baseline) Reason {
	if s == nil {
		return ReasonNone
	}
	if b == nil || b.IsEmpty() {
		return ReasonEmpty
	}
	if s.Account.Login != b.lastAccountLogin {
		return ReasonLogin
	}
	if s.Account.Balance.Sub(b.lastBalance).Abs().GreaterThan(BalanceTolerance) {
		return ReasonBalance
	}
	if len(s.Positions) != b.lastPositionsCount || len(s.Orders) != b.lastOrdersCount {
		return ReasonCounts
	}
	// Balance already passed the tolerance check above.
	if fingerprint.ComputeWithBalance(s, b.lastBalance) != b.lastFingerprint {
		return ReasonFingerprint
	}
	return ReasonNone
}

// HasChanged reports whether s must be delivered given baseline b.
func HasChanged(s *types.StateSnapshot, b *Baseline) bool {
	return Compare(s, b) != ReasonNone
}
