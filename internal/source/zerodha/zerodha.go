package zerodha

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/types"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// kiteAPI is the subset of the Kite Connect client the source reads from.
type kiteAPI interface {
	GetUserProfile() (kiteconnect.UserProfile, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
	GetPositions() (kiteconnect.Positions, error)
	GetOrders() (kiteconnect.Orders, error)
}

type Params struct {
	APIKey      string
	AccessToken string
	// Login overrides the numeric login derived from the Kite user id.
	Login int64
}

// Source reads account state from the Kite Connect REST API.
type Source struct {
	p   Params
	kc  kiteAPI
	mu  sync.RWMutex
	acc types.AccountSummary
}

var _ interfaces.AccountSource = (*Source)(nil)

func New(p Params) *Source {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(kc, p)
}

func newWithClient(kc kiteAPI, p Params) *Source {
	return &Source{p: p, kc: kc}
}

// Start resolves the user profile once; login and broker do not change for
// the lifetime of an access token.
func (s *Source) Start(ctx context.Context) error {
	if s.p.APIKey == "" || s.p.AccessToken == "" {
		return errors.New("missing API key/access token")
	}
	profile, err := s.kc.GetUserProfile()
	if err != nil {
		return fmt.Errorf("failed to fetch user profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc.Login = s.p.Login
	if s.acc.Login == 0 {
		s.acc.Login = loginFromUserID(profile.UserID)
	}
	s.acc.Server = profile.Broker
	return nil
}

func (s *Source) Stop(ctx context.Context) {}

func (s *Source) Account(ctx context.Context) (types.AccountSummary, error) {
	margins, err := s.kc.GetUserMargins()
	if err != nil {
		return types.AccountSummary{}, fmt.Errorf("failed to fetch margins: %w", err)
	}

	s.mu.RLock()
	acc := s.acc
	s.mu.RUnlock()

	acc.Balance, acc.Equity = balanceFromMargins(margins)
	return acc, nil
}

func (s *Source) Positions(ctx context.Context) ([]types.PositionRecord, error) {
	ps, err := s.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	return toPositions(ps.Net), nil
}

func (s *Source) Orders(ctx context.Context) ([]types.OrderRecord, error) {
	orders, err := s.kc.GetOrders()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return toOrders(orders), nil
}

// loginFromUserID maps an alphanumeric Kite user id onto a stable number.
func loginFromUserID(userID string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum32())
}
