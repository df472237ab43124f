package interfaces

import (
	"context"

	"position-bridge/internal/types"
)

// AccountSource is the read-only view of the trading account that the
// snapshot builder polls once per cycle. The three reads are not
// transactional; brief skew between them is tolerated.
type AccountSource interface {
	Account(ctx context.Context) (types.AccountSummary, error)
	Positions(ctx context.Context) ([]types.PositionRecord, error)
	Orders(ctx context.Context) ([]types.OrderRecord, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}
