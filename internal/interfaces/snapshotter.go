package interfaces

import (
	"context"

	"position-bridge/internal/types"
)

// Snapshotter produces one complete StateSnapshot per call.
type Snapshotter interface {
	Build(ctx context.Context) (*types.StateSnapshot, error)
}

// StatsProvider exposes delivery counters. Safe to call from any goroutine.
type StatsProvider interface {
	Stats() types.DeliveryStats
}
