package interfaces

import (
	"context"

	"position-bridge/internal/types"
)

// Broadcaster is the scheduler-facing entry point. The host calls
// OnSchedule on every market tick and every timer tick, and OnShutdown
// once on exit. Calls are never concurrent.
type Broadcaster interface {
	OnSchedule(ctx context.Context) (*types.CycleResult, error)
	OnShutdown(ctx context.Context) error
}
