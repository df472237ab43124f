package interfaces

import "context"

// TickTrigger delivers high-frequency "something happened" signals
// (market ticks, order updates). Signals are coalesced: a slow consumer
// sees at most one pending signal.
type TickTrigger interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Ticks() <-chan struct{}
}
