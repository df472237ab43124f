// Package snapshot reads the account source into an immutable StateSnapshot.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/types"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

type Builder struct {
	src   interfaces.AccountSource
	clock Clock
}

func NewBuilder(src interfaces.AccountSource, clock Clock) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{src: src, clock: clock}
}

// Build performs the three reads in account, positions, orders order. The
// reads are not atomic. Records keep the order the source returned them
// in, which the fingerprint depends on. Any read failure fails the whole
// snapshot; a partial snapshot is never returned.
func (b *Builder) Build(ctx context.Context) (*types.StateSnapshot, error) {
	takenAt := b.clock()

	account, err := b.src.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	positions, err := b.src.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	orders, err := b.src.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	s := &types.StateSnapshot{
		TakenAt:   takenAt,
		Account:   account,
		Positions: make([]types.PositionRecord, len(positions)),
		Orders:    make([]types.OrderRecord, len(orders)),
	}
	copy(s.Positions, positions)
	copy(s.Orders, orders)
	return s, nil
}
