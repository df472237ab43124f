// Package broadcaster is the scheduler-facing glue. Each OnSchedule call
// runs one complete cycle: drop a client that went away, accept a pending
// client if none is attached, build a snapshot and send it as a frame only
// when it differs from what the client last received.
//
// OnSchedule and OnShutdown must not be called concurrently. Stats may be
// read from any goroutine.
package broadcaster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"position-bridge/internal/detector"
	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/transport"
	"position-bridge/internal/types"
	"position-bridge/internal/wire"
)

// Cycle outcomes that are not detector reasons.
const (
	ReasonNoClient   = "no_client"
	ReasonUnchanged  = "unchanged"
	ReasonSendFailed = "send_failed"
	ReasonSnapshot   = "snapshot_failed"
	ReasonClosed     = "closed"
)

type Broadcaster struct {
	snapshots interfaces.Snapshotter
	transport *transport.Transport
	baseline  detector.Baseline
	now       func() time.Time

	mu    sync.Mutex
	stats types.DeliveryStats
}

var (
	_ interfaces.Broadcaster   = (*Broadcaster)(nil)
	_ interfaces.StatsProvider = (*Broadcaster)(nil)
)

func New(snapshots interfaces.Snapshotter, t *transport.Transport) *Broadcaster {
	b := &Broadcaster{snapshots: snapshots, transport: t, now: time.Now}
	b.stats.State = t.State().String()
	return b
}

// OnSchedule runs one cycle. Socket failures never surface as errors; they
// show up as Reason send_failed and the transport goes back to listening.
// An error is returned only when the snapshot could not be built or
// encoded, in which case nothing was sent and the baseline is untouched.
func (b *Broadcaster) OnSchedule(ctx context.Context) (*types.CycleResult, error) {
	res := &types.CycleResult{}
	defer b.publishState(true)

	if b.transport.State() == transport.StateClosed {
		res.Reason = ReasonClosed
		return res, nil
	}

	b.transport.Probe(ctx)
	if b.transport.TryAccept(ctx) {
		b.baseline.Reset()
		res.Accepted = true
		b.bump(func(s *types.DeliveryStats) { s.Accepts++ })
	}
	res.Connected = b.transport.Connected()
	if !res.Connected {
		res.Reason = ReasonNoClient
		return res, nil
	}

	snap, err := b.snapshots.Build(ctx)
	if err != nil {
		res.Reason = ReasonSnapshot
		b.bump(func(s *types.DeliveryStats) { s.SnapshotErrors++ })
		return res, fmt.Errorf("failed to build snapshot: %w", err)
	}

	reason := detector.Compare(snap, &b.baseline)
	if reason == detector.ReasonNone {
		res.Reason = ReasonUnchanged
		res.Fingerprint = b.baseline.Fingerprint()
		return res, nil
	}
	res.Changed = true

	payload, err := wire.Serialize(snap)
	if err != nil {
		res.Reason = ReasonSnapshot
		return res, err
	}

	remote := b.transport.RemoteAddr()
	if err := b.transport.Send(ctx, payload); err != nil {
		res.Reason = ReasonSendFailed
		res.Connected = false
		b.bump(func(s *types.DeliveryStats) { s.SendFailures++ })
		return res, nil
	}

	// Only a frame that was actually written becomes the new baseline.
	b.baseline.Update(snap)
	res.Delivered = true
	res.Bytes = len(payload) + wire.HeaderSize
	res.Reason = string(reason)
	res.Fingerprint = b.baseline.Fingerprint()

	b.bump(func(s *types.DeliveryStats) {
		s.Frames++
		s.LastBytes = res.Bytes
		s.LastFingerprint = res.Fingerprint
		s.LastDelivery = b.now()
	})
	logger.Delivery(ctx, remote, res.Bytes, len(snap.Positions), len(snap.Orders), res.Reason)
	return res, nil
}

// OnShutdown releases the client and the listening socket. Safe to call
// more than once.
func (b *Broadcaster) OnShutdown(ctx context.Context) error {
	defer b.publishState(false)
	if b.transport.State() == transport.StateClosed {
		return nil
	}
	if err := b.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	logger.Info(ctx, "Broadcaster shut down")
	return nil
}

func (b *Broadcaster) Stats() types.DeliveryStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Broadcaster) bump(f func(*types.DeliveryStats)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(&b.stats)
}

// publishState copies the transport state for Stats readers, which must
// not touch the transport themselves.
func (b *Broadcaster) publishState(cycle bool) {
	state := b.transport.State().String()
	remote := b.transport.RemoteAddr()
	b.bump(func(s *types.DeliveryStats) {
		if cycle {
			s.Cycles++
		}
		s.State = state
		s.Remote = remote
	})
}
