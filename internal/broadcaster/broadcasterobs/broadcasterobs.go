package broadcasterobs

import (
	"context"
	"time"

	"position-bridge/internal/broadcaster"
	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/trace"
	"position-bridge/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

type observableBroadcaster struct {
	broadcaster interfaces.Broadcaster
}

var _ interfaces.Broadcaster = (*observableBroadcaster)(nil)

func Wrap(b interfaces.Broadcaster) interfaces.Broadcaster {
	return &observableBroadcaster{
		broadcaster: b,
	}
}

// OnSchedule runs at timer and tick frequency, so quiet cycles are only
// logged at debug level.
func (ob *observableBroadcaster) OnSchedule(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "broadcaster.OnSchedule")
	defer span.End()

	start := time.Now()

	res, err := ob.broadcaster.OnSchedule(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Broadcast cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}

	if trace.Enabled() {
		span.SetAttributes(
			attribute.Bool("accepted", res.Accepted),
			attribute.Bool("delivered", res.Delivered),
			attribute.String("reason", res.Reason),
		)
	}

	if res.Reason == broadcaster.ReasonSendFailed {
		logger.WarnSkip(ctx, 1, "Frame not delivered, client dropped",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, nil
	}

	if res.Accepted || res.Delivered {
		logger.InfoSkip(ctx, 1, "Broadcast cycle completed",
			"accepted", res.Accepted,
			"delivered", res.Delivered,
			"bytes", res.Bytes,
			"reason", res.Reason,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, nil
	}

	logger.DebugSkip(ctx, 1, "Broadcast cycle completed",
		"connected", res.Connected,
		"reason", res.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (ob *observableBroadcaster) OnShutdown(ctx context.Context) error {
	op := logger.StartOperation(ctx, "broadcaster.OnShutdown")

	if err := ob.broadcaster.OnShutdown(op.GetContext()); err != nil {
		op.EndWithError(err)
		return err
	}
	op.End()
	return nil
}
