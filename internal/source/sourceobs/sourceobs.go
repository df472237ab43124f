package sourceobs

import (
	"context"
	"fmt"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/trace"
	"position-bridge/internal/types"
)

// observableSource wraps an AccountSource with logging and tracing
type observableSource struct {
	source interfaces.AccountSource
	name   string
}

// Compile-time interface check
var _ interfaces.AccountSource = (*observableSource)(nil)

// Wrap wraps a source with observability middleware. name tags every log
// line, e.g. "zerodha" or "mock".
func Wrap(source interfaces.AccountSource, name string) interfaces.AccountSource {
	return &observableSource{
		source: source,
		name:   name,
	}
}

// Account reads the account summary with observability
func (o *observableSource) Account(ctx context.Context) (types.AccountSummary, error) {
	ctx, span := trace.StartSpan(ctx, "source.Account")
	defer span.End()

	acc, err := o.source.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read account", err, "source", o.name)
		return types.AccountSummary{}, err
	}

	logger.DebugSkip(ctx, 1, "Account read",
		"source", o.name,
		"login", acc.Login,
		"balance", acc.Balance.String(),
		"equity", acc.Equity.String(),
	)
	return acc, nil
}

// Positions reads open positions with observability
func (o *observableSource) Positions(ctx context.Context) ([]types.PositionRecord, error) {
	ctx, span := trace.StartSpan(ctx, "source.Positions")
	defer span.End()

	ps, err := o.source.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read positions", err, "source", o.name)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions read", "source", o.name, "count", len(ps))
	return ps, nil
}

// Orders reads pending orders with observability
func (o *observableSource) Orders(ctx context.Context) ([]types.OrderRecord, error) {
	ctx, span := trace.StartSpan(ctx, "source.Orders")
	defer span.End()

	orders, err := o.source.Orders(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read orders", err, "source", o.name)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Orders read", "source", o.name, "count", len(orders))
	return orders, nil
}

// Start initializes the source with observability
func (o *observableSource) Start(ctx context.Context) error {
	op := logger.StartOperation(ctx, "source.Start", "source", o.name)

	if err := o.source.Start(op.GetContext()); err != nil {
		op.EndWithError(err)
		return fmt.Errorf("source start failed: %w", err)
	}

	op.End()
	logger.InfoSkip(op.GetContext(), 1, "Account source started", "source", o.name)
	return nil
}

// Stop shuts down the source with observability
func (o *observableSource) Stop(ctx context.Context) {
	op := logger.StartOperation(ctx, "source.Stop", "source", o.name)
	o.source.Stop(op.GetContext())
	op.End()
	logger.InfoSkip(op.GetContext(), 1, "Account source stopped", "source", o.name)
}
