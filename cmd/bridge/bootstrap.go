package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"position-bridge/internal/broadcaster"
	"position-bridge/internal/broadcaster/broadcasterobs"
	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/snapshot"
	"position-bridge/internal/source/mock"
	"position-bridge/internal/source/natskv"
	"position-bridge/internal/source/sourceobs"
	"position-bridge/internal/source/sqlsource"
	"position-bridge/internal/source/zerodha"
	"position-bridge/internal/status"
	"position-bridge/internal/store"
	"position-bridge/internal/trace"
	"position-bridge/internal/transport"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeSource builds the configured account source with observability
func initializeSource(ctx context.Context, cfg *store.Config) (interfaces.AccountSource, error) {
	var src interfaces.AccountSource

	switch cfg.Source.Type {
	case store.SourceZerodha:
		src = zerodha.New(zerodha.Params{
			APIKey:      os.Getenv(cfg.Source.Zerodha.APIKeyEnv),
			AccessToken: os.Getenv(cfg.Source.Zerodha.TokenEnv),
			Login:       cfg.Account.Login,
		})

	case store.SourceSQL:
		s, err := sqlsource.Open(sqlsource.Params{
			Driver: cfg.Source.SQL.Driver,
			DSN:    os.Getenv(cfg.Source.SQL.DSNEnv),
			Schema: cfg.Source.SQL.Schema,
			Login:  cfg.Account.Login,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Source.SQL.DSNEnv, err)
		}
		src = s

	case store.SourceNATS:
		src = natskv.New(natskv.Params{
			URLs:   cfg.Source.NATS.URLs,
			Bucket: cfg.Source.NATS.Bucket,
			Login:  cfg.Account.Login,
		})

	default:
		balance, err := decimal.NewFromString(cfg.Source.Mock.Balance)
		if err != nil {
			return nil, fmt.Errorf("source.mock.balance: %w", err)
		}
		logger.Warn(ctx, "Running in DRY_RUN mode - account state is simulated")
		src = mock.New(mock.Config{
			Login:     cfg.Account.Login,
			Server:    cfg.Account.Server,
			Balance:   balance,
			Positions: *cfg.Source.Mock.Positions,
			Seed:      cfg.Source.Mock.Seed,
			Simulate:  true,
		})
	}

	logger.Info(ctx, "Account source selected", "type", cfg.Source.Type, "login", cfg.Account.Login)

	// Wrap with observability middleware
	return sourceobs.Wrap(src, cfg.Source.Type), nil
}

// initializeBroadcaster binds the listening socket and wires the pipeline.
// A bind failure is fatal for the caller.
func initializeBroadcaster(ctx context.Context, cfg *store.Config, src interfaces.AccountSource) (*broadcaster.Broadcaster, interfaces.Broadcaster, error) {
	ln, err := transport.Listen(cfg.ListenAddr())
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "Listening for bridge client", "addr", ln.Addr().String())

	t := transport.New(ln, transport.WithWriteTimeout(cfg.WriteTimeout()))
	b := broadcaster.New(snapshot.NewBuilder(src, time.Now), t)

	// Wrap with observability middleware
	return b, broadcasterobs.Wrap(b), nil
}

// initializeTicker returns the market-tick trigger, or nil when disabled
func initializeTicker(ctx context.Context, cfg *store.Config) interfaces.TickTrigger {
	if !cfg.Schedule.MarketTicks {
		return nil
	}
	return zerodha.NewTicker(
		os.Getenv(cfg.Source.Zerodha.APIKeyEnv),
		os.Getenv(cfg.Source.Zerodha.TokenEnv),
		cfg.Source.Zerodha.Instruments,
	)
}

// initializeStatus starts the HTTP status endpoint, or returns nil when
// no address is configured
func initializeStatus(ctx context.Context, cfg *store.Config, stats interfaces.StatsProvider) *status.Server {
	if cfg.Status.Addr == "" {
		return nil
	}
	srv := status.NewServer(cfg.Status.Addr, stats)
	if err := srv.Start(ctx); err != nil {
		logger.Warn(ctx, "Status server disabled", "addr", cfg.Status.Addr, "error", err)
		return nil
	}
	return srv
}
