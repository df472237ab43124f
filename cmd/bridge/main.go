package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	must(initializeSystem())
	os.Exit(run(*configPath))
}

// run wires the bridge and blocks until SIGINT or SIGTERM. It returns the
// process exit code so that every deferred cleanup runs before exit.
func run(configPath string) int {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return 1
	}

	src, err := initializeSource(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to configure account source", err)
		return 1
	}
	defer src.Stop(context.Background())
	if err := src.Start(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start account source", err)
		return 1
	}

	core, b, err := initializeBroadcaster(ctx, cfg, src)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to bind listening socket", err, "addr", cfg.ListenAddr())
		return 1
	}

	var ticks <-chan struct{}
	if tt := initializeTicker(ctx, cfg); tt != nil {
		if err := tt.Start(ctx); err != nil {
			logger.Warn(ctx, "Market ticks disabled", "error", err)
		} else {
			ticks = tt.Ticks()
			defer tt.Stop(context.Background())
		}
	}

	if srv := initializeStatus(ctx, cfg, core); srv != nil {
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn(ctx, "Status server shutdown failed", "error", err)
			}
		}()
	}

	schedule(ctx, b, cfg.Interval(), cfg.TickGap(), ticks)

	if err := trace.Shutdown(context.Background()); err != nil {
		logger.Warn(ctx, "Failed to flush traces", "error", err)
	}
	return 0
}

// schedule drives every OnSchedule call from this goroutine until ctx is
// cancelled, then shuts the broadcaster down. A market tick that arrives
// less than tickGap after the previous cycle is dropped; the timer picks up
// whatever it signalled.
func schedule(ctx context.Context, b interfaces.Broadcaster, interval, tickGap time.Duration, ticks <-chan struct{}) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	logger.Info(ctx, "Bridge started",
		"interval", interval.String(),
		"market_ticks", ticks != nil,
		"tick_gap", tickGap.String(),
	)

	var last time.Time
	cycle := func() {
		last = time.Now()
		if _, err := b.OnSchedule(ctx); err != nil {
			logger.Warn(ctx, "Cycle skipped", "error", err)
		}
	}

	for {
		select {
		case <-tick.C:
			cycle()
		case <-ticks:
			if time.Since(last) < tickGap {
				logger.Debug(ctx, "Market tick coalesced into next cycle")
				continue
			}
			cycle()
		case <-ctx.Done():
			logger.Info(ctx, "Shutting down...")
			if err := b.OnShutdown(context.Background()); err != nil {
				logger.ErrorWithErr(ctx, "Shutdown failed", err)
			}
			return
		}
	}
}
