// Package app owns the application lifecycle. It wires the dependency graph
// from configuration, attaches feed handlers for the selected run mode, and
// supervises the long-running goroutines until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flashscan/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, starts the goroutines for the configured mode, and
// blocks until the context is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting flashscan",
		slog.String("mode", a.cfg.Mode),
		slog.String("executor", a.cfg.Executor.Kind),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	arb := mode == "scan" || mode == "full"
	flash := (mode == "flash" || mode == "full") && deps.Flash != nil

	g, ctx := errgroup.WithContext(ctx)

	ticks := a.attachHandlers(ctx, deps, arb, flash)

	g.Go(func() error { return deps.WS.Run(ctx) })
	g.Go(func() error { return deps.Poller.Run(ctx) })
	g.Go(func() error { return a.tickLoop(ctx, deps, ticks, flash) })
	g.Go(func() error { return a.consumeOpportunities(ctx, deps) })
	g.Go(func() error { return a.fanOutFlashEvents(ctx, deps) })
	g.Go(func() error { return a.cleanupLoop(ctx, deps) })

	if deps.Notifier != nil {
		g.Go(func() error { return deps.Notifier.Run(ctx, deps.Bus) })
	}
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.S3.Interval.Duration, archiveRetention(a.cfg))
		})
	}

	err = g.Wait()

	// Unwind any open positions before the backends close.
	if flash {
		deps.Flash.Disable(context.WithoutCancel(ctx))
	}
	return err
}

// Close tears down all resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down flashscan")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
