// Package app provides the top-level application lifecycle for vaultlens.
// It wires the platform clients, exporters, validator, archiver, and
// notifier, then runs the pipeline selected by the configured operating
// mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultlens/vaultlens/internal/config"
	"github.com/vaultlens/vaultlens/internal/notify"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and executes the configured mode. Each run
// gets a unique run_id so log lines from overlapping invocations (e.g. via
// cron) stay distinguishable.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	a.logger = a.logger.With(slog.String("run_id", runID))

	a.logger.InfoContext(ctx, "starting run",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "fetch":
		err = a.FetchMode(ctx, deps)
	case "discover":
		err = a.DiscoverMode(ctx, deps)
	case "export":
		err = a.ExportMode(ctx, deps)
	case "validate":
		err = a.ValidateMode(ctx, deps)
	case "archive":
		err = a.ArchiveMode(ctx, deps)
	case "full":
		err = a.FullMode(ctx, deps)
	default:
		err = fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		_ = deps.Notifier.Notify(ctx, notify.EventError, "Run failed",
			fmt.Sprintf("mode: %s\nerror: %v", a.cfg.Mode, err))
	}
	return err
}

// Close tears down all resources in reverse registration order. Safe to
// call multiple times.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
