// Package watchdog provides adapters for running the report watchdog.
package watchdog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reportable/reportgen/config"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/observability/statsd"
	"github.com/reportable/reportgen/internal/service"
	"github.com/reportable/reportgen/internal/service/failurenotifier"
)

// Runner provides a simple adapter to run the watchdog loop.
// It constructs the watchdog service and runs the sweep loop.
type Runner struct {
	watchdog *service.WatchdogService
	logger   *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.WatchdogConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo            core.WatchdogRepository
	Placeholders    core.PlaceholderStore
	FailureNotifier *failurenotifier.Service
	Metrics         statsd.Sink
}

// NewRunner creates a new watchdog runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	watchdog, err := wireWatchdogService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire watchdog service: %w", err)
	}

	return &Runner{
		watchdog: watchdog,
		logger:   opts.Logger,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("either DB or Repo must be provided")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireWatchdogService wires up all dependencies for the watchdog service.
func wireWatchdogService(opts RunnerOptions) (*service.WatchdogService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewReportRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return service.NewWatchdogService(service.WatchdogServiceOptions{
		Repo:            repo,
		Placeholders:    opts.Placeholders,
		FailureNotifier: opts.FailureNotifier,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
		Interval:        opts.Config.Interval,
		BatchSize:       opts.Config.BatchSize,
	})
}

// Run starts the watchdog loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting watchdog runner")
	return r.watchdog.Run(ctx)
}
