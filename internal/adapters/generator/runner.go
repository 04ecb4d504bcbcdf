// Package generator provides the worker pool that claims queued reports and
// drives them through generation.
package generator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reportable/reportgen/internal/adapters/analyzer"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/domain/progress"
	"github.com/reportable/reportgen/internal/observability/statsd"
	"github.com/reportable/reportgen/internal/service"
	"github.com/reportable/reportgen/internal/service/failurenotifier"
)

// RunnerOptions configures the generation runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Worker settings
	Concurrency      int           // number of worker goroutines; defaults to 1
	MaxGeneration    time.Duration // per-report generation deadline; defaults to 10m
	ProgressInterval time.Duration // progress write cadence; defaults to 2s

	// Phases override the estimator's progress bands.
	Phases []progress.Phase

	// MilestoneRules override how analyzer emissions map to progress updates.
	MilestoneRules []service.MilestoneRule

	// DefaultEstimate seeds the report service the workers share; defaults to 60s.
	DefaultEstimate time.Duration

	// Optional dependency injections (useful for tests/decoupling)
	ReportsRepo     core.ReportRepository
	Analyzer        core.AnalysisRunner
	Placeholders    core.PlaceholderStore
	ContentCache    *core.ContentCacheService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner pulls queued reports and executes generation runs.
type Runner struct {
	reports   *service.ReportService
	generator *service.GeneratorService
	logger    *slog.Logger
	lease     time.Duration
	workers   int
}

// internal wiring helpers to keep NewRunner small

type runnerDeps struct {
	reportsRepo core.ReportRepository
	analyzer    core.AnalysisRunner
	reportSvc   *service.ReportService
	generator   *service.GeneratorService
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func buildRunnerDeps(opts RunnerOptions, maxGeneration time.Duration) (runnerDeps, error) {
	deps := runnerDeps{}

	if opts.ReportsRepo != nil {
		deps.reportsRepo = opts.ReportsRepo
	} else {
		deps.reportsRepo = data.NewReportRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	defaultEstimate := opts.DefaultEstimate
	if defaultEstimate <= 0 {
		defaultEstimate = time.Minute
	}
	deps.reportSvc = service.MustNewReportService(service.ReportServiceOptions{
		Repo:            deps.reportsRepo,
		DefaultEstimate: defaultEstimate,
		Placeholders:    opts.Placeholders,
		ContentCache:    opts.ContentCache,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
	})

	deps.analyzer = opts.Analyzer
	if deps.analyzer == nil {
		deps.analyzer = analyzer.NewSimulatedRunner(analyzer.SimulatedRunnerConfig{})
	}

	genOpts := service.GeneratorServiceOptions{
		Repo:             deps.reportsRepo,
		Runner:           deps.analyzer,
		Placeholders:     opts.Placeholders,
		ContentCache:     opts.ContentCache,
		FailureNotifier:  opts.FailureNotifier,
		Metrics:          opts.Metrics,
		Logger:           opts.Logger,
		ProgressInterval: opts.ProgressInterval,
		MaxGeneration:    maxGeneration,
	}
	if len(opts.Phases) > 0 {
		estimator, err := progress.NewEstimator(opts.Phases)
		if err != nil {
			return runnerDeps{}, fmt.Errorf("build estimator: %w", err)
		}
		genOpts.Estimator = estimator
	}
	if len(opts.MilestoneRules) > 0 {
		extractor, err := service.NewMilestoneExtractor(service.MilestoneExtractorOptions{
			Rules: opts.MilestoneRules,
		})
		if err != nil {
			return runnerDeps{}, fmt.Errorf("build milestone extractor: %w", err)
		}
		genOpts.Milestones = extractor
	}

	generatorSvc, err := service.NewGeneratorService(genOpts)
	if err != nil {
		return runnerDeps{}, fmt.Errorf("build generator service: %w", err)
	}
	deps.generator = generatorSvc

	return deps, nil
}

// NewRunner wires repositories/services and constructs a generation runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.ReportsRepo == nil {
		return nil, errors.New("either DB or ReportsRepo must be provided")
	}

	logger := resolveLogger(opts.Logger)

	maxGeneration := opts.MaxGeneration
	if maxGeneration <= 0 {
		maxGeneration = 10 * time.Minute
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	deps, err := buildRunnerDeps(opts, maxGeneration)
	if err != nil {
		return nil, err
	}

	return &Runner{
		reports:   deps.reportSvc,
		generator: deps.generator,
		logger:    logger,
		lease:     maxGeneration,
		workers:   workers,
	}, nil
}

// Run starts worker goroutines and processes reports until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting generation runner",
		"workers", r.workers, "max_generation", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe for wakeups when new reports are queued
	unsub, ch := r.reports.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		report, err := r.reports.ClaimNextQueued(ctx, r.lease)
		switch {
		case err == nil:
			if report != nil {
				r.processReport(ctx, report)
			}
		case errors.Is(err, model.ErrNoReportsQueued):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("claim next queued: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

// processReport runs one claimed report. Generation outcomes land on the row;
// only shutdown propagates an error, and the loop's own context check absorbs it.
func (r *Runner) processReport(ctx context.Context, report *model.Report) {
	if err := r.generator.Process(ctx, report); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.ErrorContext(ctx, "process report", "report_id", report.ID, "error", err)
	}
}
