package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/reportable/reportgen/config"
	"github.com/reportable/reportgen/internal/adapters/analyzer"
	"github.com/reportable/reportgen/internal/adapters/generator"
	"github.com/reportable/reportgen/internal/adapters/watchdog"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/progress"
	"github.com/reportable/reportgen/internal/observability/statsd"
	"github.com/reportable/reportgen/internal/service/failurenotifier"
)

// GeneratorRunnerConfig contains configuration for the generation workers.
type GeneratorRunnerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Generator       config.GeneratorConfig
	Report          config.ReportConfig
	Placeholders    core.PlaceholderStore
	ContentCache    *core.ContentCacheService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunGenerator starts the report generation worker pool.
func RunGenerator(ctx context.Context, cfg GeneratorRunnerConfig) error {
	phases, err := cfg.Generator.Phases()
	if err != nil {
		return fmt.Errorf("parse progress phases: %w", err)
	}

	analysisRunner, err := buildAnalyzer(cfg.Generator, phases, cfg.Logger)
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	runner, err := generator.NewRunner(generator.RunnerOptions{
		DB:               cfg.DB,
		Logger:           cfg.Logger,
		Concurrency:      cfg.Generator.Concurrency,
		MaxGeneration:    cfg.Generator.MaxGeneration,
		ProgressInterval: cfg.Generator.ProgressInterval,
		Phases:           phases,
		DefaultEstimate:  cfg.Report.DefaultEstimate,
		Analyzer:         analysisRunner,
		Placeholders:     cfg.Placeholders,
		ContentCache:     cfg.ContentCache,
		Metrics:          cfg.Metrics,
		FailureNotifier:  cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create generator runner: %w", err)
	}

	return runner.Run(ctx)
}

// buildAnalyzer selects the analysis backend from configuration. Custom
// progress phases are forwarded so simulated milestones line up with the
// estimator bands.
//
//nolint:ireturn // Returning AnalysisRunner lets configuration pick the backend.
func buildAnalyzer(cfg config.GeneratorConfig, phases []progress.Phase, logger *slog.Logger) (core.AnalysisRunner, error) {
	switch cfg.Analyzer {
	case config.AnalyzerKindHTTP:
		return analyzer.NewHTTPRunner(analyzer.HTTPRunnerOptions{
			Config: analyzer.HTTPRunnerConfig{
				Endpoint:     cfg.AnalyzerEndpoint,
				TokenURL:     cfg.AnalyzerTokenURL,
				ClientID:     cfg.AnalyzerClientID,
				ClientSecret: cfg.AnalyzerClientSecret,
			},
			Logger: logger,
		})
	case config.AnalyzerKindSimulated, "":
		return analyzer.NewSimulatedRunner(analyzer.SimulatedRunnerConfig{Phases: phases}), nil
	default:
		return nil, fmt.Errorf("unsupported analyzer kind: %q", cfg.Analyzer)
	}
}

// WatchdogRunnerConfig contains configuration for the overdue-report watchdog.
type WatchdogRunnerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Config          config.WatchdogConfig
	Placeholders    core.PlaceholderStore
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWatchdog starts the watchdog sweep loop.
func RunWatchdog(ctx context.Context, cfg WatchdogRunnerConfig) error {
	runner, err := watchdog.NewRunner(watchdog.RunnerOptions{
		DB:              cfg.DB,
		Config:          cfg.Config,
		Logger:          cfg.Logger,
		Placeholders:    cfg.Placeholders,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create watchdog runner: %w", err)
	}

	return runner.Run(ctx)
}
