package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	obserrors "github.com/reportable/reportgen/internal/observability/errors"
	"github.com/reportable/reportgen/internal/observability/metrics"
	"github.com/reportable/reportgen/internal/observability/notify"
	"github.com/reportable/reportgen/internal/observability/statsd"
	"github.com/reportable/reportgen/internal/service/failurenotifier"
)

const (
	defaultWatchdogInterval  = 30 * time.Second
	defaultWatchdogBatchSize = 100
)

// WatchdogServiceOptions groups dependencies for WatchdogService.
type WatchdogServiceOptions struct {
	Repo            core.WatchdogRepository  // Required: watchdog repository
	Placeholders    core.PlaceholderStore    // Optional: placeholder hygiene
	FailureNotifier *failurenotifier.Service // Optional: forced-timeout notifications
	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: metrics sink (StatsD-compatible)

	Interval  time.Duration // Optional: sweep interval; defaults to 30s
	BatchSize int           // Optional: rows per batch; defaults to 100
}

// WatchdogService is the liveness backstop for report generation.
//
// Each sweep:
// - force-fails generating reports whose deadline has passed, exactly once
//   per report, recording a timeout error kind;
// - purges expired placeholder entries.
//
// Terminal rows are never touched; archive, restore and delete stay
// caller-only operations.
type WatchdogService struct {
	repo            core.WatchdogRepository
	placeholders    core.PlaceholderStore
	failureNotifier *failurenotifier.Service
	logger          *slog.Logger
	metrics         statsd.Sink

	interval  time.Duration
	batchSize int
}

// NewWatchdogService constructs a new WatchdogService.
func NewWatchdogService(opts WatchdogServiceOptions) (*WatchdogService, error) {
	if opts.Repo == nil {
		return nil, errors.New("WatchdogRepository is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultWatchdogInterval
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultWatchdogBatchSize
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "watchdog")
		logger.Debug("WatchdogService initialized",
			"interval", interval,
			"batch_size", batchSize,
		)
	}

	return &WatchdogService{
		repo:            opts.Repo,
		placeholders:    opts.Placeholders,
		failureNotifier: opts.FailureNotifier,
		logger:          logger,
		metrics:         opts.Metrics,
		interval:        interval,
		batchSize:       batchSize,
	}, nil
}

// MustNewWatchdogService constructs a new WatchdogService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewWatchdogService(opts WatchdogServiceOptions) *WatchdogService {
	svc, err := NewWatchdogService(opts)
	if err != nil {
		panic(fmt.Sprintf("watchdog service: %v", err)) //nolint:forbidigo // fail fast on wiring errors
	}
	return svc
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *WatchdogService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting watchdog", "interval", s.interval)
	}

	// Jitter so multiple instances do not contend for the advisory lock in
	// lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.runSweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *WatchdogService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the sweep loop until context is cancelled.
func (s *WatchdogService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "watchdog stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
				// Continue running despite errors
			}
		}
	}
}

// runSweep performs one full sweep.
func (s *WatchdogService) runSweep(ctx context.Context) error {
	start := time.Now()
	var (
		errs               []error
		allContextCanceled = true
		metricsData        = sweepMetrics{}
	)

	steps := []sweepStep{
		{
			fn:        s.failOverdueReports,
			label:     "fail overdue reports",
			count:     &metricsData.TimedOutCount,
			metricErr: &metricsData.TimedOutErr,
		},
		{
			fn:        s.purgeExpiredPlaceholders,
			label:     "purge expired placeholders",
			count:     &metricsData.PlaceholderCount,
			metricErr: &metricsData.PlaceholderErr,
		},
	}

	for _, step := range steps {
		outcome := s.executeSweepStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	metricsData.Elapsed = time.Since(start)
	s.emitSweepMetrics(metricsData)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("sweep failed: %w", joined)
	}

	return nil
}

type sweepFunc func(context.Context) (int64, error)

type sweepStep struct {
	fn        sweepFunc
	label     string
	count     *int64
	metricErr *error
}

type sweepStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *WatchdogService) executeSweepStep(
	ctx context.Context,
	fn sweepFunc,
	label string,
) sweepStepOutcome {
	count, err := fn(ctx)
	outcome := sweepStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// failOverdueReports force-fails generating reports past their deadline.
// Loops until no more rows are affected to handle backlogs in batches.
func (s *WatchdogService) failOverdueReports(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		reports, err := s.repo.FailOverdueGenerating(ctx, s.batchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(len(reports))

		for _, report := range reports {
			s.handleForcedTimeout(ctx, report)
		}

		if len(reports) == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "force-failed overdue reports", "count", totalCount)
	}

	return totalCount, nil
}

// handleForcedTimeout performs the per-report bookkeeping after a forced
// timeout: placeholder cleanup, lifecycle metric, failure notification.
func (s *WatchdogService) handleForcedTimeout(ctx context.Context, report *model.Report) {
	if report == nil {
		return
	}

	if s.placeholders != nil {
		if err := s.placeholders.Delete(ctx, report.OwnerID, report.ID); err != nil && !errors.Is(err, core.ErrPlaceholderNotFound) {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "drop placeholder", "report_id", report.ID, "error", err)
			}
		}
	}

	metrics.EmitReportLifecycle(s.metrics, metrics.ReportMetric{
		Transition: "failed",
		Result:     metrics.ResultError,
		ErrorKind:  string(model.ErrorKindTimeout),
	})

	if s.failureNotifier != nil && s.failureNotifier.Enabled() {
		message := "generation deadline exceeded"
		if report.Error != nil && *report.Error != "" {
			message = *report.Error
		}
		s.failureNotifier.NotifyReportFailure(ctx, notify.ReportFailurePayload{
			ReportID:   report.ID,
			OwnerID:    report.OwnerID,
			Target:     report.Target,
			Error:      message,
			ErrorKind:  string(model.ErrorKindTimeout),
			OccurredAt: time.Now().UTC(),
			Metadata: map[string]string{
				"component": "watchdog",
			},
		})
	}
}

// purgeExpiredPlaceholders drops placeholder entries past their lifetime.
// Stores with native TTL expiry report zero here; that is the quiet path.
func (s *WatchdogService) purgeExpiredPlaceholders(ctx context.Context) (int64, error) {
	if s.placeholders == nil {
		return 0, nil
	}

	count, err := s.placeholders.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}

	if count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "purged expired placeholders", "count", count)
	}

	return int64(count), nil
}

type sweepMetrics struct {
	TimedOutCount    int64
	TimedOutErr      error
	PlaceholderCount int64
	PlaceholderErr   error
	Elapsed          time.Duration
}

func (s *WatchdogService) emitSweepMetrics(m sweepMetrics) {
	if s.metrics == nil {
		return
	}

	totalCount := m.TimedOutCount + m.PlaceholderCount
	firstErr := firstError(m.TimedOutErr, m.PlaceholderErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if totalCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("watchdog.sweep", 1, tags)

	if m.Elapsed > 0 {
		s.metrics.Timing("watchdog.sweep_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	s.emitSweepOperationMetric("fail_overdue", m.TimedOutCount, m.TimedOutErr)
	s.emitSweepOperationMetric("purge_placeholders", m.PlaceholderCount, m.PlaceholderErr)

	if firstErr == nil {
		s.metrics.Gauge("watchdog.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *WatchdogService) emitSweepOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("watchdog.sweep_operation", 1, tags)

	if err == nil && count > 0 {
		s.metrics.Count("watchdog.reports_processed", count, metrics.CloneTags(tags))
	}
}

func (s *WatchdogService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
