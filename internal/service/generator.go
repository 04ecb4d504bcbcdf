package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/domain/progress"
	obserrors "github.com/reportable/reportgen/internal/observability/errors"
	"github.com/reportable/reportgen/internal/observability/metrics"
	"github.com/reportable/reportgen/internal/observability/notify"
	"github.com/reportable/reportgen/internal/observability/statsd"
	"github.com/reportable/reportgen/internal/service/failurenotifier"
)

const (
	defaultProgressInterval     = 2 * time.Second
	defaultTerminalRetryBackoff = 500 * time.Millisecond
	defaultMaxGeneration        = 10 * time.Minute

	// Matches the message the watchdog records so callers see one timeout
	// error regardless of which side noticed first.
	generationTimeoutError = "generation deadline exceeded"
)

// GeneratorServiceOptions configures NewGeneratorService.
type GeneratorServiceOptions struct {
	// Required: write port for progress and terminal writes.
	Repo core.ReportWriter
	// Required: runner that produces report content.
	Runner core.AnalysisRunner

	// Optional: milestone extraction from analyzer payloads; defaults to the
	// built-in rules.
	Milestones *MilestoneExtractor
	// Optional: progress estimator; defaults to the standard phases.
	Estimator *progress.Estimator
	// Optional: placeholder bookkeeping, cleared once a terminal write lands.
	Placeholders core.PlaceholderStore
	// Optional: cache primed with freshly completed content.
	ContentCache *core.ContentCacheService
	// Optional: failure notification fan-out.
	FailureNotifier *failurenotifier.Service
	// Optional: metrics sink.
	Metrics statsd.Sink
	// Optional: structured logger; defaults to slog.Default().
	Logger *slog.Logger

	// Optional: interval between progress writes; defaults to 2s.
	ProgressInterval time.Duration
	// Optional: delay between terminal write retries; defaults to 500ms.
	TerminalRetryBackoff time.Duration
	// Optional: run deadline fallback for claimed reports that carry none;
	// defaults to 10m.
	MaxGeneration time.Duration
}

// GeneratorService drives one claimed report at a time from generating to a
// terminal state: it runs the analyzer under the report's deadline, writes
// estimated progress on a fixed tick with analyzer milestones overriding
// single ticks, and lands exactly one guarded terminal write.
type GeneratorService struct {
	repo            core.ReportWriter
	runner          core.AnalysisRunner
	milestones      *MilestoneExtractor
	estimator       *progress.Estimator
	placeholders    core.PlaceholderStore
	contentCache    *core.ContentCacheService
	failureNotifier *failurenotifier.Service
	metrics         statsd.Sink
	logger          *slog.Logger

	progressInterval time.Duration
	terminalBackoff  time.Duration
	maxGeneration    time.Duration
}

// NewGeneratorService validates dependencies and constructs a GeneratorService.
func NewGeneratorService(opts GeneratorServiceOptions) (*GeneratorService, error) {
	if opts.Repo == nil {
		return nil, errors.New("report repository is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("analysis runner is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	milestones := opts.Milestones
	if milestones == nil {
		var err error
		milestones, err = NewMilestoneExtractor(MilestoneExtractorOptions{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("default milestone extractor: %w", err)
		}
	}

	estimator := opts.Estimator
	if estimator == nil {
		var err error
		estimator, err = progress.NewEstimator(progress.DefaultPhases())
		if err != nil {
			return nil, fmt.Errorf("default estimator: %w", err)
		}
	}

	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	backoff := opts.TerminalRetryBackoff
	if backoff <= 0 {
		backoff = defaultTerminalRetryBackoff
	}
	maxGeneration := opts.MaxGeneration
	if maxGeneration <= 0 {
		maxGeneration = defaultMaxGeneration
	}

	return &GeneratorService{
		repo:             opts.Repo,
		runner:           opts.Runner,
		milestones:       milestones,
		estimator:        estimator,
		placeholders:     opts.Placeholders,
		contentCache:     opts.ContentCache,
		failureNotifier:  opts.FailureNotifier,
		metrics:          opts.Metrics,
		logger:           logger.With("component", "generator"),
		progressInterval: interval,
		terminalBackoff:  backoff,
		maxGeneration:    maxGeneration,
	}, nil
}

// MustNewGeneratorService constructs a GeneratorService and panics on invalid
// options. Intended for wiring in main.
func MustNewGeneratorService(opts GeneratorServiceOptions) *GeneratorService {
	s, err := NewGeneratorService(opts)
	if err != nil {
		panic(fmt.Sprintf("generator service: %v", err)) //nolint:forbidigo // fail fast on wiring errors
	}
	return s
}

// analysisOutcome is the single terminal result of one analyzer invocation.
type analysisOutcome struct {
	content json.RawMessage
	err     error
}

// milestoneSlot holds the most recent milestone staged by the analyzer. Emits
// arrive on the runner goroutine; the tick loop consumes them one tick at a
// time. Fields merge across emits within a tick window so a progress-only
// emit does not erase a message-only one.
type milestoneSlot struct {
	mu     sync.Mutex
	staged Milestone
	ready  bool
}

func (s *milestoneSlot) put(m Milestone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Progress != nil {
		s.staged.Progress = m.Progress
	}
	if m.Message != nil {
		s.staged.Message = m.Message
	}
	s.ready = true
}

func (s *milestoneSlot) take() (Milestone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staged, s.ready
	s.staged, s.ready = Milestone{}, false
	return m, ok
}

// tickState tracks per-run progress bookkeeping. last is the highest progress
// written so far; every write is floored at it so the repository's monotonic
// guard only trips when another writer ended the run.
type tickState struct {
	started time.Time
	total   time.Duration
	last    int
}

// Process drives one claimed report to a terminal state. Analyzer errors and
// panics land as failed rows and return nil; only context cancellation
// propagates so worker loops stop cleanly on shutdown.
func (s *GeneratorService) Process(ctx context.Context, report *model.Report) error {
	if report == nil {
		return errors.New("report must not be nil")
	}

	started := time.Now()
	if report.StartedAt != nil {
		started = *report.StartedAt
	}
	deadline := started.Add(s.maxGeneration)
	if report.Deadline != nil {
		deadline = *report.Deadline
	}

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	s.logger.InfoContext(ctx, "report run started",
		"report_id", report.ID,
		"target", report.Target,
		"estimated_seconds", report.EstimatedSeconds,
		"deadline", deadline,
	)

	slot := &milestoneSlot{}
	results := make(chan analysisOutcome, 1)
	go s.runAnalyzer(runCtx, report, slot, results)

	state := &tickState{
		started: started,
		total:   time.Duration(report.EstimatedSeconds) * time.Second,
		last:    report.Progress,
	}

	ticker := time.NewTicker(s.progressInterval)
	defer ticker.Stop()

	ticking := true
	for {
		select {
		case out := <-results:
			return s.finishRun(ctx, runCtx, report, started, out)
		case <-ticker.C:
			if !ticking {
				continue
			}
			ticking = s.flushProgress(runCtx, report, state, slot)
		}
	}
}

// runAnalyzer invokes the external analysis process, converting panics into
// plain errors so a misbehaving analyzer can never take the worker down.
func (s *GeneratorService) runAnalyzer(
	ctx context.Context,
	report *model.Report,
	slot *milestoneSlot,
	results chan<- analysisOutcome,
) {
	defer func() {
		if r := recover(); r != nil {
			results <- analysisOutcome{err: fmt.Errorf("analyzer panic: %v", r)}
		}
	}()

	content, err := s.runner.Run(ctx, core.AnalysisRequest{
		ReportID:         report.ID,
		Target:           report.Target,
		Metadata:         report.Metadata,
		EstimatedSeconds: report.EstimatedSeconds,
	}, func(payload json.RawMessage) {
		if m := s.milestones.Extract(payload); !m.Empty() {
			slot.put(m)
		}
	})
	results <- analysisOutcome{content: content, err: err}
}

// flushProgress writes one progress tick: the staged milestone if the
// analyzer emitted one since the last tick, the estimator snapshot otherwise.
// Returns false once a write reports the run is no longer this worker's;
// write errors skip the tick and keep ticking.
func (s *GeneratorService) flushProgress(
	ctx context.Context,
	report *model.Report,
	state *tickState,
	slot *milestoneSlot,
) bool {
	snap := s.estimator.Estimate(time.Since(state.started), state.total)
	current := snap.Progress
	if state.last > current {
		current = state.last
	}

	update := core.ProgressUpdateParams{
		ID:       report.ID,
		Progress: current,
		Message:  snap.Message,
	}
	if staged, ok := slot.take(); ok {
		if clamped, ok := staged.ClampedProgress(current); ok {
			update.Progress = clamped
		}
		if staged.Message != nil {
			update.Message = *staged.Message
		}
	}

	ok, err := s.repo.UpdateProgress(ctx, update)
	if err != nil {
		s.logger.WarnContext(ctx, "progress write failed",
			"report_id", report.ID, "progress", update.Progress, "error", err)
		return true
	}
	if !ok {
		// Another writer ended the run; stop ticking and let the analyzer
		// outcome resolve against the first-wins terminal guard.
		s.logger.DebugContext(ctx, "progress write superseded", "report_id", report.ID)
		return false
	}

	state.last = update.Progress
	return true
}

// finishRun maps the analyzer outcome to the one terminal write for the run.
func (s *GeneratorService) finishRun(
	ctx context.Context,
	runCtx context.Context,
	report *model.Report,
	started time.Time,
	out analysisOutcome,
) error {
	duration := time.Since(started)

	if out.err == nil {
		s.completeReport(ctx, runCtx, report, out.content, duration)
		return nil
	}

	if deadlineExpired(runCtx) && errors.Is(out.err, context.DeadlineExceeded) {
		s.failReport(ctx, runCtx, report, failedRun{
			message:  generationTimeoutError,
			kind:     model.ErrorKindTimeout,
			cause:    out.err,
			duration: duration,
		})
		return nil
	}

	if ctx.Err() != nil {
		// Shutdown, not a report fault: leave the row generating so a
		// restarted worker's deadline or the watchdog ends it.
		s.logger.InfoContext(ctx, "report run interrupted",
			"report_id", report.ID, "error", out.err)
		return ctx.Err()
	}

	s.failReport(ctx, runCtx, report, failedRun{
		message:  out.err.Error(),
		kind:     model.ErrorKindFault,
		cause:    out.err,
		duration: duration,
	})
	return nil
}

func (s *GeneratorService) completeReport(
	ctx context.Context,
	runCtx context.Context,
	report *model.Report,
	content json.RawMessage,
	duration time.Duration,
) {
	done, err := s.writeTerminal(ctx, runCtx, report.ID, "complete", func(c context.Context) (bool, error) {
		return s.repo.Complete(c, core.CompleteReportParams{ID: report.ID, Content: content})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "complete report abandoned",
			"report_id", report.ID, "error", err)
		s.emitLifecycle(metrics.ReportMetric{
			Transition: "completed",
			Result:     metrics.ResultError,
			Duration:   duration,
			Err:        err,
		})
		return
	}
	if !done {
		s.logger.InfoContext(ctx, "completion superseded", "report_id", report.ID)
		s.emitLifecycle(metrics.ReportMetric{Transition: "completed", Result: metrics.ResultNoop})
		return
	}

	s.clearPlaceholder(ctx, report)
	if s.contentCache != nil {
		if cacheErr := s.contentCache.StoreContent(ctx, report.ID, content); cacheErr != nil {
			s.logger.WarnContext(ctx, "prime content cache",
				"report_id", report.ID, "error", cacheErr)
		}
	}

	s.emitLifecycle(metrics.ReportMetric{
		Transition: "completed",
		Result:     metrics.ResultSuccess,
		Duration:   duration,
	})
	s.logger.InfoContext(ctx, "report completed",
		"report_id", report.ID, "duration", duration)
}

// failedRun carries the terminal failure details for one run.
type failedRun struct {
	message  string
	kind     model.ErrorKind
	cause    error
	duration time.Duration
}

func (s *GeneratorService) failReport(
	ctx context.Context,
	runCtx context.Context,
	report *model.Report,
	run failedRun,
) {
	done, err := s.writeTerminal(ctx, runCtx, report.ID, "fail", func(c context.Context) (bool, error) {
		return s.repo.Fail(c, core.FailReportParams{
			ID:        report.ID,
			Error:     run.message,
			ErrorKind: run.kind,
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "fail report abandoned",
			"report_id", report.ID, "report_error", run.message, "error", err)
		s.emitLifecycle(metrics.ReportMetric{
			Transition: "failed",
			Result:     metrics.ResultError,
			ErrorKind:  string(run.kind),
			Duration:   run.duration,
			Err:        err,
		})
		return
	}
	if !done {
		s.logger.InfoContext(ctx, "failure superseded", "report_id", report.ID)
		s.emitLifecycle(metrics.ReportMetric{
			Transition: "failed",
			Result:     metrics.ResultNoop,
			ErrorKind:  string(run.kind),
		})
		return
	}

	s.clearPlaceholder(ctx, report)
	s.emitLifecycle(metrics.ReportMetric{
		Transition: "failed",
		Result:     metrics.ResultError,
		ErrorKind:  string(run.kind),
		Duration:   run.duration,
		Err:        run.cause,
	})
	s.notifyFailure(ctx, report, run)
	s.logger.WarnContext(ctx, "report failed",
		"report_id", report.ID,
		"error_kind", run.kind,
		"error", run.message,
		"duration", run.duration,
	)
}

// writeTerminal retries a guarded terminal write until it lands or the run
// deadline passes, at which point the watchdog owns the outcome. The write
// itself runs under the worker context so an expired run deadline still gets
// one attempt.
func (s *GeneratorService) writeTerminal(
	ctx context.Context,
	runCtx context.Context,
	reportID string,
	op string,
	write func(context.Context) (bool, error),
) (bool, error) {
	for attempt := 1; ; attempt++ {
		ok, err := write(ctx)
		if err == nil {
			return ok, nil
		}
		if ctx.Err() != nil {
			return false, fmt.Errorf("%s report: %w", op, err)
		}
		if runCtx.Err() != nil {
			return false, fmt.Errorf("%s report after run deadline: %w", op, err)
		}

		s.logger.WarnContext(ctx, "terminal write failed, retrying",
			"report_id", reportID, "op", op, "attempt", attempt, "error", err)
		select {
		case <-time.After(s.terminalBackoff):
		case <-runCtx.Done():
		case <-ctx.Done():
		}
	}
}

func (s *GeneratorService) clearPlaceholder(ctx context.Context, report *model.Report) {
	if s.placeholders == nil {
		return
	}
	if err := s.placeholders.Delete(ctx, report.OwnerID, report.ID); err != nil && !errors.Is(err, core.ErrPlaceholderNotFound) {
		s.logger.WarnContext(ctx, "drop placeholder",
			"report_id", report.ID, "error", err)
	}
}

func (s *GeneratorService) notifyFailure(ctx context.Context, report *model.Report, run failedRun) {
	if s.failureNotifier == nil || !s.failureNotifier.Enabled() {
		return
	}
	s.failureNotifier.NotifyReportFailure(ctx, notify.ReportFailurePayload{
		ReportID:   report.ID,
		OwnerID:    report.OwnerID,
		Target:     report.Target,
		Error:      run.message,
		ErrorKind:  string(run.kind),
		ErrorClass: obserrors.Classify(run.cause),
		OccurredAt: time.Now().UTC(),
		Metadata: map[string]string{
			"component": "generator",
		},
	})
}

func (s *GeneratorService) emitLifecycle(in metrics.ReportMetric) {
	metrics.EmitReportLifecycle(s.metrics, in)
}

func deadlineExpired(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}
