package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	domainreport "github.com/reportable/reportgen/internal/domain/report"
	apperrors "github.com/reportable/reportgen/internal/errors"
	"github.com/reportable/reportgen/internal/observability/metrics"
	"github.com/reportable/reportgen/internal/observability/statsd"
)

// ReportServiceOptions groups dependencies for ReportService.
type ReportServiceOptions struct {
	Repo            core.ReportRepository          // Required: report repository
	DefaultEstimate time.Duration                  // Required: default generation estimate
	MaxEstimate     time.Duration                  // Optional: estimate ceiling (defaults to DefaultEstimate)
	Placeholders    core.PlaceholderStore          // Optional: in-flight placeholder store
	ContentCache    *core.ContentCacheService      // Optional: completed-content reads
	Logger          *slog.Logger                   // Optional: structured logger
	Metrics         statsd.Sink                    // Optional: lifecycle metric sink
	DurationPolicy  *domainreport.DurationPolicy   // Optional: override default duration policy
	Notifier        domainreport.Notifier          // Optional: custom queued-report notifier
	NotifierOptions domainreport.NotifierOptions   // Optional: configure default notifier behaviour
}

// ReportService provides business logic for report operations.
//
// This service manages:
// - Report creation with target normalization and estimate resolution
// - Owner-scoped reads (full record, status view, stats)
// - Explicit archive/restore/delete transitions
// - Placeholder writes so lists can show a report before its durable row
// - Pub/sub wakeups for generation workers.
type ReportService struct {
	repo           core.ReportRepository
	placeholders   core.PlaceholderStore
	contentCache   *core.ContentCacheService
	durationPolicy *domainreport.DurationPolicy
	notifier       domainreport.Notifier
	logger         *slog.Logger
	metrics        statsd.Sink
}

// NewReportService constructs a new ReportService.
func NewReportService(opts ReportServiceOptions) (*ReportService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReportRepository is required")
	}

	var durationPolicy *domainreport.DurationPolicy
	switch {
	case opts.DurationPolicy != nil:
		durationPolicy = opts.DurationPolicy
	case opts.DefaultEstimate > 0:
		maxEstimate := opts.MaxEstimate
		if maxEstimate < opts.DefaultEstimate {
			maxEstimate = opts.DefaultEstimate
		}
		var err error
		durationPolicy, err = domainreport.NewDurationPolicy(opts.DefaultEstimate, maxEstimate)
		if err != nil {
			return nil, fmt.Errorf("create duration policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultEstimate must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			if waiter, ok := opts.Repo.(domainreport.Waiter); ok {
				options.Waiter = waiter
			}
		}
		if options.Waiter != nil {
			var err error
			notifier, err = domainreport.NewNotifier(options)
			if err != nil {
				return nil, fmt.Errorf("create report notifier: %w", err)
			}
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "report_service")
		logger.Debug("ReportService initialized",
			"default_estimate", durationPolicy.Default(),
		)
	}

	return &ReportService{
		repo:           opts.Repo,
		placeholders:   opts.Placeholders,
		contentCache:   opts.ContentCache,
		durationPolicy: durationPolicy,
		notifier:       notifier,
		logger:         logger,
		metrics:        opts.Metrics,
	}, nil
}

// MustNewReportService constructs a new ReportService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReportService(opts ReportServiceOptions) *ReportService {
	svc, err := NewReportService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ReportService: %v", err))
	}
	return svc
}

// Create validates the request, resolves the duration estimate, writes the
// in-flight placeholder and inserts the durable queued row. Generation is
// asynchronous; the caller never blocks on it.
func (s *ReportService) Create(
	ctx context.Context,
	ownerID string,
	req *model.CreateReportRequest,
) (*model.Report, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "validate request")
	}

	target := normalizeTarget(req.Target)
	if target == "" {
		return nil, apperrors.ValidationField("target", "target must contain a host")
	}

	decision := s.durationPolicy.Resolve(time.Duration(req.EstimatedSeconds) * time.Second)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped requested estimate",
			"requested_seconds", req.EstimatedSeconds,
			"resolved_seconds", decision.Seconds,
		)
	}

	id := uuid.NewString()
	s.putPlaceholder(ctx, pendingReport(id, ownerID, target, req, decision))

	created, err := s.repo.Create(ctx, core.CreateReportParams{
		ID:               id,
		OwnerID:          ownerID,
		Target:           target,
		Metadata:         req.Metadata,
		EstimatedSeconds: decision.Seconds,
	})
	if err != nil {
		s.dropPlaceholder(ctx, ownerID, id)
		return nil, fmt.Errorf("create report: %w", err)
	}

	// Re-point the placeholder at the persisted row so timestamps agree.
	s.putPlaceholder(ctx, created)

	metrics.EmitReportLifecycle(s.metrics, metrics.ReportMetric{
		Transition: "created",
		Result:     metrics.ResultSuccess,
	})

	if s.logger != nil {
		s.logger.DebugContext(ctx, "report created",
			"id", created.ID,
			"target", created.Target,
			"estimated_seconds", created.EstimatedSeconds,
			"estimate_source", string(decision.Source),
		)
	}

	return created, nil
}

// pendingReport builds the placeholder view of a report before its durable insert.
func pendingReport(
	id, ownerID, target string,
	req *model.CreateReportRequest,
	decision domainreport.EstimateDecision,
) *model.Report {
	now := time.Now().UTC()
	return &model.Report{
		ID:               id,
		OwnerID:          ownerID,
		Status:           model.ReportStatusQueued,
		Target:           target,
		Metadata:         req.Metadata,
		EstimatedSeconds: decision.Seconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// GetByID returns the full report record. Completed reports carry their
// content (cache first, store fallback). Not-yet-persisted reports fall back
// to the live placeholder.
func (s *ReportService) GetByID(ctx context.Context, ownerID, id string) (*model.Report, error) {
	rec, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			if placeholder := s.getPlaceholder(ctx, ownerID, id); placeholder != nil {
				return placeholder, nil
			}
		}
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	if rec.Status == model.ReportStatusCompleted && s.contentCache != nil {
		content, contentErr := s.contentCache.GetContent(ctx, rec.ID)
		if contentErr != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "failed to load report content", "id", rec.ID, "error", contentErr)
			}
		} else {
			rec.Content = content
		}
	}

	return rec, nil
}

// FetchStatus returns the observable status view of a report. Implements the
// status poller's read port.
func (s *ReportService) FetchStatus(
	ctx context.Context,
	ownerID, reportID string,
) (model.ReportStatusView, error) {
	rec, err := s.repo.GetByID(ctx, ownerID, reportID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			if placeholder := s.getPlaceholder(ctx, ownerID, reportID); placeholder != nil {
				return placeholder.StatusView(), nil
			}
		}
		return model.ReportStatusView{}, fmt.Errorf("fetch report status %s: %w", reportID, err)
	}
	return rec.StatusView(), nil
}

// List returns an owner's persisted reports. Pagination defaults are
// normalized here to avoid drift across layers. Callers wanting the
// canonical placeholder-merged view use ReconcileService.CanonicalList.
func (s *ReportService) List(
	ctx context.Context,
	ownerID string,
	opts *model.ReportListOptions,
) ([]*model.Report, error) {
	if opts == nil {
		opts = &model.ReportListOptions{}
	}
	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	reports, err := s.repo.List(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// Stats returns per-status counts for an owner's reports.
func (s *ReportService) Stats(ctx context.Context, ownerID string) (*model.ReportStats, error) {
	stats, err := s.repo.Stats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get report stats: %w", err)
	}
	return stats, nil
}

// ClaimNextQueued atomically claims the oldest queued report for generation.
// Returns model.ErrNoReportsQueued when the queue is empty.
func (s *ReportService) ClaimNextQueued(
	ctx context.Context,
	maxGeneration time.Duration,
) (*model.Report, error) {
	rec, err := s.repo.ClaimNextQueued(ctx, maxGeneration)
	if err != nil {
		if errors.Is(err, model.ErrNoReportsQueued) {
			return nil, err
		}
		return nil, fmt.Errorf("claim next report: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "report claimed",
			"id", rec.ID,
			"target", rec.Target,
			"deadline", rec.Deadline,
		)
	}

	metrics.EmitReportLifecycle(s.metrics, metrics.ReportMetric{
		Transition: "claimed",
		Result:     metrics.ResultSuccess,
	})

	return rec, nil
}

// Archive moves a completed report to archived.
func (s *ReportService) Archive(ctx context.Context, ownerID, id string) (*model.Report, error) {
	rec, err := s.repo.Archive(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("archive report %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "report archived", "id", id)
	}

	return rec, nil
}

// Restore moves an archived report back to completed.
func (s *ReportService) Restore(ctx context.Context, ownerID, id string) (*model.Report, error) {
	rec, err := s.repo.Restore(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("restore report %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "report restored", "id", id)
	}

	return rec, nil
}

// Delete removes a report in any state, along with its placeholder and any
// cached content.
func (s *ReportService) Delete(ctx context.Context, ownerID, id string) error {
	if id == "" {
		return errors.New("report id is required")
	}

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}

	s.dropPlaceholder(ctx, ownerID, id)
	if s.contentCache != nil {
		if err := s.contentCache.InvalidateContent(ctx, id); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to invalidate cached content", "id", id, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "report deleted", "id", id)
	}

	return nil
}

// BulkDelete removes all of an owner's reports, optionally including archived
// ones, and clears the owner's placeholders. Returns the number of persisted
// rows removed.
func (s *ReportService) BulkDelete(
	ctx context.Context,
	ownerID string,
	opts model.BulkDeleteOptions,
) (int, error) {
	deleted, err := s.repo.BulkDelete(ctx, ownerID, opts)
	if err != nil {
		return 0, fmt.Errorf("bulk delete reports: %w", err)
	}

	if s.placeholders != nil {
		if _, phErr := s.placeholders.DeleteByOwner(ctx, ownerID); phErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to clear placeholders", "owner_id", ownerID, "error", phErr)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "reports bulk deleted",
			"owner_id", ownerID,
			"deleted_count", deleted,
			"include_archived", opts.IncludeArchived,
		)
	}

	return deleted, nil
}

// Subscribe creates a subscription for queued-report wakeups. Returns an
// unsubscribe function and a channel that receives notifications.
func (s *ReportService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// StopAllListeners stops all active wakeup listeners. This should be called
// during graceful shutdown to clean up goroutines.
func (s *ReportService) StopAllListeners() {
	if s.logger != nil {
		s.logger.Info("stopping all report listeners")
	}

	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

// paginationParams holds normalized pagination parameters.
type paginationParams struct {
	Limit  int
	Offset int
}

// normalizePagination clamps pagination parameters to safe defaults.
// Default limit: 50, max limit: 1000, min offset: 0.
func normalizePagination(limit, offset int) paginationParams {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return paginationParams{Limit: limit, Offset: offset}
}

func (s *ReportService) putPlaceholder(ctx context.Context, rec *model.Report) {
	if s.placeholders == nil || rec == nil {
		return
	}
	if err := s.placeholders.Put(ctx, rec); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to write placeholder", "id", rec.ID, "error", err)
	}
}

func (s *ReportService) getPlaceholder(ctx context.Context, ownerID, id string) *model.Report {
	if s.placeholders == nil {
		return nil
	}
	rec, err := s.placeholders.Get(ctx, ownerID, id)
	if err != nil {
		if !errors.Is(err, core.ErrPlaceholderNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to read placeholder", "id", id, "error", err)
		}
		return nil
	}
	return rec
}

func (s *ReportService) dropPlaceholder(ctx context.Context, ownerID, id string) {
	if s.placeholders == nil {
		return
	}
	if err := s.placeholders.Delete(ctx, ownerID, id); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to drop placeholder", "id", id, "error", err)
	}
}

// normalizeTarget reduces a target to its lowercase registrable domain using
// the public suffix list. Accepts bare hosts and full URLs; IP literals and
// hosts without a listed suffix pass through cleaned.
func normalizeTarget(raw string) string {
	target := strings.ToLower(strings.TrimSpace(raw))
	if target == "" {
		return ""
	}

	if idx := strings.Index(target, "://"); idx >= 0 {
		target = target[idx+len("://"):]
	}
	if idx := strings.IndexAny(target, "/?#"); idx >= 0 {
		target = target[:idx]
	}
	if host, _, err := net.SplitHostPort(target); err == nil {
		target = host
	}
	target = strings.Trim(target, ".")
	if target == "" {
		return ""
	}

	if net.ParseIP(target) != nil {
		return target
	}

	if registrable, err := publicsuffix.EffectiveTLDPlusOne(target); err == nil {
		return registrable
	}
	return target
}
