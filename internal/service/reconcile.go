package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
)

// Reconcile collapses a raw record sequence into the canonical client-facing
// list: archived rows are dropped unless asked for, duplicate ids collapse to
// a single record, and output preserves the insertion order of each id's
// first occurrence. Pure and idempotent; callers re-sort for presentation.
//
// The duplicate rule: when exactly one of the pair is generating it wins
// regardless of timestamps (an in-flight run is the live truth); otherwise
// the newer updated_at wins. More than two occurrences apply the rule
// pairwise.
func Reconcile(records []*model.Report, includeArchived bool) []*model.Report {
	return reconcileRecords(nil, records, includeArchived)
}

func reconcileRecords(logger *slog.Logger, records []*model.Report, includeArchived bool) []*model.Report {
	out := make([]*model.Report, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if rec.Status == model.ReportStatusArchived && !includeArchived {
			continue
		}

		at, seen := index[rec.ID]
		if !seen {
			index[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}

		kept := pickCanonical(out[at], rec)
		if logger != nil {
			logger.Warn("duplicate report id collapsed",
				"report_id", rec.ID, "kept_status", kept.Status)
		}
		out[at] = kept
	}

	return out
}

// pickCanonical resolves one duplicate pair. first keeps its position in the
// output either way.
func pickCanonical(first, second *model.Report) *model.Report {
	firstGenerating := first.Status == model.ReportStatusGenerating
	secondGenerating := second.Status == model.ReportStatusGenerating

	switch {
	case firstGenerating && !secondGenerating:
		return first
	case secondGenerating && !firstGenerating:
		return second
	default:
		if second.UpdatedAt.After(first.UpdatedAt) {
			return second
		}
		return first
	}
}

// ReconcileServiceOptions configures NewReconcileService.
type ReconcileServiceOptions struct {
	// Required: persisted rows.
	Repo core.ReportLister
	// Optional: live placeholders merged over the persisted rows.
	Placeholders core.PlaceholderStore
	// Optional: structured logger; defaults to slog.Default().
	Logger *slog.Logger
}

// ReconcileService produces the canonical report list an owner sees: the
// persisted rows plus placeholders for reports whose durable row has not
// landed (or not replicated) yet.
type ReconcileService struct {
	repo         core.ReportLister
	placeholders core.PlaceholderStore
	logger       *slog.Logger
}

// NewReconcileService validates dependencies and constructs a ReconcileService.
func NewReconcileService(opts ReconcileServiceOptions) (*ReconcileService, error) {
	if opts.Repo == nil {
		return nil, errors.New("report lister is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReconcileService{
		repo:         opts.Repo,
		placeholders: opts.Placeholders,
		logger:       logger.With("component", "reconcile"),
	}, nil
}

// MustNewReconcileService constructs a ReconcileService and panics on invalid
// options. Intended for wiring in main.
func MustNewReconcileService(opts ReconcileServiceOptions) *ReconcileService {
	s, err := NewReconcileService(opts)
	if err != nil {
		panic(fmt.Sprintf("reconcile service: %v", err)) //nolint:forbidigo // fail fast on wiring errors
	}
	return s
}

// CanonicalList fetches persisted rows and live placeholders concurrently,
// prepends placeholders that have no persisted row yet, reconciles the
// combined sequence and returns it newest first. Placeholder fetch failures
// degrade to the persisted rows alone; the store stays authoritative.
func (s *ReconcileService) CanonicalList(
	ctx context.Context,
	ownerID string,
	opts *model.ReportListOptions,
) ([]*model.Report, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if opts == nil {
		opts = &model.ReportListOptions{}
	}

	var (
		rows    []*model.Report
		pending []*model.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.List(gctx, ownerID, opts)
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		return nil
	})
	if s.placeholders != nil {
		g.Go(func() error {
			live, err := s.placeholders.ListByOwner(gctx, ownerID)
			if err != nil {
				s.logger.WarnContext(gctx, "list placeholders", "owner_id", ownerID, "error", err)
				return nil
			}
			pending = live
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	persisted := make(map[string]struct{}, len(rows))
	for _, rec := range rows {
		persisted[rec.ID] = struct{}{}
	}

	combined := make([]*model.Report, 0, len(rows)+len(pending))
	for _, ph := range pending {
		if ph == nil || ph.Status.Terminal() {
			continue
		}
		if _, ok := persisted[ph.ID]; ok {
			// The durable row won the race; it carries the live progress.
			continue
		}
		if opts.Status != nil && ph.Status != *opts.Status {
			continue
		}
		combined = append(combined, ph)
	}
	combined = append(combined, rows...)

	// An explicit archived status filter implies the caller wants archived
	// rows, matching the store's list semantics.
	includeArchived := opts.IncludeArchived ||
		(opts.Status != nil && *opts.Status == model.ReportStatusArchived)

	canonical := reconcileRecords(s.logger, combined, includeArchived)
	sort.SliceStable(canonical, func(i, j int) bool {
		if canonical[i].CreatedAt.Equal(canonical[j].CreatedAt) {
			return canonical[i].ID > canonical[j].ID
		}
		return canonical[i].CreatedAt.After(canonical[j].CreatedAt)
	})
	return canonical, nil
}
