// Package core provides the service-layer contracts for the reportgen system.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/reportable/reportgen/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// CreateReportParams groups parameters for ReportRepository.Create. The id is
// assigned by the caller so the placeholder written before the durable insert
// shares it.
type CreateReportParams struct {
	ID               string
	OwnerID          string
	Target           string
	Metadata         json.RawMessage
	EstimatedSeconds int
}

// ProgressUpdateParams groups parameters for ReportRepository.UpdateProgress.
type ProgressUpdateParams struct {
	ID       string
	Progress int
	Message  string
}

// CompleteReportParams groups parameters for ReportRepository.Complete.
type CompleteReportParams struct {
	ID      string
	Content json.RawMessage
}

// FailReportParams groups parameters for ReportRepository.Fail.
type FailReportParams struct {
	ID        string
	Error     string
	ErrorKind model.ErrorKind
}

// ReportRepository defines the interface for report data operations. Reads
// and caller-initiated mutations are owner-scoped; the claim and terminal
// writes are generator-internal and operate on the id alone.
type ReportRepository interface {
	Create(ctx context.Context, params CreateReportParams) (*model.Report, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.Report, error)
	List(ctx context.Context, ownerID string, opts *model.ReportListOptions) ([]*model.Report, error)
	Stats(ctx context.Context, ownerID string) (*model.ReportStats, error)

	// ClaimNextQueued atomically moves the oldest queued report to generating
	// and stamps its deadline. Returns model.ErrNoReportsQueued when the
	// queue is empty.
	ClaimNextQueued(ctx context.Context, maxGeneration time.Duration) (*model.Report, error)

	// UpdateProgress applies a monotonic progress write. It reports false
	// without error when the report is no longer generating or the value
	// would move progress backward.
	UpdateProgress(ctx context.Context, params ProgressUpdateParams) (bool, error)

	// Complete performs the single atomic completion write. First-wins:
	// false means another terminal write already landed.
	Complete(ctx context.Context, params CompleteReportParams) (bool, error)

	// Fail records a terminal failure, preserving last-known progress.
	// First-wins like Complete.
	Fail(ctx context.Context, params FailReportParams) (bool, error)

	// Archive and Restore are the explicit completed <-> archived operations.
	Archive(ctx context.Context, ownerID, id string) (*model.Report, error)
	Restore(ctx context.Context, ownerID, id string) (*model.Report, error)

	Delete(ctx context.Context, ownerID, id string) error
	BulkDelete(ctx context.Context, ownerID string, opts model.BulkDeleteOptions) (int, error)
}

// ReportWaiter is an optional repository capability: blocking until the store
// signals a queued report. Implemented by the Postgres repository via
// LISTEN/NOTIFY.
type ReportWaiter interface {
	WaitForQueued(ctx context.Context) error
}

// ReportWriter is the generator's write port: progress ticks plus the two
// guarded terminal writes. Satisfied by ReportRepository implementations.
type ReportWriter interface {
	UpdateProgress(ctx context.Context, params ProgressUpdateParams) (bool, error)
	Complete(ctx context.Context, params CompleteReportParams) (bool, error)
	Fail(ctx context.Context, params FailReportParams) (bool, error)
}

// ReportLister is the reconciliation reader's port onto persisted rows.
// Satisfied by ReportRepository implementations.
type ReportLister interface {
	List(ctx context.Context, ownerID string, opts *model.ReportListOptions) ([]*model.Report, error)
}

// WatchdogRepository defines the store operations the watchdog sweep uses.
type WatchdogRepository interface {
	// FailOverdueGenerating force-fails generating reports whose deadline has
	// passed, up to batchSize per call, and returns the reports it failed.
	FailOverdueGenerating(ctx context.Context, batchSize int) ([]*model.Report, error)
}

// ErrPlaceholderNotFound is returned by PlaceholderStore implementations when
// no live entry exists for the requested owner and id.
var ErrPlaceholderNotFound = errors.New("placeholder not found")

// PlaceholderStore keeps the not-yet-persisted (or freshly in-flight) view of
// a report so lists can show it before and around its durable writes. Bounded
// by TTL or capacity; entries are best-effort and never authoritative.
type PlaceholderStore interface {
	Put(ctx context.Context, rec *model.Report) error
	Get(ctx context.Context, ownerID, id string) (*model.Report, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Report, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	// PurgeExpired drops entries past their lifetime and reports how many.
	// Stores with native expiry may report zero.
	PurgeExpired(ctx context.Context) (int, error)
}

// AnalysisRequest carries the inputs handed to the external analysis process.
type AnalysisRequest struct {
	ReportID         string
	Target           string
	Metadata         json.RawMessage
	EstimatedSeconds int
}

// AnalysisRunner invokes the external analysis process. Run blocks until the
// single terminal outcome: content on success, an error otherwise. emit is
// invoked from the runner's own goroutine, sequentially, with each raw
// milestone payload the process produces; payloads are free-form and
// best-effort.
type AnalysisRunner interface {
	Run(ctx context.Context, req AnalysisRequest, emit func(payload json.RawMessage)) (json.RawMessage, error)
}

// StatusFetcher is the status poller's read port.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, ownerID, reportID string) (model.ReportStatusView, error)
}

// ContentRepository reads persisted report content. Content rows are written
// inside the completion transaction; this port covers the read side used by
// the content cache fallback.
type ContentRepository interface {
	GetByReportID(ctx context.Context, reportID string) (json.RawMessage, error)
}
