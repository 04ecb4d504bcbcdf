// Package model defines the core data types and structures used throughout the reportgen system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReportStatus represents the current lifecycle state of a report.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ReportStatus string

// ErrorKind classifies why a report failed.
type ErrorKind string

const (
	// ReportStatusQueued indicates a report is waiting to be claimed by a generator.
	ReportStatusQueued ReportStatus = "queued"
	// ReportStatusGenerating indicates a generator owns the report and is producing content.
	ReportStatusGenerating ReportStatus = "generating"
	// ReportStatusCompleted indicates generation finished and content is available.
	ReportStatusCompleted ReportStatus = "completed"
	// ReportStatusFailed indicates generation ended with an error.
	ReportStatusFailed ReportStatus = "failed"
	// ReportStatusArchived indicates a completed report was explicitly archived.
	ReportStatusArchived ReportStatus = "archived"

	// ErrorKindNone indicates no failure has been recorded.
	ErrorKindNone ErrorKind = ""
	// ErrorKindFault indicates the analysis process returned an error or crashed.
	ErrorKindFault ErrorKind = "fault"
	// ErrorKindTimeout indicates the watchdog forced the failure after the generation deadline passed.
	ErrorKindTimeout ErrorKind = "timeout"
)

// ProgressMax is the progress value written by the completion path. Estimated
// progress never reaches it; see the progress package ceiling.
const ProgressMax = 100

// ErrNoReportsQueued is returned when no queued reports are available to claim.
var ErrNoReportsQueued = errors.New("no reports queued")

// UnmarshalText implements encoding.TextUnmarshaler for ReportStatus so
// filters and env values can be parsed directly.
func (s *ReportStatus) UnmarshalText(text []byte) error {
	v := ReportStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ReportStatus: %q", string(text))
	}
	*s = v
	return nil
}

// Valid returns true if the ReportStatus is one of the known states.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusQueued, ReportStatusGenerating, ReportStatusCompleted,
		ReportStatusFailed, ReportStatusArchived:
		return true
	default:
		return false
	}
}

// Terminal returns true once the automatic state machine performs no further
// transitions. Archived is excluded: it is reachable only through an explicit
// caller operation after completion.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// Valid returns true if the ErrorKind is one of the known kinds.
func (k ErrorKind) Valid() bool {
	return k == ErrorKindNone || k == ErrorKindFault || k == ErrorKindTimeout
}

// Report represents one report-generation attempt. The row in the reports
// table is the sole arbiter of truth for its state; progress is written only
// by the owning generator and observers are read-only.
type Report struct {
	ID               string          `json:"id"                     db:"id"`
	OwnerID          string          `json:"owner_id"               db:"owner_id"`
	Status           ReportStatus    `json:"status"                 db:"status"`
	Target           string          `json:"target"                 db:"target"`
	Progress         int             `json:"progress"               db:"progress"`
	Message          string          `json:"message"                db:"message"`
	Content          json.RawMessage `json:"content,omitempty"      db:"-"`
	Error            *string         `json:"error,omitempty"        db:"error"`
	ErrorKind        ErrorKind       `json:"error_kind,omitempty"   db:"error_kind"`
	Metadata         json.RawMessage `json:"metadata,omitempty"     db:"metadata"`
	EstimatedSeconds int             `json:"estimated_seconds"      db:"estimated_seconds"`
	StartedAt        *time.Time      `json:"started_at,omitempty"   db:"started_at"`
	Deadline         *time.Time      `json:"deadline,omitempty"     db:"deadline"`
	CreatedAt        time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"             db:"updated_at"`
}

// CreateReportRequest represents a request to start generating a report.
type CreateReportRequest struct {
	Target           string          `json:"target"`
	EstimatedSeconds int             `json:"estimated_seconds,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// Validate validates the CreateReportRequest fields.
func (r *CreateReportRequest) Validate() error {
	if strings.TrimSpace(r.Target) == "" {
		return errors.New("target is required")
	}
	if r.EstimatedSeconds < 0 {
		return errors.New("estimated seconds must be >= 0")
	}
	if len(r.Metadata) > 0 && !json.Valid(r.Metadata) {
		return errors.New("metadata must be valid JSON")
	}
	return nil
}

// ReportStatusView is the read model served by the status endpoint and fed to
// poll observers. Error and ErrorKind are populated only for failed reports.
type ReportStatusView struct {
	Status    ReportStatus `json:"status"`
	Progress  int          `json:"progress"`
	Message   string       `json:"message"`
	Error     *string      `json:"error,omitempty"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
}

// StatusView projects a report onto its observable status fields.
func (r *Report) StatusView() ReportStatusView {
	view := ReportStatusView{
		Status:   r.Status,
		Progress: r.Progress,
		Message:  r.Message,
	}
	if r.Status == ReportStatusFailed {
		view.Error = r.Error
		view.ErrorKind = r.ErrorKind
	}
	return view
}

// ReportStats represents per-status counts for an owner's reports.
type ReportStats struct {
	Queued     int `json:"queued"`
	Generating int `json:"generating"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Archived   int `json:"archived"`
}
