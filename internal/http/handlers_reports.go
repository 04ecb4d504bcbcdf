// Package httpx provides HTTP handlers and utilities for the report generation API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/service"
)

// ReportHandlers provides HTTP handlers for report-related operations.
// Every operation is scoped to the authenticated principal's owner id.
type ReportHandlers struct {
	Svc       *service.ReportService
	Reconcile *service.ReconcileService
	Content   *core.ContentCacheService
}

const (
	maxReportListLimit = 1000 // Maximum number of reports that can be requested in one call
)

// requireOwner returns the authenticated owner id or writes a 401. Handlers
// are only reachable through RequirePrincipal, so a miss means a wiring bug.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := OwnerFromContext(r.Context())
	if owner == "" {
		writeUnauthorized(w)
		return "", false
	}
	return owner, true
}

// requireReportID returns the id path segment or writes a 400.
func requireReportID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("report id is required")},
		)
		return "", false
	}
	return id, true
}

// Create handles HTTP requests to enqueue a new report. Generation runs
// asynchronously; the response carries only the id to poll.
func (h *ReportHandlers) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req model.CreateReportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Svc.Create(r.Context(), owner, &req)
	if err != nil {
		WriteServiceError(w, "create_failed", err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
}

// GetStatus handles HTTP requests for the observable status of a report.
func (h *ReportHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := requireReportID(w, r)
	if !ok {
		return
	}

	view, err := h.Svc.FetchStatus(r.Context(), owner, id)
	if err != nil {
		WriteServiceError(w, "status_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// GetByID handles HTTP requests for the full report record. Completed
// reports carry their content when it can still be fetched; content loss
// never hides the record itself.
func (h *ReportHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := requireReportID(w, r)
	if !ok {
		return
	}

	rec, err := h.Svc.GetByID(r.Context(), owner, id)
	if err != nil {
		WriteServiceError(w, "get_failed", err)
		return
	}

	if rec.Status == model.ReportStatusCompleted && h.Content != nil {
		if content, cerr := h.Content.GetContent(r.Context(), rec.ID); cerr == nil {
			rec.Content = content
		}
	}

	WriteJSON(w, http.StatusOK, rec)
}

// List handles HTTP requests for the canonical report list: persisted rows
// reconciled with live placeholders, newest first.
func (h *ReportHandlers) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, offset := ParseLimitOffset(r, 50, maxReportListLimit)
	opts := &model.ReportListOptions{
		IncludeArchived: parseBoolQuery(r, "include_archived"),
		Limit:           limit,
		Offset:          offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		var status model.ReportStatus
		if err := status.UnmarshalText([]byte(raw)); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
			return
		}
		opts.Status = &status
	}

	reports, err := h.Reconcile.CanonicalList(r.Context(), owner, opts)
	if err != nil {
		WriteServiceError(w, "list_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"limit":   limit,
		"offset":  offset,
	})
}

// Stats handles HTTP requests for per-status report counts.
func (h *ReportHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	stats, err := h.Svc.Stats(r.Context(), owner)
	if err != nil {
		WriteServiceError(w, "stats_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// Archive handles HTTP requests to archive a completed report.
func (h *ReportHandlers) Archive(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := requireReportID(w, r)
	if !ok {
		return
	}

	rec, err := h.Svc.Archive(r.Context(), owner, id)
	if err != nil {
		WriteServiceError(w, "archive_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// Restore handles HTTP requests to restore an archived report.
func (h *ReportHandlers) Restore(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := requireReportID(w, r)
	if !ok {
		return
	}

	rec, err := h.Svc.Restore(r.Context(), owner, id)
	if err != nil {
		WriteServiceError(w, "restore_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// Delete handles HTTP requests to delete a single report in any state.
func (h *ReportHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := requireReportID(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), owner, id); err != nil {
		WriteServiceError(w, "delete_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// BulkDelete handles HTTP requests to delete all of an owner's reports.
func (h *ReportHandlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	opts := model.BulkDeleteOptions{
		IncludeArchived: parseBoolQuery(r, "include_archived"),
	}

	deleted, err := h.Svc.BulkDelete(r.Context(), owner, opts)
	if err != nil {
		WriteServiceError(w, "bulk_delete_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{"deleted_count": deleted})
}
