// Package workflowtest provides end-to-end workflow testing utilities for the report generation system.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reportable/reportgen/internal/adapters/memstore"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	apperrors "github.com/reportable/reportgen/internal/errors"
	"github.com/reportable/reportgen/internal/service"
	"github.com/reportable/reportgen/internal/testutil"
)

// RepositoryProvider is a simple interface for providing repositories
// This avoids import cycles by letting callers provide their own implementations.
type RepositoryProvider interface {
	ReportRepository(db *sql.DB) core.ReportRepository
	ContentRepository(db *sql.DB) core.ContentRepository
}

// CacheProvider provides Redis-backed stores given a client created by the harness.
type CacheProvider interface {
	CacheRepository(client *redis.Client) core.CacheRepository
	PlaceholderStore(client *redis.Client) core.PlaceholderStore
}

// ScriptedRunner is an AnalysisRunner that returns canned analyzer output.
// Tests mutate its fields between workflow runs; runs are sequential, so no
// locking is needed.
type ScriptedRunner struct {
	// Content is returned on success; DefaultAnalysisContent is used when empty.
	Content json.RawMessage
	// Err forces the run to fail.
	Err error
	// Emits are milestone payloads pushed through the emit callback before returning.
	Emits []json.RawMessage
}

// Run implements core.AnalysisRunner.
func (r *ScriptedRunner) Run(
	ctx context.Context,
	req core.AnalysisRequest,
	emit func(json.RawMessage),
) (json.RawMessage, error) {
	for _, payload := range r.Emits {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if emit != nil {
			emit(payload)
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if len(r.Content) > 0 {
		return r.Content, nil
	}
	return DefaultAnalysisContent(req.Target), nil
}

// DefaultAnalysisContent builds the canned content body used when a
// ScriptedRunner has none configured.
func DefaultAnalysisContent(target string) json.RawMessage {
	content, err := json.Marshal(struct {
		Target   string   `json:"target"`
		Findings []string `json:"findings"`
		Source   string   `json:"source"`
	}{
		Target:   target,
		Findings: []string{},
		Source:   "workflowtest",
	})
	if err != nil {
		// Marshal of a flat struct cannot fail; guard anyway.
		panic(fmt.Sprintf("marshal default analysis content: %v", err))
	}
	return content
}

// UniqueTarget returns a unique report target host for test isolation.
func UniqueTarget(prefix string) string {
	if prefix == "" {
		prefix = "wf"
	}
	return fmt.Sprintf("%s-%d.example.com", prefix, time.Now().UnixNano())
}

// SimpleReportRequest builds a minimal create request for the given target.
// A zero estimate leaves the server-side default in charge.
func SimpleReportRequest(target string, estimatedSeconds int) *model.CreateReportRequest {
	return &model.CreateReportRequest{
		Target:           target,
		EstimatedSeconds: estimatedSeconds,
	}
}

// WorkflowTestHarness provides utilities for end-to-end workflow testing.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t  testutil.TestingTB
	db *sql.DB
	ts *httptest.Server

	// Repositories (using interfaces to avoid import cycles)
	ReportRepo  core.ReportRepository
	ContentRepo core.ContentRepository

	// Services
	ReportSvc    *service.ReportService
	ReconcileSvc *service.ReconcileService
	GeneratorSvc *service.GeneratorService
	ContentCache *core.ContentCacheService

	// Runner feeds the generator; tests script it between runs.
	Runner *ScriptedRunner

	// Placeholders backs the pre-durable-row list view; in-memory unless
	// Redis is enabled.
	Placeholders core.PlaceholderStore

	// Optional Redis components
	RedisAddr   string
	RedisClient *redis.Client
	CacheRepo   core.CacheRepository

	maxGeneration time.Duration
}

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// EnableRedis enables Redis-backed placeholder and content-cache components
	EnableRedis bool
	// RedisAddr overrides the default Redis test address
	RedisAddr string
	// DefaultEstimate sets the default generation estimate
	DefaultEstimate time.Duration
	// MaxGeneration bounds each claimed run
	MaxGeneration time.Duration
	// ProgressInterval sets the generator's progress tick
	ProgressInterval time.Duration
	// RepositoryProvider provides repositories (required to avoid import cycles)
	RepositoryProvider RepositoryProvider
	// CacheProvider provides Redis stores (optional, only used if EnableRedis is true)
	CacheProvider CacheProvider
}

// NewWorkflowTestHarness creates a new workflow test harness with all components wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	// Set defaults
	if opts.DefaultEstimate == 0 {
		opts.DefaultEstimate = 30 * time.Second
	}
	if opts.MaxGeneration == 0 {
		opts.MaxGeneration = 2 * time.Minute
	}
	if opts.ProgressInterval == 0 {
		// Scripted runners finish fast; tick quickly so milestone flushes land.
		opts.ProgressInterval = 50 * time.Millisecond
	}
	if opts.RepositoryProvider == nil {
		t.Fatalf("RepositoryProvider is required to avoid import cycles")
	}

	h := &WorkflowTestHarness{
		t:             t,
		db:            db,
		maxGeneration: opts.MaxGeneration,
	}

	// Wire repositories using provider
	h.ReportRepo = opts.RepositoryProvider.ReportRepository(db)
	h.ContentRepo = opts.RepositoryProvider.ContentRepository(db)

	// Placeholder store: Redis when enabled, in-memory otherwise
	if opts.EnableRedis {
		h.setupRedis(opts.RedisAddr, opts.CacheProvider)
	} else {
		h.Placeholders = memstore.NewPlaceholderStore(memstore.DefaultPlaceholderStoreConfig())
	}

	// Content cache reads fall through to the durable store when no Redis
	// cache is present.
	h.ContentCache = core.NewContentCacheService(core.ContentCacheServiceOptions{
		Cache:    h.CacheRepo,
		Contents: h.ContentRepo,
		Config:   core.DefaultContentCacheConfig(),
	})

	// Wire services
	h.ReportSvc = service.MustNewReportService(service.ReportServiceOptions{
		Repo:            h.ReportRepo,
		DefaultEstimate: opts.DefaultEstimate,
		Placeholders:    h.Placeholders,
		ContentCache:    h.ContentCache,
	})
	h.ReconcileSvc = service.MustNewReconcileService(service.ReconcileServiceOptions{
		Repo:         h.ReportRepo,
		Placeholders: h.Placeholders,
	})
	h.Runner = &ScriptedRunner{}
	h.GeneratorSvc = service.MustNewGeneratorService(service.GeneratorServiceOptions{
		Repo:             h.ReportRepo,
		Runner:           h.Runner,
		Placeholders:     h.Placeholders,
		ContentCache:     h.ContentCache,
		ProgressInterval: opts.ProgressInterval,
		MaxGeneration:    opts.MaxGeneration,
	})

	// Create HTTP test server
	h.setupHTTPServer()

	return h
}

// setupRedis initializes Redis-backed placeholder and cache stores.
func (h *WorkflowTestHarness) setupRedis(addr string, cacheProvider CacheProvider) {
	h.t.Helper()

	if cacheProvider == nil {
		h.t.Fatalf("CacheProvider is required when EnableRedis is true")
	}

	if addr == "" {
		client := testutil.SetupTestRedis(h.t)
		h.initRedisClient(client, addr, cacheProvider)
		return
	}

	// Use specific address for custom setups
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		h.t.Logf("redis not available at %s: %v", addr, err)
		if closeErr := client.Close(); closeErr != nil {
			h.t.Logf("warning: failed to close redis client: %v", closeErr)
		}
		h.t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		return
	}

	h.initRedisClient(client, addr, cacheProvider)
}

func (h *WorkflowTestHarness) initRedisClient(client *redis.Client, addr string, cacheProvider CacheProvider) {
	h.RedisAddr = addr
	h.RedisClient = client
	h.CacheRepo = cacheProvider.CacheRepository(client)
	h.Placeholders = cacheProvider.PlaceholderStore(client)
}

// setupHTTPServer creates and starts the HTTP test server.
func (h *WorkflowTestHarness) setupHTTPServer() {
	h.t.Helper()

	// Create a basic HTTP router for testing
	// We avoid importing the http package to prevent import cycles
	mux := h.createTestRouter()
	h.ts = httptest.NewServer(mux)
}

// ownerHeader carries the owner identity in harness requests; the production
// auth chain is exercised by the HTTP package's own tests.
const ownerHeader = "X-Owner-ID"

// defaultOwnerID is used when a request carries no owner header.
const defaultOwnerID = "workflow-owner"

// createTestRouter creates a basic HTTP router for testing without importing the http package.
// Paths and response shapes mirror the production report API.
func (h *WorkflowTestHarness) createTestRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/reports", h.handleCreateReport)
	mux.HandleFunc("GET /api/reports", h.handleListReports)
	mux.HandleFunc("GET /api/reports/stats", h.handleReportStats)
	mux.HandleFunc("GET /api/reports/{id}", h.handleGetReport)
	mux.HandleFunc("GET /api/reports/{id}/status", h.handleReportStatus)
	mux.HandleFunc("POST /api/reports/{id}/archive", h.handleArchiveReport)
	mux.HandleFunc("POST /api/reports/{id}/restore", h.handleRestoreReport)
	mux.HandleFunc("DELETE /api/reports/{id}", h.handleDeleteReport)
	mux.HandleFunc("DELETE /api/reports", h.handleBulkDeleteReports)

	return mux
}

func ownerFromRequest(r *http.Request) string {
	if owner := r.Header.Get(ownerHeader); owner != "" {
		return owner
	}
	return defaultOwnerID
}

func (h *WorkflowTestHarness) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.t.Fatalf("encode response: %v", err)
	}
}

// writeServiceError maps domain errors onto the same statuses the production
// API uses, so client helpers behave identically against either server.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsNotFound(err):
		http.Error(w, "report not found", http.StatusNotFound)
	case apperrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperrors.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTP handler implementations for testing.
func (h *WorkflowTestHarness) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req *model.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rec, err := h.ReportSvc.Create(r.Context(), ownerFromRequest(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
}

func (h *WorkflowTestHarness) handleListReports(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reports, err := h.ReconcileSvc.CanonicalList(r.Context(), ownerFromRequest(r), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

func parseListQuery(r *http.Request) (*model.ReportListOptions, error) {
	opts := &model.ReportListOptions{}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	if v := q.Get("include_archived"); v != "" {
		b, _ := strconv.ParseBool(v)
		opts.IncludeArchived = b
	}
	if v := q.Get("status"); v != "" {
		var status model.ReportStatus
		if err := status.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid status filter: %w", err)
		}
		opts.Status = &status
	}
	return opts, nil
}

func (h *WorkflowTestHarness) handleReportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ReportSvc.Stats(r.Context(), ownerFromRequest(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *WorkflowTestHarness) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ReportSvc.GetByID(r.Context(), ownerFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *WorkflowTestHarness) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.ReportSvc.FetchStatus(r.Context(), ownerFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *WorkflowTestHarness) handleArchiveReport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ReportSvc.Archive(r.Context(), ownerFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *WorkflowTestHarness) handleRestoreReport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ReportSvc.Restore(r.Context(), ownerFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *WorkflowTestHarness) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.ReportSvc.Delete(r.Context(), ownerFromRequest(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *WorkflowTestHarness) handleBulkDeleteReports(w http.ResponseWriter, r *http.Request) {
	opts := model.BulkDeleteOptions{}
	if v := r.URL.Query().Get("include_archived"); v != "" {
		b, _ := strconv.ParseBool(v)
		opts.IncludeArchived = b
	}

	deleted, err := h.ReportSvc.BulkDelete(r.Context(), ownerFromRequest(r), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"deleted_count": deleted})
}

// GenerateNext claims the oldest queued report and drives it to a terminal
// state through the generator, returning the refreshed row. The worker side
// runs in-process; only the client surface goes over HTTP.
func (h *WorkflowTestHarness) GenerateNext(ctx context.Context) *model.Report {
	h.t.Helper()

	claimed, err := h.ReportSvc.ClaimNextQueued(ctx, h.maxGeneration)
	if err != nil {
		if errors.Is(err, model.ErrNoReportsQueued) {
			h.t.Fatalf("no queued reports to claim")
		}
		h.t.Fatalf("claim next queued report: %v", err)
	}

	if procErr := h.GeneratorSvc.Process(ctx, claimed); procErr != nil {
		h.t.Fatalf("process report %s: %v", claimed.ID, procErr)
	}

	refreshed, err := h.ReportRepo.GetByID(ctx, claimed.OwnerID, claimed.ID)
	if err != nil {
		h.t.Fatalf("refresh report %s: %v", claimed.ID, err)
	}
	return refreshed
}

// Close cleans up all resources.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	if h.ts != nil {
		h.ts.Close()
	}
	if h.ReportSvc != nil {
		h.ReportSvc.StopAllListeners()
	}
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// BaseURL returns the base URL of the test HTTP server.
func (h *WorkflowTestHarness) BaseURL() string {
	return h.ts.URL
}

// HTTPClient provides utilities for making HTTP requests to the test server.
type HTTPClient struct {
	t       testutil.TestingTB
	baseURL string
	ownerID string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP client for testing as the default owner.
func (h *WorkflowTestHarness) NewHTTPClient() *HTTPClient {
	return h.NewOwnerClient(defaultOwnerID)
}

// NewOwnerClient creates an HTTP client authenticated as the given owner.
func (h *WorkflowTestHarness) NewOwnerClient(ownerID string) *HTTPClient {
	return &HTTPClient{
		t:       h.t,
		baseURL: h.BaseURL(),
		ownerID: ownerID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// OwnerID returns the owner the client acts as.
func (c *HTTPClient) OwnerID() string {
	return c.ownerID
}

// DoJSON creates a request with context and performs it using the harness client.
func (c *HTTPClient) DoJSON(method, path string, payload any) *http.Response {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(ownerHeader, c.ownerID)

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

// CreateReport creates a report via HTTP API and returns its id.
func (c *HTTPClient) CreateReport(req *model.CreateReportRequest) string {
	c.t.Helper()

	resp := c.DoJSON(http.MethodPost, "/api/reports", req)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusCreated {
		c.fatalStatus("create report", resp)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.t.Fatalf("decode create report: %v", err)
	}
	if out["id"] == "" {
		c.t.Fatalf("create report returned no id")
	}
	return out["id"]
}

// GetReport fetches the full report record via HTTP API.
func (c *HTTPClient) GetReport(id string) model.Report {
	c.t.Helper()

	resp := c.DoJSON(http.MethodGet, "/api/reports/"+id, nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus("get report", resp)
	}

	var rec model.Report
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		c.t.Fatalf("decode report: %v", err)
	}
	return rec
}

// GetStatus fetches the status view via HTTP API.
func (c *HTTPClient) GetStatus(id string) model.ReportStatusView {
	c.t.Helper()

	resp := c.DoJSON(http.MethodGet, "/api/reports/"+id+"/status", nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus("get report status", resp)
	}

	var view model.ReportStatusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		c.t.Fatalf("decode report status: %v", err)
	}
	return view
}

// ReportListResponse is the list endpoint's response envelope.
type ReportListResponse struct {
	Reports []*model.Report `json:"reports"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListReports fetches the reconciled report list via HTTP API. The query may
// be empty or a raw query string such as "status=completed&limit=10".
func (c *HTTPClient) ListReports(query string) ReportListResponse {
	c.t.Helper()

	path := "/api/reports"
	if query != "" {
		path += "?" + query
	}
	resp := c.DoJSON(http.MethodGet, path, nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus("list reports", resp)
	}

	var out ReportListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.t.Fatalf("decode report list: %v", err)
	}
	return out
}

// GetStats fetches per-status counts via HTTP API.
func (c *HTTPClient) GetStats() model.ReportStats {
	c.t.Helper()

	resp := c.DoJSON(http.MethodGet, "/api/reports/stats", nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus("get report stats", resp)
	}

	var stats model.ReportStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		c.t.Fatalf("decode report stats: %v", err)
	}
	return stats
}

// ArchiveReport archives a completed report via HTTP API.
func (c *HTTPClient) ArchiveReport(id string) model.Report {
	c.t.Helper()
	return c.postForReport("archive report", "/api/reports/"+id+"/archive")
}

// RestoreReport restores an archived report via HTTP API.
func (c *HTTPClient) RestoreReport(id string) model.Report {
	c.t.Helper()
	return c.postForReport("restore report", "/api/reports/"+id+"/restore")
}

func (c *HTTPClient) postForReport(op, path string) model.Report {
	c.t.Helper()

	resp := c.DoJSON(http.MethodPost, path, nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus(op, resp)
	}

	var rec model.Report
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		c.t.Fatalf("decode %s response: %v", op, err)
	}
	return rec
}

// DeleteReport deletes a report via HTTP API.
func (c *HTTPClient) DeleteReport(id string) {
	c.t.Helper()

	resp := c.DoJSON(http.MethodDelete, "/api/reports/"+id, nil)
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.fatalStatus("delete report", resp)
	}
}

// WaitForStatus polls the status endpoint until the report reaches the wanted
// status or the deadline passes. Polling backs off from 25ms to 250ms.
func (c *HTTPClient) WaitForStatus(
	id string,
	want model.ReportStatus,
	timeout time.Duration,
) model.ReportStatusView {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	poll := 25 * time.Millisecond
	maxPoll := 250 * time.Millisecond

	var last model.ReportStatusView
	for {
		last = c.GetStatus(id)
		if last.Status == want {
			return last
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("report %s never reached %s; last status %s (progress %d)",
				id, want, last.Status, last.Progress)
			return last
		}
		time.Sleep(poll)
		if poll < maxPoll {
			poll *= 2
			if poll > maxPoll {
				poll = maxPoll
			}
		}
	}
}

func (c *HTTPClient) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.t.Logf("warning: failed to close response body: %v", err)
	}
}

func (c *HTTPClient) fatalStatus(op string, resp *http.Response) {
	c.t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("%s status: %d, failed to read response: %v", op, resp.StatusCode, err)
	}
	c.t.Fatalf("%s status: %d, response: %s", op, resp.StatusCode, string(body))
}

// WorkflowHelpers provides high-level workflow testing utilities.
type WorkflowHelpers struct {
	harness *WorkflowTestHarness
	client  *HTTPClient
}

// NewWorkflowHelpers creates workflow helpers for the given harness.
func (h *WorkflowTestHarness) NewWorkflowHelpers() *WorkflowHelpers {
	return &WorkflowHelpers{
		harness: h,
		client:  h.NewHTTPClient(),
	}
}

// Client returns the helper's HTTP client.
func (w *WorkflowHelpers) Client() *HTTPClient {
	return w.client
}

// CreateTestReport creates a report over HTTP and returns the full record.
func (w *WorkflowHelpers) CreateTestReport(target string, estimatedSeconds int) model.Report {
	w.harness.t.Helper()

	id := w.client.CreateReport(SimpleReportRequest(target, estimatedSeconds))
	return w.client.GetReport(id)
}

// RunCompleteWorkflow runs a complete workflow: create a report over HTTP,
// observe it queued, drive generation in-process, observe it completed.
func (w *WorkflowHelpers) RunCompleteWorkflow(target string) (model.Report, model.ReportStatusView) {
	w.harness.t.Helper()

	// 1. Create the report via the client API
	created := w.CreateTestReport(target, 5)

	// 2. The client sees it queued before any worker touches it
	queued := w.client.GetStatus(created.ID)
	if queued.Status != model.ReportStatusQueued {
		w.harness.t.Fatalf("expected fresh report to be queued, got %s", queued.Status)
	}

	// 3. Worker side: claim and generate
	generated := w.harness.GenerateNext(context.Background())
	if generated.ID != created.ID {
		w.harness.t.Fatalf("expected generated report ID %s, got %s", created.ID, generated.ID)
	}

	// 4. The client observes the terminal state
	final := w.client.GetStatus(created.ID)
	if final.Status != model.ReportStatusCompleted {
		w.harness.t.Fatalf("expected completed report, got %s (error %v)", final.Status, final.Error)
	}

	return w.client.GetReport(created.ID), final
}

// RunFailedWorkflow drives a report through a failing generation run and
// returns the client-observed terminal view.
func (w *WorkflowHelpers) RunFailedWorkflow(target, errorMsg string) (model.Report, model.ReportStatusView) {
	w.harness.t.Helper()

	prevErr := w.harness.Runner.Err
	w.harness.Runner.Err = errors.New(errorMsg)
	defer func() { w.harness.Runner.Err = prevErr }()

	created := w.CreateTestReport(target, 5)
	generated := w.harness.GenerateNext(context.Background())
	if generated.ID != created.ID {
		w.harness.t.Fatalf("expected generated report ID %s, got %s", created.ID, generated.ID)
	}

	final := w.client.GetStatus(created.ID)
	if final.Status != model.ReportStatusFailed {
		w.harness.t.Fatalf("expected failed report, got %s", final.Status)
	}

	return w.client.GetReport(created.ID), final
}

// VerifyContentStored asserts that generated content is readable through the
// content cache service (cache hit or durable fallback).
func (w *WorkflowHelpers) VerifyContentStored(reportID string) json.RawMessage {
	w.harness.t.Helper()

	content, err := w.harness.ContentCache.GetContent(context.Background(), reportID)
	if err != nil {
		w.harness.t.Fatalf("read generated content for %s: %v", reportID, err)
	}
	if len(content) == 0 {
		w.harness.t.Fatalf("no generated content stored for %s", reportID)
	}
	return content
}

// skipIfRedisUnavailable skips the test if Redis is required but unavailable.
func skipIfRedisUnavailable(t testutil.TestingTB, opts WorkflowTestOptions) {
	t.Helper()

	if !opts.EnableRedis {
		return
	}

	if opts.RedisAddr == "" {
		// Use centralized Redis address detection
		if _, ok := testutil.GetTestRedisAddr(t); !ok {
			t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		}
		return
	}

	// Test specific address by trying to connect
	client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
	}
}

// WithWorkflowHarness is a helper that sets up and tears down a workflow test harness.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)
	skipIfRedisUnavailable(t, opts)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		harness := NewWorkflowTestHarness(t, db, opts)
		defer harness.Close()
		fn(harness)
	})
}

// DefaultWorkflowOptions returns default options for workflow testing.
// Note: You must provide RepositoryProvider to avoid import cycles.
// Example:
//
//	opts := DefaultWorkflowOptions()
//	opts.RepositoryProvider = myRepositoryProvider
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis:     false,
		DefaultEstimate: 30 * time.Second,
		MaxGeneration:   2 * time.Minute,
		// RepositoryProvider must be set by caller
		// CacheProvider is optional (only needed if EnableRedis is true)
	}
}

// RedisWorkflowOptions returns options for workflow testing with Redis enabled.
// Note: You must provide both RepositoryProvider and CacheProvider to avoid import cycles.
// Example:
//
//	opts := RedisWorkflowOptions()
//	opts.RepositoryProvider = myRepositoryProvider
//	opts.CacheProvider = myCacheProvider
func RedisWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis:     true,
		DefaultEstimate: 30 * time.Second,
		MaxGeneration:   2 * time.Minute,
		// RepositoryProvider must be set by caller
		// CacheProvider must be set by caller when EnableRedis is true
	}
}
