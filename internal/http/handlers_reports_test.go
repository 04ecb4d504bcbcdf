package httpx

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/service"
	"github.com/reportable/reportgen/internal/testutil"
)

const testOwner = "owner-1"

func newReportHandlers(t *testing.T, db *sql.DB) (*ReportHandlers, *data.ReportRepo) {
	t.Helper()

	repo := data.NewReportRepo(db, data.RepoConfig{})
	svc := service.MustNewReportService(service.ReportServiceOptions{
		Repo:            repo,
		DefaultEstimate: 25 * time.Second,
	})
	t.Cleanup(svc.StopAllListeners)
	reconcile := service.MustNewReconcileService(service.ReconcileServiceOptions{Repo: repo})
	content := core.NewContentCacheService(core.ContentCacheServiceOptions{
		Contents: data.NewContentRepo(db),
		Config:   core.DefaultContentCacheConfig(),
	})

	return &ReportHandlers{Svc: svc, Reconcile: reconcile, Content: content}, repo
}

// authedRequest builds a request carrying the principal the middleware would
// have attached.
func authedRequest(method, target string, body io.Reader, owner string) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := SetPrincipalInContext(r.Context(), domainauth.Principal{
		OwnerID: owner,
		Subject: owner,
		Source:  domainauth.SourceAPIKey,
	})
	return r.WithContext(ctx)
}

func TestReportHandlers_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)

		body, err := json.Marshal(model.CreateReportRequest{
			Target:           "https://example.com/checkout",
			EstimatedSeconds: 30,
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodPost, "/api/reports", bytes.NewReader(body), testOwner)
		r.Header.Set("Content-Type", "application/json")

		handlers.Create(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotEmpty(t, response["id"])

		rec, err := repo.GetByID(context.Background(), testOwner, response["id"])
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusQueued, rec.Status)
		assert.Equal(t, "example.com", rec.Target)
		assert.Equal(t, 30, rec.EstimatedSeconds)
	})
}

func TestReportHandlers_Create_Validation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, _ := newReportHandlers(t, db)

		body, err := json.Marshal(model.CreateReportRequest{Target: ""})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodPost, "/api/reports", bytes.NewReader(body), testOwner)

		handlers.Create(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_failed")
	})
}

func TestReportHandlers_GetStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		completed := seeder.SeedCompleted(context.Background(), testOwner, "example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports/"+completed.ID+"/status", nil, testOwner)
		r.SetPathValue("id", completed.ID)

		handlers.GetStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var view model.ReportStatusView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, model.ReportStatusCompleted, view.Status)
		assert.Equal(t, model.ProgressMax, view.Progress)
	})
}

func TestReportHandlers_GetStatus_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, _ := newReportHandlers(t, db)

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports/missing/status", nil, testOwner)
		r.SetPathValue("id", "00000000-0000-0000-0000-000000000000")

		handlers.GetStatus(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "report_not_found")
	})
}

func TestReportHandlers_GetByID_IncludesContent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		completed := seeder.SeedCompleted(context.Background(), testOwner, "example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports/"+completed.ID, nil, testOwner)
		r.SetPathValue("id", completed.ID)

		handlers.GetByID(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var rec model.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, completed.ID, rec.ID)
		assert.Equal(t, model.ReportStatusCompleted, rec.Status)
		assert.JSONEq(t, `{"seeded":true}`, string(rec.Content))
	})
}

func TestReportHandlers_GetByID_CrossOwnerIsNotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		rec := seeder.SeedQueued(context.Background(), testOwner, "example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports/"+rec.ID, nil, "other-owner")
		r.SetPathValue("id", rec.ID)

		handlers.GetByID(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "report_not_found")
	})
}

func TestReportHandlers_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		ctx := context.Background()
		seeder.SeedArchived(ctx, testOwner, "archived.example.com")
		seeder.SeedCompleted(ctx, testOwner, "completed.example.com")
		seeder.SeedQueued(ctx, testOwner, "queued.example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports", nil, testOwner)

		handlers.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Reports []*model.Report `json:"reports"`
			Limit   int             `json:"limit"`
			Offset  int             `json:"offset"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Reports, 2)
		assert.Equal(t, 50, response.Limit)
		assert.Equal(t, 0, response.Offset)

		// Archived rows only appear when asked for.
		w = httptest.NewRecorder()
		r = authedRequest(http.MethodGet, "/api/reports?include_archived=true", nil, testOwner)

		handlers.List(w, r)

		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Reports, 3)
	})
}

func TestReportHandlers_List_InvalidStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, _ := newReportHandlers(t, db)

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports?status=bogus", nil, testOwner)

		handlers.List(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_query")
	})
}

func TestReportHandlers_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		ctx := context.Background()
		seeder.SeedCompleted(ctx, testOwner, "a.example.com")
		seeder.SeedFailed(ctx, testOwner, "b.example.com", "analyzer crashed")
		seeder.SeedQueued(ctx, testOwner, "c.example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodGet, "/api/reports/stats", nil, testOwner)

		handlers.Stats(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var stats model.ReportStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.Queued)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
	})
}

func TestReportHandlers_ArchiveRestore(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		completed := seeder.SeedCompleted(context.Background(), testOwner, "example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodPost, "/api/reports/"+completed.ID+"/archive", nil, testOwner)
		r.SetPathValue("id", completed.ID)

		handlers.Archive(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var rec model.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, model.ReportStatusArchived, rec.Status)

		w = httptest.NewRecorder()
		r = authedRequest(http.MethodPost, "/api/reports/"+completed.ID+"/restore", nil, testOwner)
		r.SetPathValue("id", completed.ID)

		handlers.Restore(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, model.ReportStatusCompleted, rec.Status)
	})
}

func TestReportHandlers_Archive_WrongState(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		queued := seeder.SeedQueued(context.Background(), testOwner, "example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodPost, "/api/reports/"+queued.ID+"/archive", nil, testOwner)
		r.SetPathValue("id", queued.ID)

		handlers.Archive(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "conflict")
	})
}

func TestReportHandlers_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		rec := seeder.SeedFailed(context.Background(), testOwner, "example.com", "boom")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodDelete, "/api/reports/"+rec.ID, nil, testOwner)
		r.SetPathValue("id", rec.ID)

		handlers.Delete(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"deleted":true`)

		// Deleting the same report again reports not found.
		w = httptest.NewRecorder()
		r = authedRequest(http.MethodDelete, "/api/reports/"+rec.ID, nil, testOwner)
		r.SetPathValue("id", rec.ID)

		handlers.Delete(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReportHandlers_BulkDelete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, repo := newReportHandlers(t, db)
		seeder := testutil.NewReportSeeder(t, repo)
		ctx := context.Background()
		seeder.SeedArchived(ctx, testOwner, "archived.example.com")
		seeder.SeedCompleted(ctx, testOwner, "completed.example.com")
		seeder.SeedQueued(ctx, testOwner, "queued.example.com")

		w := httptest.NewRecorder()
		r := authedRequest(http.MethodDelete, "/api/reports", nil, testOwner)

		handlers.BulkDelete(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]int
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response["deleted_count"])

		// The archived row survives until include_archived is set.
		w = httptest.NewRecorder()
		r = authedRequest(http.MethodDelete, "/api/reports?include_archived=true", nil, testOwner)

		handlers.BulkDelete(w, r)

		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 1, response["deleted_count"])
	})
}

func TestReportHandlers_MissingPrincipal(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, _ := newReportHandlers(t, db)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/reports", nil)

		handlers.List(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
