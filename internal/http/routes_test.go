package httpx

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/domain/model"
	mocks "github.com/reportable/reportgen/internal/mocks/auth"
	"github.com/reportable/reportgen/internal/testutil"
)

func TestNewRouter_HealthzIsOpen(t *testing.T) {
	router := NewRouter(RouterServices{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestNewRouter_APIRequiresPrincipal(t *testing.T) {
	router := NewRouter(RouterServices{
		AuthRules: []AuthRule{BearerRule(mocks.NewMockPrincipalResolver())},
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/reports", nil)

	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_required")
}

// TestNewRouter_Dispatch drives a create/status/delete round trip through the
// mux so path variables and the auth chain are exercised together.
func TestNewRouter_Dispatch(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		handlers, _ := newReportHandlers(t, db)
		resolver := &mocks.MockPrincipalResolver{
			Principals: map[string]domainauth.Principal{
				"dev-key": {OwnerID: testOwner, Subject: testOwner, Source: domainauth.SourceAPIKey},
			},
		}
		router := NewRouter(RouterServices{
			Reports:   handlers.Svc,
			Reconcile: handlers.Reconcile,
			Content:   handlers.Content,
			AuthRules: []AuthRule{APIKeyRule(resolver)},
		})

		do := func(method, path string, body []byte) *httptest.ResponseRecorder {
			t.Helper()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(method, path, bytes.NewReader(body))
			r.Header.Set("X-API-Key", "dev-key")
			router.ServeHTTP(w, r)
			return w
		}

		body, err := json.Marshal(model.CreateReportRequest{Target: "example.com"})
		require.NoError(t, err)

		w := do(http.MethodPost, "/api/reports", body)
		require.Equal(t, http.StatusCreated, w.Code)

		var created map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		id := created["id"]
		require.NotEmpty(t, id)

		w = do(http.MethodGet, "/api/reports/"+id+"/status", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var view model.ReportStatusView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, model.ReportStatusQueued, view.Status)

		w = do(http.MethodGet, "/api/reports/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var stats model.ReportStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.Queued)

		w = do(http.MethodDelete, "/api/reports/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"deleted":true`)
	})
}
