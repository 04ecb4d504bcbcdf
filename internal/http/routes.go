package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Reports   *service.ReportService
	Reconcile *service.ReconcileService
	// Optional: completed-content reads for the full-record endpoint.
	Content *core.ContentCacheService
	// AuthRules guard every /api route, evaluated in declaration order.
	AuthRules []AuthRule
	// HealthChecks are pinged by /healthz; keys name the dependency.
	HealthChecks map[string]func(context.Context) error
	Logger       *slog.Logger // Logger for middleware diagnostics (optional)
}

// NewRouter creates and configures a new HTTP router. The report API sits
// behind the principal middleware; /healthz stays open for probes.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	reportHandlers := &ReportHandlers{
		Svc:       services.Reports,
		Reconcile: services.Reconcile,
		Content:   services.Content,
	}
	healthHandlers := &HealthHandlers{Checks: services.HealthChecks}

	requireAuth := RequirePrincipal(services.AuthRules, services.Logger)
	registerReportRoutes(mux, reportHandlers, requireAuth)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandlers.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandlers.Health))

	return mux
}

func registerReportRoutes(
	mux *http.ServeMux,
	h *ReportHandlers,
	mw func(http.Handler) http.Handler,
) {
	wrap := func(hf http.HandlerFunc) http.Handler { return mw(hf) }

	mux.Handle("POST /api/reports", wrap(h.Create))
	mux.Handle("GET /api/reports", wrap(h.List))
	mux.Handle("GET /api/reports/stats", wrap(h.Stats))
	mux.Handle("GET /api/reports/{id}", wrap(h.GetByID))
	mux.Handle("GET /api/reports/{id}/status", wrap(h.GetStatus))
	mux.Handle("POST /api/reports/{id}/archive", wrap(h.Archive))
	mux.Handle("POST /api/reports/{id}/restore", wrap(h.Restore))
	mux.Handle("DELETE /api/reports/{id}", wrap(h.Delete))
	mux.Handle("DELETE /api/reports", wrap(h.BulkDelete))
}
