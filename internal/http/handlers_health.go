package httpx

import (
	"context"
	"io"
	"net/http"
	"time"
)

const healthResponse = `{"status":"ok"}`

// healthCheckTimeout bounds the combined dependency pings so a wedged
// dependency cannot hang the probe.
const healthCheckTimeout = 2 * time.Second

// HealthHandlers reports process liveness plus the health of named
// dependencies. With no checks configured it degenerates to a static probe.
type HealthHandlers struct {
	Checks map[string]func(context.Context) error
}

// Health serves readiness/liveness checks. Any failing dependency turns the
// response into a 503 with per-check detail; the process itself answering is
// the liveness signal.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if len(h.Checks) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.WriteString(w, healthResponse); err != nil {
			// Nothing more to do if the client connection is gone.
			return
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}

	WriteJSON(w, code, map[string]any{"status": status, "checks": checks})
}
