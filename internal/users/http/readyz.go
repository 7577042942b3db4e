package http

import (
	"net/http"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/usersdk"
)

// ReadyzHandler is the readiness probe: it answers 503 while either database
// is unreachable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	requestSink *audit.RequestSink,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &usersdk.HealthChecks{
			Database:      "ok",
			AuditDatabase: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if requestSink != nil {
			if err := requestSink.Ping(r.Context()); err != nil {
				checks.AuditDatabase = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, usersdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
