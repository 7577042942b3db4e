package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/pkg/httpx"
)

// AuditMiddleware records one request event per HTTP request. It plants an
// actor cell so the authn middleware further in can report the identity, and
// emits the event after the handler finishes. Recording can never fail the
// request.
func AuditMiddleware(router *audit.Router) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := httpx.WithActorCell(r.Context())
			r = r.WithContext(ctx)

			started := time.Now().UTC()
			sw := &auditStatusWriter{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(sw, r)

			router.RecordRequest(ctx, domain.RequestRecord{
				Method:      r.Method,
				Path:        r.URL.Path,
				IPAddress:   httpx.IPKeyExtractor(r),
				UserAgent:   r.UserAgent(),
				StatusCode:  sw.code,
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
				Body:        requestMeta(r),
			})
		})
	}
}

// requestMeta serializes non-sensitive request metadata. Bodies are never
// captured; credentials and tokens travel in them.
func requestMeta(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return ""
	}
	b, err := json.Marshal(map[string]string{"query": r.URL.RawQuery})
	if err != nil {
		return ""
	}
	return string(b)
}

type auditStatusWriter struct {
	http.ResponseWriter
	code int
}

func (w *auditStatusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
