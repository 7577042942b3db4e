// Package http wires the service's endpoints: session lifecycle under
// /api/auth, account management under /api/users, probes and metrics at the
// root.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/obs"
	"github.com/opsarea/userd/internal/users/policy"
	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/jwtx"
	"github.com/opsarea/userd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	requestSink *audit.RequestSink

	AuthService *service.AuthService
	UserService *service.UserService
	RoleService *service.RoleClaimService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	requestSink *audit.RequestSink,
	auditRouter *audit.Router,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		requestSink:  requestSink,
	}

	// Global chain: logging first so every later stage has a contextual
	// logger, then metrics, then request auditing.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
		AuditMiddleware(auditRouter),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// requirePolicy translates a named authorization policy into middleware.
func requirePolicy(p policy.Policy) httpx.Middleware {
	roles := make([]string, len(p.Roles))
	for i, role := range p.Roles {
		roles[i] = string(role)
	}
	return httpx.RequireAnyRole(roles...)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	refresh := &RefreshHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /api/auth/refresh-token",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logout := &LogoutHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutAll := &LogoutAllHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /api/auth/logout-all",
		httpx.Chain(logoutAll,
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AnyAuthenticated),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	confirm := &ConfirmEmailHandler{Users: r.UserService}
	r.Mux.Handle("POST /api/auth/confirm-email",
		httpx.Chain(confirm,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	me := &MeHandler{Users: r.UserService}
	r.Mux.Handle("GET /api/auth/me",
		httpx.Chain(me,
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AnyAuthenticated),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /api/auth/claims",
		httpx.Chain(&ClaimsHandler{},
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AnyAuthenticated),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserService, Roles: r.RoleService}

	r.Mux.Handle("POST /api/users",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AdminOrSuperAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /api/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AdminOrSuperAdmin),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /api/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AnyAuthenticated),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PUT /api/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleEdit),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AdminOrSuperAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /api/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.AdminOnly),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("PUT /api/users/{id}/role",
		httpx.Chain(http.HandlerFunc(h.HandleSetRole),
			httpx.AuthnMiddleware(r.verifier),
			requirePolicy(policy.SuperAdminOnly),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.requestSink))
	r.Mux.Handle("GET /metrics", obs.Handler())
}
