package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/identity"
	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/internal/users/store/drivers/sqlite"
	"github.com/opsarea/userd/pkg/cryptox"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/idx"
	"github.com/opsarea/userd/pkg/jwtx"
	"github.com/opsarea/userd/pkg/usersdk"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	// Keep rate limiting out of functional tests.
	wide := httpx.RateLimitConfig{RequestsPerWindow: 100000, Window: time.Minute, Burst: 100000}
	httpx.StrictLimit = wide
	httpx.ModerateLimit = wide
	httpx.LenientLimit = wide

	m.Run()
}

type testServer struct {
	srv     *httptest.Server
	store   *sqlite.Store
	sink    *audit.RequestSink
	users   *service.UserService
	roles   *service.RoleClaimService
	mailer  *captureMailer
	client  *usersdk.Client
}

type captureMailer struct {
	token string
}

func (m *captureMailer) SendEmailConfirmation(_ context.Context, _, _, token string) error {
	m.token = token
	return nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", idx.New().String()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sink, err := audit.NewRequestSink(fmt.Sprintf("file:%s?mode=memory&cache=shared", idx.New().String()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	require.NoError(t, sink.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte(strings.Repeat("k", 32)),
		"userd-test", "userd-clients", domain.DefaultRoleClaimType)
	require.NoError(t, err)

	auditRouter := audit.NewRouter(
		audit.NewChangeSink(st),
		sink,
		[]string{"swagger", "favicon.ico", "hangfire", "livez", "readyz", "metrics"},
		func(ctx context.Context) string {
			if actor := httpx.ActorFromCell(ctx); actor != "" {
				return actor
			}
			return httpx.ActingUserFromContext(ctx)
		},
	)

	id := identity.New(st)
	claims := service.NewClaimsFactory(st, domain.DefaultRoleClaimType)
	tokens := service.NewTokenService(st, codec, claims, time.Hour, 7*24*time.Hour)
	roles := service.NewRoleClaimService(st)
	mailer := &captureMailer{}
	users := service.NewUserService(st, id, roles, tokens, auditRouter, mailer)
	auth := service.NewAuthService(st, id, tokens)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(codec, "test", st, sink, auditRouter, logger)
	router.AuthService = auth
	router.UserService = users
	router.RoleService = roles
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:    srv,
		store:  st,
		sink:   sink,
		users:  users,
		roles:  roles,
		mailer: mailer,
		client: usersdk.NewClient(srv.URL),
	}
}

// seedUser provisions a confirmed account directly through the service layer.
func (ts *testServer) seedUser(t *testing.T, email, password string, role domain.Role) domain.User {
	t.Helper()
	ctx := context.Background()

	u, err := ts.users.Create(ctx, service.CreateUserInput{
		Email:    email,
		UserName: strings.Split(email, "@")[0],
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	require.NoError(t, ts.users.ConfirmEmail(ctx, u.ID, ts.mailer.token))
	return u
}

func (ts *testServer) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	return ts.request(t, http.MethodPost, path, token, body)
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice@example.com", "correct horse", domain.RoleUser)

	t.Run("valid credentials return a pair", func(t *testing.T) {
		resp := ts.post(t, "/api/auth/login", "", usersdk.LoginRequest{
			Email: "alice@example.com", Password: "correct horse",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		pair := decode[usersdk.TokenPairResponse](t, resp)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password is 401 with generic body", func(t *testing.T) {
		resp := ts.post(t, "/api/auth/login", "", usersdk.LoginRequest{
			Email: "alice@example.com", Password: "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decode[usersdk.ErrorResponse](t, resp)
		require.Equal(t, "invalid_credentials", body.Error)

		// Unknown account answers identically.
		resp2 := ts.post(t, "/api/auth/login", "", usersdk.LoginRequest{
			Email: "ghost@example.com", Password: "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
		body2 := decode[usersdk.ErrorResponse](t, resp2)
		require.Equal(t, body.ErrorDescription, body2.ErrorDescription)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/auth/login",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice@example.com", "correct horse", domain.RoleUser)

	session, err := ts.client.Login(context.Background(), "alice@example.com", "correct horse")
	require.NoError(t, err)
	first := session.RefreshToken()

	pair, err := ts.client.Refresh(context.Background(), first)
	require.NoError(t, err)
	require.NotEqual(t, first, pair.RefreshToken)

	// Replaying the spent token is a 401.
	_, err = ts.client.Refresh(context.Background(), first)
	var apiErr *usersdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "invalid_token", apiErr.Code)

	// Logout kills the live one; repeating is still fine.
	require.NoError(t, ts.client.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, ts.client.Logout(context.Background(), pair.RefreshToken))

	_, err = ts.client.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestLogoutAllEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice@example.com", "correct horse", domain.RoleUser)
	ctx := context.Background()

	s1, err := ts.client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	s2, err := ts.client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	out, err := s1.LogoutAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, out.RevokedSessions)

	_, err = ts.client.Refresh(ctx, s2.RefreshToken())
	var apiErr *usersdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	// Anonymous callers get 401 before reaching the handler.
	resp := ts.post(t, "/api/auth/logout-all", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeAndClaimsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	u := ts.seedUser(t, "alice@example.com", "correct horse", domain.RoleAdmin)
	ctx := context.Background()

	session, err := ts.client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, u.ID, me.ID)
	require.Equal(t, []string{string(domain.RoleAdmin)}, me.Roles)

	claims, err := session.Claims(ctx)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.NotEmpty(t, claims.TokenID)
	require.Equal(t, []string{string(domain.RoleAdmin)}, claims.Roles)
}

func TestUserEndpointsAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "user@example.com", "correct horse", domain.RoleUser)
	ts.seedUser(t, "admin@example.com", "correct horse", domain.RoleAdmin)
	ts.seedUser(t, "super@example.com", "correct horse", domain.RoleSuperAdmin)
	ctx := context.Background()

	userSession, err := ts.client.Login(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)
	adminSession, err := ts.client.Login(ctx, "admin@example.com", "correct horse")
	require.NoError(t, err)
	superSession, err := ts.client.Login(ctx, "super@example.com", "correct horse")
	require.NoError(t, err)

	var apiErr *usersdk.APIError

	t.Run("plain users cannot manage accounts", func(t *testing.T) {
		_, err := userSession.ListUsers(ctx)
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

		_, err = userSession.CreateUser(ctx, usersdk.CreateUserRequest{
			Email: "x@example.com", UserName: "x", Password: "correct horse",
		})
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})

	t.Run("admins manage accounts", func(t *testing.T) {
		created, err := adminSession.CreateUser(ctx, usersdk.CreateUserRequest{
			Email: "new@example.com", UserName: "new", Password: "correct horse",
		})
		require.NoError(t, err)
		require.Equal(t, []string{string(domain.RoleUser)}, created.Roles)

		list, err := adminSession.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, list.Users, 4)

		edited, err := adminSession.EditUser(ctx, created.ID, usersdk.EditUserRequest{
			FirstName: ptr("New"),
		})
		require.NoError(t, err)
		require.Equal(t, "New", edited.FirstName)

		require.NoError(t, adminSession.DeleteUser(ctx, created.ID))

		got, err := adminSession.GetUser(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, got.IsDeleted)
	})

	t.Run("only superadmins set roles", func(t *testing.T) {
		list, err := adminSession.ListUsers(ctx)
		require.NoError(t, err)
		var target string
		for _, u := range list.Users {
			if u.Email == "user@example.com" {
				target = u.ID
			}
		}
		require.NotEmpty(t, target)

		err = adminSession.SetRole(ctx, target, string(domain.RoleAdmin))
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

		require.NoError(t, superSession.SetRole(ctx, target, string(domain.RoleAdmin)))

		got, err := superSession.GetUser(ctx, target)
		require.NoError(t, err)
		require.Equal(t, []string{string(domain.RoleAdmin)}, got.Roles)
	})

	t.Run("superadmin delete is forbidden without Admin role", func(t *testing.T) {
		// Deletion is restricted to the Admin role specifically.
		list, err := superSession.ListUsers(ctx)
		require.NoError(t, err)
		err = superSession.DeleteUser(ctx, list.Users[0].ID)
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		_, err := adminSession.CreateUser(ctx, usersdk.CreateUserRequest{
			Email: "admin@example.com", UserName: "dup", Password: "correct horse",
		})
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	})

	t.Run("missing user is 404", func(t *testing.T) {
		_, err := adminSession.GetUser(ctx, "does-not-exist")
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}

func TestConfirmEmailEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	u, err := ts.users.Create(ctx, service.CreateUserInput{
		Email: "new@example.com", UserName: "new", Password: "correct horse",
	})
	require.NoError(t, err)
	token := ts.mailer.token

	require.Error(t, ts.client.ConfirmEmail(ctx, u.ID, "bogus"))
	require.NoError(t, ts.client.ConfirmEmail(ctx, u.ID, token))

	_, err = ts.client.Login(ctx, "new@example.com", "correct horse")
	require.NoError(t, err)
}

func TestProbeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	health, err := ts.client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)

	resp := ts.request(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[usersdk.HealthResponse](t, resp)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.AuditDatabase)

	resp = ts.request(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestAuditTrail(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice@example.com", "correct horse", domain.RoleUser)
	ctx := context.Background()

	session, err := ts.client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	_, err = session.Me(ctx)
	require.NoError(t, err)

	// Denylisted paths leave no trace.
	resp := ts.request(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count := func(where string, args ...any) int {
		t.Helper()
		var n int
		require.NoError(t, ts.sink.DB().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM audit_requests WHERE "+where, args...).Scan(&n))
		return n
	}

	// The middleware finishes writing shortly after the response is sent.
	require.Eventually(t, func() bool {
		return count("path = ?", "/api/auth/login") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The authenticated request carries the acting user.
	require.Eventually(t, func() bool {
		return count("path = ? AND acting_user = ?", "/api/auth/me", "alice@example.com") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 0, count("path = ?", "/livez"))
}

func ptr(s string) *string { return &s }
