package http

import (
	"net/http"

	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/usersdk"
)

// LoginHandler starts a session from an email/password pair.
type LoginHandler struct {
	Auth *service.AuthService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

// RefreshHandler rotates a refresh token into a new pair.
type RefreshHandler struct {
	Auth *service.AuthService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

// LogoutHandler revokes one refresh token. Always answers 204; revoking a
// dead token reveals nothing.
type LogoutHandler struct {
	Auth *service.AuthService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.LogoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAllHandler revokes every session of the authenticated caller.
type LogoutAllHandler struct {
	Auth *service.AuthService
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.Auth.LogoutAll(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, usersdk.LogoutAllResponse{RevokedSessions: n})
}

// ConfirmEmailHandler redeems an email-confirmation token.
type ConfirmEmailHandler struct {
	Users *service.UserService
}

func (h *ConfirmEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.ConfirmEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Users.ConfirmEmail(ctx, req.UserID, req.Token); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler returns the authenticated caller's own record.
type MeHandler struct {
	Users *service.UserService
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	got, err := h.Users.Get(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(got.User, got.Roles))
}

// ClaimsHandler echoes the verified claims of the presented access token.
// Useful for clients and for debugging role issues.
type ClaimsHandler struct{}

func (h *ClaimsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := httpx.ClaimsFromContext(r.Context())
	if claims == nil {
		// Authn middleware guarantees claims; reaching here is a wiring bug.
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, usersdk.ClaimsResponse{
		Subject:   claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		TokenID:   claims.TokenID,
		Roles:     roles,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		ExpiresAt: claims.ExpiresAt,
	})
}
