package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/slogx"
	"github.com/opsarea/userd/pkg/usersdk"
)

// decodeBody parses a JSON request body; a malformed body answers 400 and
// reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, usersdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "request body is not valid JSON",
		})
		return false
	}
	return true
}

// writeServiceError maps service sentinels onto status codes. Credential and
// token failures keep their single generic description; everything
// unexpected becomes an opaque 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteJSON(w, http.StatusBadRequest, usersdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteJSON(w, http.StatusUnauthorized, usersdk.ErrorResponse{
			Error:            "invalid_credentials",
			ErrorDescription: service.ErrInvalidCredentials.Error(),
		})
	case errors.Is(err, service.ErrRefreshTokenInvalid):
		httpx.WriteJSON(w, http.StatusUnauthorized, usersdk.ErrorResponse{
			Error:            "invalid_token",
			ErrorDescription: service.ErrRefreshTokenInvalid.Error(),
		})
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, usersdk.ErrorResponse{
			Error: "not_found",
		})
	case errors.Is(err, service.ErrConflict):
		httpx.WriteJSON(w, http.StatusConflict, usersdk.ErrorResponse{
			Error: "conflict",
		})
	default:
		slogx.FromContext(ctx).Error("request failed", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, usersdk.ErrorResponse{
			Error: "server_error",
		})
	}
}

func toTokenPairResponse(pair domain.TokenPair) usersdk.TokenPairResponse {
	return usersdk.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func toUserResponse(u domain.User, roles []string) usersdk.UserResponse {
	if roles == nil {
		roles = []string{}
	}
	return usersdk.UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		UserName:       u.UserName,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		EmailConfirmed: u.EmailConfirmed,
		IsDeleted:      u.IsDeleted,
		Roles:          roles,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
