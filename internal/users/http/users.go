package http

import (
	"net/http"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/usersdk"
)

// UsersHandler covers the account-management endpoints.
type UsersHandler struct {
	Users *service.UserService
	Roles *service.RoleClaimService
}

func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.Users.Create(ctx, service.CreateUserInput{
		Email:     req.Email,
		UserName:  req.UserName,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	roles, err := h.Roles.GetRoles(ctx, u.ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u, roles))
}

func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.Users.List(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := usersdk.ListUsersResponse{Users: make([]usersdk.UserResponse, len(list))}
	for i, entry := range list {
		resp.Users[i] = toUserResponse(entry.User, entry.Roles)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	got, err := h.Users.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(got.User, got.Roles))
}

func (h *UsersHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.EditUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.Users.Edit(ctx, service.EditUserInput{
		ID:        r.PathValue("id"),
		Email:     req.Email,
		UserName:  req.UserName,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	roles, err := h.Roles.GetRoles(ctx, u.ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u, roles))
}

func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Users.SoftDelete(ctx, r.PathValue("id")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.SetRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Roles.SetRole(ctx, r.PathValue("id"), domain.Role(req.Role)); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
