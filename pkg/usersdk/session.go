package usersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// refreshBuffer refreshes the access token slightly before its real expiry
// so in-flight requests never race the deadline.
const refreshBuffer = 30 * time.Second

// Session is an authenticated view of the service. It carries the token pair
// from a login and transparently rotates the refresh token when the access
// token runs out.
type Session struct {
	client *Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(c *Client, pair TokenPairResponse) *Session {
	return &Session{
		client:       c,
		accessToken:  pair.AccessToken,
		refreshToken: pair.RefreshToken,
		expiresAt:    pair.AccessExpiresAt.Add(-refreshBuffer),
	}
}

// RefreshToken exposes the current refresh token so callers can persist the
// session across restarts.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// Logout revokes this session's refresh token.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.refreshToken
	s.mu.Unlock()
	return s.client.Logout(ctx, token)
}

// LogoutAll revokes every session of the authenticated user.
func (s *Session) LogoutAll(ctx context.Context) (*LogoutAllResponse, error) {
	var out LogoutAllResponse
	if err := s.do(ctx, http.MethodPost, "/api/auth/logout-all", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the authenticated user's own record.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claims echoes the verified claims of the current access token.
func (s *Session) Claims(ctx context.Context) (*ClaimsResponse, error) {
	var out ClaimsResponse
	if err := s.do(ctx, http.MethodGet, "/api/auth/claims", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser provisions an account. Requires an admin role.
func (s *Session) CreateUser(ctx context.Context, in CreateUserRequest) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodPost, "/api/users", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns every account. Requires an admin role.
func (s *Session) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	var out ListUsersResponse
	if err := s.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser returns one account.
func (s *Session) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditUser updates profile fields. Requires an admin role.
func (s *Session) EditUser(ctx context.Context, id string, in EditUserRequest) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser soft-deletes an account. Requires the Admin role.
func (s *Session) DeleteUser(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil)
}

// SetRole replaces a user's role. Requires the SuperAdmin role.
func (s *Session) SetRole(ctx context.Context, id, role string) error {
	return s.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id)+"/role", SetRoleRequest{Role: role}, nil)
}

func (s *Session) do(ctx context.Context, method, path string, in, out any) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}

	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	return decodeJSON(resp, out)
}

// validToken returns a usable access token, rotating through the refresh
// endpoint when the current one is about to expire.
func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("session refresh failed: %w", err)
	}

	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.expiresAt = pair.AccessExpiresAt.Add(-refreshBuffer)

	return s.accessToken, nil
}
