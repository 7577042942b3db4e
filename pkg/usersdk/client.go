// Package usersdk is the Go client for the userd service. It mirrors the
// HTTP API one-to-one: an unauthenticated Client for login, refresh and
// health, and a Session for everything behind a bearer token.
package usersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the service without credentials.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates and returns a Session holding the token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var pair TokenPairResponse
	err := c.postJSON(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password}, &pair)
	if err != nil {
		return nil, err
	}
	return newSession(c, pair), nil
}

// Refresh exchanges a refresh token for a fresh pair without a Session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	var pair TokenPairResponse
	err := c.postJSON(ctx, "/api/auth/refresh-token", RefreshRequest{RefreshToken: refreshToken}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout revokes a refresh token. Succeeds even when the token is already
// dead.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.postJSON(ctx, "/api/auth/logout", LogoutRequest{RefreshToken: refreshToken}, nil)
}

// ConfirmEmail redeems an email-confirmation token.
func (c *Client) ConfirmEmail(ctx context.Context, userID, token string) error {
	return c.postJSON(ctx, "/api/auth/confirm-email", ConfirmEmailRequest{UserID: userID, Token: token}, nil)
}

// Health fetches the liveness probe.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/livez", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	return decodeJSON(resp, out)
}
