package usersdk

import "time"

// ErrorResponse is the uniform error body every endpoint returns.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// LoginRequest starts a session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest revokes one refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPairResponse is returned by login and refresh.
type TokenPairResponse struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresUtc"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresUtc"`
}

// LogoutAllResponse reports how many sessions a logout-all revoked.
type LogoutAllResponse struct {
	RevokedSessions int64 `json:"revokedSessions"`
}

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Email     string `json:"email"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
}

// EditUserRequest updates profile fields; omitted fields stay unchanged.
type EditUserRequest struct {
	Email     *string `json:"email,omitempty"`
	UserName  *string `json:"userName,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// SetRoleRequest replaces a user's role.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// ConfirmEmailRequest redeems an email-confirmation token.
type ConfirmEmailRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// UserResponse is the API view of an account.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	UserName       string    `json:"userName"`
	FirstName      string    `json:"firstName,omitempty"`
	LastName       string    `json:"lastName,omitempty"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	IsDeleted      bool      `json:"isDeleted"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ListUsersResponse wraps a user listing.
type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

// ClaimsResponse echoes the verified claims of the presented access token.
type ClaimsResponse struct {
	Subject   string    `json:"sub"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	TokenID   string    `json:"jti,omitempty"`
	Roles     []string  `json:"roles"`
	Issuer    string    `json:"iss"`
	Audience  []string  `json:"aud"`
	ExpiresAt time.Time `json:"exp"`
}

// HealthChecks itemizes dependency probes in a readiness response.
type HealthChecks struct {
	Database      string `json:"database"`
	AuditDatabase string `json:"auditDatabase"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
