package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/identity"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/idx"
	"github.com/opsarea/userd/pkg/slogx"
)

const minPasswordLength = 8

// Mailer delivers the outbound emails the user lifecycle produces. The
// default implementation only logs; a real SMTP sender slots in behind the
// same interface.
type Mailer interface {
	SendEmailConfirmation(ctx context.Context, to, userID, token string) error
}

// LogMailer writes would-be emails to the log. Useful in development and as
// the fallback when no mail transport is configured.
type LogMailer struct{}

func (LogMailer) SendEmailConfirmation(ctx context.Context, to, userID, token string) error {
	slogx.FromContext(ctx).Info("email confirmation issued",
		"to", to, "user_id", userID, "token_length", len(token))
	return nil
}

// CreateUserInput carries everything needed to provision an account.
type CreateUserInput struct {
	Email     string
	UserName  string
	FirstName string
	LastName  string
	Password  string
	Role      domain.Role
}

// EditUserInput mutates profile fields. Nil pointers mean "leave unchanged".
type EditUserInput struct {
	ID        string
	Email     *string
	UserName  *string
	FirstName *string
	LastName  *string
}

// UserWithRoles pairs a user with their resolved role claims for listings.
type UserWithRoles struct {
	User  domain.User
	Roles []string
}

// UserService implements account management: provisioning, profile edits,
// soft deletion, listing, email confirmation.
type UserService struct {
	store    store.Store
	identity *identity.Identity
	roles    *RoleClaimService
	tokens   *TokenService
	audit    *audit.Router
	mailer   Mailer

	now func() time.Time
}

func NewUserService(s store.Store, id *identity.Identity, roles *RoleClaimService,
	tokens *TokenService, router *audit.Router, mailer Mailer) *UserService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &UserService{
		store:    s,
		identity: id,
		roles:    roles,
		tokens:   tokens,
		audit:    router,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create provisions a new account with exactly one role claim, issues an
// email-confirmation token, and hands it to the mailer. A duplicate email
// maps to ErrConflict.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	if err := validateCreate(in); err != nil {
		return domain.User{}, err
	}

	hash, err := s.identity.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		UserName:     strings.TrimSpace(in.UserName),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, string(role))
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return tx.RoleClaims().ReplaceRole(ctx, u.ID, role)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: email %s", ErrConflict, u.Email)
		}
		return domain.User{}, err
	}

	token, err := s.identity.BeginEmailConfirmation(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.mailer.SendEmailConfirmation(ctx, u.Email, u.ID, token); err != nil {
		// The account exists; a lost email is recoverable by re-issuing.
		slogx.FromContext(ctx).Error("failed to send confirmation email",
			"user_id", u.ID, "error", err)
	}

	s.audit.RecordChange(ctx, "User", u.ID, changeSet(map[string][2]string{
		"email":     {"", u.Email},
		"user_name": {"", u.UserName},
		"role":      {"", string(role)},
	}))

	return u, nil
}

// Edit applies the non-nil fields of in to the stored user.
func (s *UserService) Edit(ctx context.Context, in EditUserInput) (domain.User, error) {
	u, err := s.store.Users().GetUserByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: user %s", ErrNotFound, in.ID)
		}
		return domain.User{}, err
	}

	changes := map[string][2]string{}
	apply := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if v != *dst {
			changes[field] = [2]string{*dst, v}
			*dst = v
		}
	}

	if in.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(lowered) {
			return domain.User{}, fmt.Errorf("%w: email", ErrValidation)
		}
		in.Email = &lowered
	}
	apply("email", &u.Email, in.Email)
	apply("user_name", &u.UserName, in.UserName)
	apply("first_name", &u.FirstName, in.FirstName)
	apply("last_name", &u.LastName, in.LastName)

	if len(changes) == 0 {
		return u, nil
	}
	if u.UserName == "" {
		return domain.User{}, fmt.Errorf("%w: user_name", ErrValidation)
	}

	if err := s.store.Users().UpdateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: email %s", ErrConflict, u.Email)
		}
		return domain.User{}, err
	}

	s.audit.RecordChange(ctx, "User", u.ID, changeSet(changes))
	return u, nil
}

// SoftDelete marks the user deleted and revokes all their sessions.
// Deleting an already-deleted user succeeds quietly.
func (s *UserService) SoftDelete(ctx context.Context, id string) error {
	u, err := s.store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return err
	}
	if u.IsDeleted {
		return nil
	}

	if err := s.store.Users().SoftDeleteUser(ctx, id); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		slogx.FromContext(ctx).Error("failed to revoke sessions of deleted user",
			"user_id", id, "error", err)
	}

	s.audit.RecordChange(ctx, "User", id, changeSet(map[string][2]string{
		"is_deleted": {"false", "true"},
	}))
	return nil
}

// Get returns one user with their resolved roles.
func (s *UserService) Get(ctx context.Context, id string) (UserWithRoles, error) {
	u, err := s.store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UserWithRoles{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return UserWithRoles{}, err
	}

	roles, err := s.roles.GetRoles(ctx, u.ID)
	if err != nil {
		return UserWithRoles{}, err
	}
	return UserWithRoles{User: u, Roles: roles}, nil
}

// List returns every user with roles resolved in one bulk query rather than
// one query per row.
func (s *UserService) List(ctx context.Context) ([]UserWithRoles, error) {
	users, err := s.store.Users().ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	rolesByUser, err := s.roles.GetRolesBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserWithRoles, len(users))
	for i, u := range users {
		out[i] = UserWithRoles{User: u, Roles: rolesByUser[u.ID]}
	}
	return out, nil
}

// ConfirmEmail redeems a confirmation token. A token that does not match the
// pending fingerprint is a validation failure.
func (s *UserService) ConfirmEmail(ctx context.Context, userID, token string) error {
	ok, err := s.identity.ConfirmEmail(ctx, userID, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: confirmation token", ErrValidation)
	}

	s.audit.RecordChange(ctx, "User", userID, changeSet(map[string][2]string{
		"email_confirmed": {"false", "true"},
	}))
	return nil
}

func validateCreate(in CreateUserInput) error {
	if !validEmail(strings.TrimSpace(in.Email)) {
		return fmt.Errorf("%w: email", ErrValidation)
	}
	if strings.TrimSpace(in.UserName) == "" {
		return fmt.Errorf("%w: user_name", ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// changeSet serializes field changes as {"field": ["old", "new"], ...}.
func changeSet(changes map[string][2]string) string {
	b, err := json.Marshal(changes)
	if err != nil {
		return "{}"
	}
	return string(b)
}
