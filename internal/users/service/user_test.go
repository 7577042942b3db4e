package service

import (
	"context"
	"testing"

	"github.com/opsarea/userd/internal/users/domain"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions account with role and confirmation mail", func(t *testing.T) {
		e := newEnv(t)

		u, err := e.users.Create(ctx, CreateUserInput{
			Email:     "Alice@Example.com",
			UserName:  "alice",
			FirstName: "Alice",
			Password:  "correct horse",
		})
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", u.Email) // normalized
		require.False(t, u.EmailConfirmed)

		// Default role applies when none was requested.
		roles, err := e.roles.GetRoles(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, []string{string(domain.RoleUser)}, roles)

		require.Equal(t, "alice@example.com", e.mailer.to)
		require.NotEmpty(t, e.mailer.token)

		// Provisioning leaves a change-audit trail.
		require.NotEmpty(t, e.changes.events)
		require.Equal(t, "User", e.changes.events[0].Change.EntityType)
		require.Equal(t, u.ID, e.changes.events[0].Change.PrimaryKey)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		e := newEnv(t)
		newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)

		_, err := e.users.Create(ctx, CreateUserInput{
			Email:    "alice@example.com",
			UserName: "alice2",
			Password: "correct horse",
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		e := newEnv(t)

		cases := []CreateUserInput{
			{Email: "", UserName: "x", Password: "correct horse"},
			{Email: "not-an-email", UserName: "x", Password: "correct horse"},
			{Email: "a@b.com", UserName: "", Password: "correct horse"},
			{Email: "a@b.com", UserName: "x", Password: "short"},
			{Email: "a@b.com", UserName: "x", Password: "correct horse", Role: "wizard"},
		}
		for _, in := range cases {
			_, err := e.users.Create(ctx, in)
			require.ErrorIs(t, err, ErrValidation)
		}
	})
}

func TestEditUser(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only the provided fields", func(t *testing.T) {
		e := newEnv(t)
		u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)
		auditsBefore := len(e.changes.events)

		got, err := e.users.Edit(ctx, EditUserInput{
			ID:        u.ID,
			FirstName: strPtr("Alice"),
			LastName:  strPtr("Liddell"),
		})
		require.NoError(t, err)
		require.Equal(t, "Alice", got.FirstName)
		require.Equal(t, "Liddell", got.LastName)
		require.Equal(t, u.Email, got.Email)
		require.Len(t, e.changes.events, auditsBefore+1)
	})

	t.Run("no-op edit writes no audit", func(t *testing.T) {
		e := newEnv(t)
		u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)
		auditsBefore := len(e.changes.events)

		_, err := e.users.Edit(ctx, EditUserInput{ID: u.ID, UserName: strPtr(u.UserName)})
		require.NoError(t, err)
		require.Len(t, e.changes.events, auditsBefore)
	})

	t.Run("rejects unknown user and bad email", func(t *testing.T) {
		e := newEnv(t)
		u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)

		_, err := e.users.Edit(ctx, EditUserInput{ID: "missing", UserName: strPtr("x")})
		require.ErrorIs(t, err, ErrNotFound)

		_, err = e.users.Edit(ctx, EditUserInput{ID: u.ID, Email: strPtr("nope")})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("email collision conflicts", func(t *testing.T) {
		e := newEnv(t)
		newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)
		bob := newConfirmedUser(t, e, "bob@example.com", "correct horse", domain.RoleUser)

		_, err := e.users.Edit(ctx, EditUserInput{ID: bob.ID, Email: strPtr("alice@example.com")})
		require.ErrorIs(t, err, ErrConflict)
	})
}

func TestSoftDeleteUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)

	pair, err := e.auth.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, e.users.SoftDelete(ctx, u.ID))

	// The row survives, sessions do not.
	got, err := e.users.Get(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.User.IsDeleted)

	_, err = e.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)

	// Idempotent.
	require.NoError(t, e.users.SoftDelete(ctx, u.ID))

	require.ErrorIs(t, e.users.SoftDelete(ctx, "missing"), ErrNotFound)
}

func TestListUsersWithRoles(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleAdmin)
	bob := newConfirmedUser(t, e, "bob@example.com", "correct horse", domain.RoleUser)

	list, err := e.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]UserWithRoles{}
	for _, entry := range list {
		byID[entry.User.ID] = entry
	}
	require.Equal(t, []string{string(domain.RoleAdmin)}, byID[alice.ID].Roles)
	require.Equal(t, []string{string(domain.RoleUser)}, byID[bob.ID].Roles)
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	u, err := e.users.Create(ctx, CreateUserInput{
		Email:    "new@example.com",
		UserName: "new",
		Password: "correct horse",
	})
	require.NoError(t, err)
	token := e.mailer.token

	require.ErrorIs(t, e.users.ConfirmEmail(ctx, u.ID, "bogus"), ErrValidation)
	require.NoError(t, e.users.ConfirmEmail(ctx, u.ID, token))
	// The token is spent.
	require.ErrorIs(t, e.users.ConfirmEmail(ctx, u.ID, token), ErrValidation)
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)

	// Repeated replacement always converges to the last role.
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleUser} {
		require.NoError(t, e.roles.SetRole(ctx, u.ID, role))

		roles, err := e.roles.GetRoles(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, []string{string(role)}, roles)
	}

	require.ErrorIs(t, e.roles.SetRole(ctx, u.ID, "wizard"), ErrValidation)
	require.ErrorIs(t, e.roles.SetRole(ctx, "missing", domain.RoleUser), ErrNotFound)
}

func TestClaimsOrderAndEmailPresence(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleAdmin)

	factory := NewClaimsFactory(e.store, domain.DefaultRoleClaimType)
	claims, err := factory.ForUser(ctx, u, true)
	require.NoError(t, err)
	require.Len(t, claims, 5)

	require.Equal(t, "sub", claims[0].Type)
	require.Equal(t, u.ID, claims[0].Value)
	require.Equal(t, "name", claims[1].Type)
	require.Equal(t, "email", claims[2].Type)
	require.Equal(t, "jti", claims[3].Type)
	require.Equal(t, domain.DefaultRoleClaimType, claims[4].Type)
	require.Equal(t, string(domain.RoleAdmin), claims[4].Value)

	// Without a token id the list shrinks by exactly that claim.
	claims, err = factory.ForUser(ctx, u, false)
	require.NoError(t, err)
	require.Len(t, claims, 4)
	require.Equal(t, domain.DefaultRoleClaimType, claims[3].Type)

	// The email claim is present even for a user without an email.
	claims, err = factory.ForUser(ctx, domain.User{ID: "ghost"}, false)
	require.NoError(t, err)
	require.Equal(t, "email", claims[2].Type)
	require.Empty(t, claims[2].Value)
}
