package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/identity"
	"github.com/opsarea/userd/internal/users/store/drivers/sqlite"
	"github.com/opsarea/userd/pkg/cryptox"
	"github.com/opsarea/userd/pkg/idx"
	"github.com/opsarea/userd/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	m.Run()
}

type memSink struct {
	events []domain.AuditEvent
}

func (s *memSink) Write(_ context.Context, ev domain.AuditEvent) error {
	s.events = append(s.events, ev)
	return nil
}

type captureMailer struct {
	to    string
	token string
}

func (m *captureMailer) SendEmailConfirmation(_ context.Context, to, _, token string) error {
	m.to = to
	m.token = token
	return nil
}

type env struct {
	store   *sqlite.Store
	codec   *jwtx.Codec
	tokens  *TokenService
	auth    *AuthService
	users   *UserService
	roles   *RoleClaimService
	changes *memSink
	mailer  *captureMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", idx.New().String())
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte(strings.Repeat("k", 32)),
		"userd-test", "userd-clients", domain.DefaultRoleClaimType)
	require.NoError(t, err)

	changes := &memSink{}
	router := audit.NewRouter(changes, &memSink{}, nil, nil)

	id := identity.New(s)
	claims := NewClaimsFactory(s, domain.DefaultRoleClaimType)
	tokens := NewTokenService(s, codec, claims, time.Hour, 7*24*time.Hour)
	roles := NewRoleClaimService(s)
	mailer := &captureMailer{}

	return &env{
		store:   s,
		codec:   codec,
		tokens:  tokens,
		auth:    NewAuthService(s, id, tokens),
		users:   NewUserService(s, id, roles, tokens, router, mailer),
		roles:   roles,
		changes: changes,
		mailer:  mailer,
	}
}

// newConfirmedUser provisions an account and walks the email-confirmation
// flow so it can log in.
func newConfirmedUser(t *testing.T, e *env, email, password string, role domain.Role) domain.User {
	t.Helper()
	ctx := context.Background()

	u, err := e.users.Create(ctx, CreateUserInput{
		Email:    email,
		UserName: strings.Split(email, "@")[0],
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	require.NoError(t, e.users.ConfirmEmail(ctx, u.ID, e.mailer.token))
	return u
}
