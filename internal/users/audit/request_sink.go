package audit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/opsarea/userd/internal/users/audit/migrations"
	"github.com/opsarea/userd/internal/users/domain"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// RequestSink writes web-request events into a dedicated sqlite database so
// high-volume request logging never contends with the primary store.
type RequestSink struct {
	db *sql.DB
}

func NewRequestSink(dsn string) (*RequestSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &RequestSink{db: db}, nil
}

// NewRequestSinkWithDB wraps an existing connection; tests use it.
func NewRequestSinkWithDB(db *sql.DB) *RequestSink {
	return &RequestSink{db: db}
}

func (s *RequestSink) Close() error { return s.db.Close() }

// Ping verifies the audit database connection is still alive.
func (s *RequestSink) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// DB exposes the underlying connection for diagnostics and tests.
func (s *RequestSink) DB() *sql.DB { return s.db }

// ApplyMigrations brings the request-audit schema up to date. The sink has
// its own migration history, separate from the primary store's.
func (s *RequestSink) ApplyMigrations() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", src, "", driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *RequestSink) Write(ctx context.Context, ev domain.AuditEvent) error {
	if ev.Request == nil {
		return errors.New("request audit event has no request record")
	}

	rec := ev.Request
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_requests (id, method, path, ip_address, user_agent,
			status_code, acting_user, started_at, completed_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, rec.Method, rec.Path, rec.IPAddress, rec.UserAgent,
		rec.StatusCode, ev.ActingUser, rec.StartedAt, rec.CompletedAt, rec.Body)
	return err
}
