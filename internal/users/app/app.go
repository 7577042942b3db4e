// Package app assembles the user service: configuration, storage, audit
// sinks, token codec, business services, and the HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsarea/userd/internal/users/audit"
	httpapi "github.com/opsarea/userd/internal/users/http"
	"github.com/opsarea/userd/internal/users/identity"
	"github.com/opsarea/userd/internal/users/obs"
	"github.com/opsarea/userd/internal/users/service"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/internal/users/store/drivers/sqlite"
	"github.com/opsarea/userd/pkg/cryptox"
	"github.com/opsarea/userd/pkg/httpx"
	"github.com/opsarea/userd/pkg/jwtx"
	"github.com/opsarea/userd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the user service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	requestSink *audit.RequestSink
	auditRouter *audit.Router
	codec       *jwtx.Codec

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	roleService         *service.RoleClaimService
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "userd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	codec, err := jwtx.NewCodec([]byte(cfg.JWTSecret), cfg.Issuer, cfg.Audience, cfg.RoleClaimType)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabases(); err != nil {
		return nil, err
	}

	app.initAudit()
	app.initServices()
	app.initHTTP()

	obs.Init()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	housekeepingCtx, cancelHousekeeping := context.WithCancel(context.Background())
	defer cancelHousekeeping()
	app.housekeepingService.Start(housekeepingCtx)

	app.logger.Info("user service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down user service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close the audit database first so any in-flight request records land
	if err := app.requestSink.Close(); err != nil {
		app.logger.Error("error closing audit database", "error", err)
	}

	// Close primary database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("user service stopped")
	return nil
}

// initDatabases opens the primary store and the request-audit database and
// applies the migrations for both.
func (app *Application) initDatabases() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	auditHost := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.AuditDatabaseFile)
	sink, err := audit.NewRequestSink(auditHost)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize audit database: %w", err)
	}
	app.requestSink = sink

	if err := sink.ApplyMigrations(); err != nil {
		_ = sink.Close()
		_ = db.Close()
		return fmt.Errorf("failed to apply audit database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initAudit wires the two audit sinks behind the router. The actor lookup
// prefers the cell planted by the request middleware and falls back to the
// authenticated context for change events recorded outside a request.
func (app *Application) initAudit() {
	app.auditRouter = audit.NewRouter(
		audit.NewChangeSink(app.db),
		app.requestSink,
		app.cfg.AuditDenylist,
		func(ctx context.Context) string {
			if actor := httpx.ActorFromCell(ctx); actor != "" {
				return actor
			}
			return httpx.ActingUserFromContext(ctx)
		},
	)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	id := identity.New(app.db)
	claims := service.NewClaimsFactory(app.db, app.cfg.RoleClaimType)

	app.tokenService = service.NewTokenService(
		app.db,
		app.codec,
		claims,
		app.cfg.AccessTokenTTL,
		app.cfg.RefreshTokenTTL,
	)

	app.roleService = service.NewRoleClaimService(app.db)
	app.userService = service.NewUserService(
		app.db,
		id,
		app.roleService,
		app.tokenService,
		app.auditRouter,
		nil, // default mailer logs confirmation links
	)
	app.authService = service.NewAuthService(app.db, id, app.tokenService)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.codec,
		BuildVersion,
		app.db,
		app.requestSink,
		app.auditRouter,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.UserService = app.userService
	router.RoleService = app.roleService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
