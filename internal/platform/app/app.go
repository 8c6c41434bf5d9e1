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

	httpapi "github.com/farmaline-dev/farmaline/internal/platform/http"
	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/internal/platform/store/drivers/sqlite"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the identity service together: database, services, alert
// monitor, and HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.HS256

	tokenService     *service.TokenService
	authService      *service.AuthService
	twoFactorService *service.TwoFactorService
	alertService     *service.AlertService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "farmaline-identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initSigner(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.alertService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.alertService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initSigner prepares the HMAC signer for session tokens. Without a
// configured key the service generates an ephemeral one, which invalidates
// every session on restart. Fine for dev, never for prod.
func (app *Application) initSigner() error {
	key := []byte(app.cfg.SigningKey)
	if len(key) == 0 {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate ephemeral signing key: %w", err)
		}
		key = []byte(generated)
		app.logger.Warn("FARMALINE_SIGNING_KEY not set, using an ephemeral key; sessions will not survive a restart")
	}

	signer, err := jwtx.NewHS256(key)
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
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

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer: app.signer,
		Issuer: app.cfg.Issuer,
		TTL:    app.cfg.SessionTTL,
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
		Period: uint(app.cfg.TOTPPeriod),
		Skew:   uint(app.cfg.TOTPSkew),
	}

	app.authService = &service.AuthService{
		Store:            app.db,
		Tokens:           app.tokenService,
		TwoFactor:        app.twoFactorService,
		Logger:           app.logger,
		LockoutThreshold: app.cfg.LockoutThreshold,
		LockoutWindow:    app.cfg.LockoutWindow,
	}

	app.alertService = service.NewAlertService(app.db, app.logger, service.AlertConfig{
		Interval:                 app.cfg.AlertInterval,
		Window:                   app.cfg.AlertWindow,
		IdentityFailureThreshold: app.cfg.AlertIdentityFailures,
		IPFailureThreshold:       app.cfg.AlertIPFailures,
		IPSpreadThreshold:        app.cfg.AlertIPSpread,
		AuditBurstThreshold:      app.cfg.AlertAuditBurst,
	})
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.TwoFactorService = app.twoFactorService
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
