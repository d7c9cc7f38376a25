// Package server wires the auth API: database, migrations, services and the
// HTTP transport, plus signal handling and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/dmitrijs2005/spa-auth/internal/server/httpapi"
	"github.com/dmitrijs2005/spa-auth/internal/server/mailer"
	"github.com/dmitrijs2005/spa-auth/internal/server/oauth"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
)

const (
	purgeInterval  = time.Hour
	purgeRetention = 7 * 24 * time.Hour
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	meters *telemetry.Provider
	admin  *services.AdminService
	http   *httpapi.Server
}

// NewApp connects to the database, applies migrations and builds every
// service behind the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	meters, err := telemetry.NewProvider(cfg.MetricsExporter)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	metrics, err := meters.Metrics()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	secret := []byte(cfg.SecretKey)
	tx := dbx.NewSQLTransactor(db, nil)
	hasher := auth.NewBcryptHasher()
	mail := mailer.New(cfg, logger)
	refresh := services.NewRefreshTokenManager(rm, cfg.RefreshTokenValidityDuration)

	verification := services.NewVerificationService(db, rm, auth.NewLinkSigner(secret), mail,
		cfg.AppURL, cfg.VerificationLinkTTL, logger, metrics)

	users := services.NewUserService(db, tx, rm, auth.NewTokenIssuer(secret, cfg.AccessTokenValidityDuration), refresh, hasher,
		services.WithSingleSession(cfg.SingleSessionLogin),
		services.WithVerificationSender(verification),
		services.WithLogger(logger),
		services.WithMetrics(metrics),
	)

	reset := services.NewPasswordResetService(db, tx, rm, hasher, refresh, mail, services.PasswordResetConfig{
		FrontendURL: cfg.FrontendURL,
		TTL:         cfg.PasswordResetTTL,
		Throttle:    cfg.PasswordResetThrottle,
	}, logger, metrics)

	admin := services.NewAdminService(db, tx, rm, hasher, refresh, logger)

	api := httpapi.NewServer(cfg, logger, metrics, httpapi.Services{
		Auth:          users,
		PasswordReset: reset,
		Verification:  verification,
		Social:        services.NewSocialService(users, oauth.NewRegistry(cfg), logger, metrics),
		Tasks:         services.NewTaskService(db, rm, logger),
		Avatars:       services.NewAvatarService(db, rm, cfg, logger),
		Admin:         admin,
	})
	if h := meters.Handler(); h != nil {
		api.ExposeMetrics(h)
	}

	return &App{config: cfg, logger: logger, db: db, meters: meters, admin: admin, http: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeLoop removes long expired refresh tokens and denylist entries.
func (app *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := app.admin.PurgeTokens(ctx, purgeRetention)
			if err != nil {
				app.logger.Error(ctx, "token purge failed", "error", err)
				continue
			}
			app.logger.Debug(ctx, "token purge", "refresh_tokens", res.RefreshTokens, "access_tokens", res.AccessTokens)
		}
	}
}

// Run blocks until a termination signal arrives or the HTTP server fails,
// then closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeLoop(ctx)
	}()

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.meters.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "metrics shutdown", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "close database", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
