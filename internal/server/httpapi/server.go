// Package httpapi is the HTTP/JSON transport of the auth server consumed by
// the single-page application.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the subset of services.UserService used by the handlers.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, *services.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	Logout(ctx context.Context, ac *auth.AuthContext, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Me(ctx context.Context, userID string) (*services.Account, error)
	Authenticate(ctx context.Context, bearer string) (*auth.AuthContext, error)
}

type PasswordResetService interface {
	SendResetLink(ctx context.Context, email string) error
	Reset(ctx context.Context, in services.ResetPasswordInput) error
}

type VerificationService interface {
	Verify(ctx context.Context, userID, hash, expires, signature string) (string, error)
	Resend(ctx context.Context, email string) error
}

type SocialService interface {
	Supports(provider string) bool
	AuthURL(provider, state string) (string, error)
	Callback(ctx context.Context, provider, code string) (*models.User, *services.TokenPair, error)
}

type TaskService interface {
	List(ctx context.Context, ac *auth.AuthContext) ([]*models.Task, error)
	Create(ctx context.Context, ac *auth.AuthContext, in services.TaskInput) (*models.Task, error)
	Get(ctx context.Context, ac *auth.AuthContext, id string) (*models.Task, error)
	Update(ctx context.Context, ac *auth.AuthContext, id string, patch services.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, ac *auth.AuthContext, id string) error
}

type AvatarService interface {
	PresignUpload(ctx context.Context, userID string) (*services.AvatarUpload, error)
	AvatarURL(ctx context.Context, user *models.User) (string, error)
}

type AdminService interface {
	RevokeSessions(ctx context.Context, email string) (int64, error)
}

// Services groups the business services behind the routes.
type Services struct {
	Auth          AuthService
	PasswordReset PasswordResetService
	Verification  VerificationService
	Social        SocialService
	Tasks         TaskService
	Avatars       AvatarService
	Admin         AdminService
}

type Server struct {
	address string
	cfg     *config.Config
	svc     Services
	logger  logging.Logger
	metrics *telemetry.Metrics

	verifyLimiter *RateLimiter
	resendLimiter *RateLimiter

	metricsHandler http.Handler
}

func NewServer(cfg *config.Config, l logging.Logger, m *telemetry.Metrics, svc Services) *Server {
	return &Server{
		address:       cfg.EndpointAddrHTTP,
		cfg:           cfg,
		svc:           svc,
		logger:        l.With("module", "http_server"),
		metrics:       m,
		verifyLimiter: NewRateLimiter(6, time.Minute),
		resendLimiter: NewRateLimiter(5, time.Minute),
	}
}

// ExposeMetrics serves h at GET /metrics.
func (s *Server) ExposeMetrics(h http.Handler) {
	s.metricsHandler = h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
