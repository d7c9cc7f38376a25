package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/mailer"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
)

const resetSecretSize = 32

// ResetPasswordInput is the password reset form.
type ResetPasswordInput struct {
	Email                string
	Token                string
	Password             string
	PasswordConfirmation string
}

// PasswordResetConfig holds the reset link settings.
type PasswordResetConfig struct {
	FrontendURL string
	TTL         time.Duration
	Throttle    time.Duration
}

// PasswordResetService issues password reset links and consumes them.
type PasswordResetService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	refresh     *RefreshTokenManager
	mail        mailer.Sender
	cfg         PasswordResetConfig
	log         logging.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time
}

func NewPasswordResetService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, hasher auth.PasswordHasher,
	refresh *RefreshTokenManager, mail mailer.Sender, cfg PasswordResetConfig, log logging.Logger, metrics *telemetry.Metrics) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		tx:          tx,
		repomanager: m,
		hasher:      hasher,
		refresh:     refresh,
		mail:        mail,
		cfg:         cfg,
		log:         log.With("module", "services.passwordreset"),
		metrics:     metrics,
		now:         time.Now,
	}
}

// SendResetLink creates (or replaces) the reset token of email and mails
// the link. It fails with common.ErrorNotFound for unknown users and
// common.ErrorThrottled when a link was sent within the throttle window.
func (s *PasswordResetService) SendResetLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	v := common.ValidationErrors{}
	checkEmail(v, email)
	if err := v.Err(); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "lookup user", err)
	}

	resets := s.repomanager.PasswordResets(s.db)
	now := s.now()

	existing, err := resets.Get(ctx, user.Email)
	switch {
	case err == nil:
		if now.Before(existing.CreatedAt.Add(s.cfg.Throttle)) {
			return common.ErrorThrottled
		}
	case !errors.Is(err, common.ErrorNotFound):
		return s.internal(ctx, "lookup reset", err)
	}

	secret, err := common.MakeRandURLString(resetSecretSize)
	if err != nil {
		return s.internal(ctx, "generate reset token", err)
	}
	if err := resets.Put(ctx, &models.PasswordReset{Email: user.Email, TokenHash: HashToken(secret), CreatedAt: now}); err != nil {
		return s.internal(ctx, "store reset", err)
	}

	q := url.Values{}
	q.Set("token", secret)
	q.Set("email", user.Email)
	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?" + q.Encode()

	body := fmt.Sprintf("# Reset your password\n\nYou are receiving this email because we received a password reset request for your account.\n\n[Reset Password](%s)\n\nThis link expires in %d minutes. If you did not request a reset, no further action is required.\n",
		link, int(s.cfg.TTL.Minutes()))

	err = s.mail.Send(ctx, mailer.Message{To: user.Email, Subject: "Reset Password Notification", Markdown: body})
	s.metrics.RecordMailSent(ctx, "password_reset", err == nil)
	if err != nil {
		return s.internal(ctx, "send reset mail", err)
	}

	s.log.Info(ctx, "password reset link sent", "user_id", user.ID)
	return nil
}

// Reset sets a new password when in.Token matches the pending reset of
// in.Email. The reset is consumed and every refresh token of the user is
// revoked.
func (s *PasswordResetService) Reset(ctx context.Context, in ResetPasswordInput) error {
	email := strings.TrimSpace(in.Email)
	v := common.ValidationErrors{}
	checkEmail(v, email)
	if in.Token == "" {
		v.Add("token", "is required")
	}
	checkPassword(v, in.Password, in.PasswordConfirmation)
	if err := v.Err(); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "lookup user", err)
	}

	resets := s.repomanager.PasswordResets(s.db)
	reset, err := resets.Get(ctx, user.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidResetToken
		}
		return s.internal(ctx, "lookup reset", err)
	}
	if !s.now().Before(reset.CreatedAt.Add(s.cfg.TTL)) {
		if _, err := resets.Delete(ctx, user.Email, reset.TokenHash); err != nil {
			s.log.Warn(ctx, "delete expired reset failed", "error", err)
		}
		return common.ErrInvalidResetToken
	}
	if subtle.ConstantTimeCompare([]byte(reset.TokenHash), []byte(HashToken(in.Token))) != 1 {
		return common.ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}

	var revoked int64
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.PasswordResets(tx).Delete(ctx, user.Email, reset.TokenHash)
		if err != nil {
			return err
		}
		if n == 0 {
			// another reset consumed the token first
			return common.ErrInvalidResetToken
		}
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		revoked, err = s.refresh.RevokeAllForUser(ctx, tx, user.ID)
		return err
	})
	if errors.Is(err, common.ErrInvalidResetToken) {
		return err
	}
	if err != nil {
		return s.internal(ctx, "reset password", err)
	}

	s.metrics.RecordTokensRevoked(ctx, revoked, "password_reset")
	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

func (s *PasswordResetService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
