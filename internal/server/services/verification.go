package services

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
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

// Verification outcomes, as reported to the frontend.
const (
	VerificationSuccess = "success"
	VerificationWarning = "warning"
	VerificationError   = "error"
)

// VerificationService sends and checks signed email verification links.
type VerificationService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	signer      *auth.LinkSigner
	mail        mailer.Sender
	appURL      string
	ttl         time.Duration
	log         logging.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time
}

func NewVerificationService(db dbx.DBTX, m repomanager.RepositoryManager, signer *auth.LinkSigner, mail mailer.Sender,
	appURL string, ttl time.Duration, log logging.Logger, metrics *telemetry.Metrics) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		signer:      signer,
		mail:        mail,
		appURL:      strings.TrimRight(appURL, "/"),
		ttl:         ttl,
		log:         log.With("module", "services.verification"),
		metrics:     metrics,
		now:         time.Now,
	}
}

// emailHash is the hex SHA-1 of the lowercased address, embedded in the link.
func emailHash(email string) string {
	sum := sha1.Sum([]byte(normalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

func verificationPath(userID, hash string) string {
	return fmt.Sprintf("/email/verify/%s/%s", userID, hash)
}

// VerificationURL returns the signed link for user.
func (s *VerificationService) VerificationURL(user *models.User) string {
	path := verificationPath(user.ID, emailHash(user.Email))
	return s.appURL + path + "?" + s.signer.Sign(path, s.ttl).Encode()
}

// SendVerification mails the verification link to user.
func (s *VerificationService) SendVerification(ctx context.Context, user *models.User) error {
	body := fmt.Sprintf("# Verify your email address\n\nHello %s,\n\nplease confirm your address by following [this link](%s).\n\nThe link expires in %d minutes.\n",
		user.Name, s.VerificationURL(user), int(s.ttl.Minutes()))

	err := s.mail.Send(ctx, mailer.Message{To: user.Email, Subject: "Verify Email Address", Markdown: body})
	s.metrics.RecordMailSent(ctx, "verification", err == nil)
	if err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// Verify checks a verification link and marks the address verified. It
// returns one of the Verification* statuses; an error is returned only for
// store failures.
func (s *VerificationService) Verify(ctx context.Context, userID, hash, expires, signature string) (string, error) {
	if err := s.signer.Verify(verificationPath(userID, hash), expires, signature); err != nil {
		return VerificationError, nil
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return VerificationError, nil
		}
		s.log.Error(ctx, "load user failed", "error", err)
		return VerificationError, common.ErrorInternal
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(emailHash(user.Email))) != 1 {
		return VerificationError, nil
	}
	if user.IsVerified() {
		return VerificationWarning, nil
	}

	changed, err := s.repomanager.Users(s.db).MarkEmailVerified(ctx, user.ID, s.now())
	if err != nil {
		s.log.Error(ctx, "mark verified failed", "error", err)
		return VerificationError, common.ErrorInternal
	}
	if !changed {
		return VerificationWarning, nil
	}

	s.log.Info(ctx, "email verified", "user_id", user.ID)
	return VerificationSuccess, nil
}

// Resend mails a new link to email. Already verified addresses yield
// common.ErrEmailAlreadyVerified.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
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
		s.log.Error(ctx, "lookup user failed", "error", err)
		return common.ErrorInternal
	}
	if user.IsVerified() {
		return common.ErrEmailAlreadyVerified
	}

	if err := s.SendVerification(ctx, user); err != nil {
		s.log.Error(ctx, "resend verification failed", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}
	return nil
}
