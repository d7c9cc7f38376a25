// Package services contains server-side business logic. This file implements
// UserService, which sequences registration, login, logout and refresh over
// the access token issuer and the RefreshTokenManager.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}

// AccessTokenIssuer mints and checks access tokens. *auth.TokenIssuer
// implements it.
type AccessTokenIssuer interface {
	Generate(userID string) (*auth.AccessToken, error)
	Parse(token string) (*auth.Claims, error)
	TTL() time.Duration
}

// VerificationSender mails the email verification link to a new user.
type VerificationSender interface {
	SendVerification(ctx context.Context, user *models.User) error
}

// Account is a user together with its resolved roles and permissions.
type Account struct {
	User        *models.User
	Roles       []string
	Permissions []string
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

type UserService struct {
	db            dbx.DBTX
	tx            dbx.Transactor
	repomanager   repomanager.RepositoryManager
	tokens        AccessTokenIssuer
	refresh       *RefreshTokenManager
	hasher        auth.PasswordHasher
	verifications VerificationSender
	singleSession bool
	log           logging.Logger
	metrics       *telemetry.Metrics
}

// UserServiceOption customizes a UserService.
type UserServiceOption func(*UserService)

// WithSingleSession makes every login revoke the user's earlier refresh tokens.
func WithSingleSession(enabled bool) UserServiceOption {
	return func(s *UserService) { s.singleSession = enabled }
}

func WithVerificationSender(v VerificationSender) UserServiceOption {
	return func(s *UserService) { s.verifications = v }
}

func WithLogger(log logging.Logger) UserServiceOption {
	return func(s *UserService) { s.log = log.With("module", "services.user") }
}

func WithMetrics(m *telemetry.Metrics) UserServiceOption {
	return func(s *UserService) { s.metrics = m }
}

// NewUserService wires the auth flows. db serves reads outside transactions,
// tx opens the transactions that issue tokens.
func NewUserService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, tokens AccessTokenIssuer,
	refresh *RefreshTokenManager, hasher auth.PasswordHasher, opts ...UserServiceOption) *UserService {
	s := &UserService{
		db:            db,
		tx:            tx,
		repomanager:   m,
		tokens:        tokens,
		refresh:       refresh,
		hasher:        hasher,
		singleSession: true,
		log:           logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates in, creates the user with the default role and returns
// the user with a fresh token pair. Nothing is persisted when validation fails.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	email := strings.TrimSpace(in.Email)

	v := common.ValidationErrors{}
	checkName(v, in.Name)
	checkEmail(v, email)
	checkPassword(v, in.Password, in.PasswordConfirmation)
	if _, ok := v["email"]; !ok {
		_, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
		switch {
		case err == nil:
			v.Add("email", "has already been taken")
		case !errors.Is(err, common.ErrorNotFound):
			return nil, nil, s.internal(ctx, "lookup email", err)
		}
	}
	if err := v.Err(); err != nil {
		s.metrics.RecordRegistration(ctx, telemetry.ResultFailure)
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, s.internal(ctx, "hash password", err)
	}

	var (
		user *models.User
		pair *TokenPair
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, &models.User{
			Name:         strings.TrimSpace(in.Name),
			Email:        email,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				v.Add("email", "has already been taken")
				return v
			}
			return err
		}
		if err := s.repomanager.Roles(tx).Assign(ctx, user.ID, common.RoleUser); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		s.metrics.RecordRegistration(ctx, telemetry.ResultFailure)
		if errors.Is(err, common.ErrorValidation) {
			return nil, nil, err
		}
		return nil, nil, s.internal(ctx, "register", err)
	}

	s.metrics.RecordRegistration(ctx, telemetry.ResultSuccess)
	s.log.Info(ctx, "user registered", "user_id", user.ID)

	if s.verifications != nil {
		if err := s.verifications.SendVerification(ctx, user); err != nil {
			s.log.Warn(ctx, "verification mail failed", "user_id", user.ID, "error", err)
		}
	}

	return user, pair, nil
}

// Login checks the credentials and returns a fresh token pair. An unknown
// email and a wrong password both yield ErrorInvalidCredentials after a
// bcrypt comparison.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			s.metrics.RecordLogin(ctx, telemetry.ResultFailure)
			return nil, nil, common.ErrorInvalidCredentials
		}
		return nil, nil, s.internal(ctx, "lookup user", err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		s.metrics.RecordLogin(ctx, telemetry.ResultFailure)
		return nil, nil, common.ErrorInvalidCredentials
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordLogin(ctx, telemetry.ResultSuccess)
	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return user, pair, nil
}

// startSession issues a token pair for userID, revoking the user's earlier
// refresh tokens first when single-session login is on.
func (s *UserService) startSession(ctx context.Context, userID string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.startSessionTx(ctx, tx, userID, &pair)
	})
	if err != nil {
		return nil, s.internal(ctx, "start session", err)
	}
	return pair, nil
}

func (s *UserService) startSessionTx(ctx context.Context, tx dbx.DBTX, userID string, out **TokenPair) error {
	if s.singleSession {
		n, err := s.refresh.RevokeAllForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		s.metrics.RecordTokensRevoked(ctx, n, "login")
	}
	pair, err := s.issueTokens(ctx, tx, userID)
	if err != nil {
		return err
	}
	*out = pair
	return nil
}

// Logout ends the current session. The presented refresh token is revoked,
// or every token of the user when none is presented; the access token is
// denylisted until it expires.
func (s *UserService) Logout(ctx context.Context, ac *auth.AuthContext, refreshToken string) error {
	if ac == nil {
		return common.ErrorUnauthorized
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if refreshToken != "" {
			n, err := s.refresh.Revoke(ctx, tx, ac.UserID, refreshToken)
			if err != nil {
				return err
			}
			s.metrics.RecordTokensRevoked(ctx, n, "logout")
		} else {
			n, err := s.refresh.RevokeAllForUser(ctx, tx, ac.UserID)
			if err != nil {
				return err
			}
			s.metrics.RecordTokensRevoked(ctx, n, "logout")
		}
		if ac.JTI != "" {
			return s.repomanager.AccessTokens(tx).Revoke(ctx, ac.JTI, ac.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return s.internal(ctx, "logout", err)
	}

	s.metrics.RecordLogout(ctx)
	s.log.Info(ctx, "user logged out", "user_id", ac.UserID)
	return nil
}

// Refresh rotates refreshToken and mints a new access token for its owner.
// Every refresh failure is reported as ErrorUnauthorized; the wrapped cause
// (not found, expired, revoked) is kept for logging.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		s.metrics.RecordRefresh(ctx, telemetry.ResultFailure, "missing")
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		issued, err := s.refresh.Rotate(ctx, tx, refreshToken)
		if err != nil {
			return err
		}

		userID := issued.Record.UserID
		if _, err := s.repomanager.Users(tx).GetByID(ctx, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrRefreshTokenNotFound
			}
			return err
		}

		access, err := s.mintAccess(userID)
		if err != nil {
			return err
		}
		pair = &TokenPair{AccessToken: access.Token, RefreshToken: issued.Secret, ExpiresIn: s.tokens.TTL()}
		return nil
	})
	if err != nil {
		if reason, ok := refreshFailureReason(err); ok {
			s.metrics.RecordRefresh(ctx, telemetry.ResultFailure, reason)
			s.log.Info(ctx, "refresh rejected", "reason", reason)
			return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
		}
		s.metrics.RecordRefresh(ctx, telemetry.ResultFailure, "internal")
		return nil, s.internal(ctx, "refresh", err)
	}

	s.metrics.RecordRefresh(ctx, telemetry.ResultSuccess, "")
	s.metrics.RecordTokenIssued(ctx)
	return pair, nil
}

func refreshFailureReason(err error) (string, bool) {
	switch {
	case errors.Is(err, common.ErrRefreshTokenNotFound):
		return "not_found", true
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return "expired", true
	case errors.Is(err, common.ErrRefreshTokenRevoked):
		return "revoked", true
	}
	return "", false
}

// Me returns the user with roles and permissions.
func (s *UserService) Me(ctx context.Context, userID string) (*Account, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internal(ctx, "load user", err)
	}

	roles, err := s.repomanager.Roles(s.db).RolesForUser(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "load roles", err)
	}
	perms, err := s.repomanager.Roles(s.db).PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "load permissions", err)
	}

	return &Account{User: user, Roles: roles, Permissions: perms}, nil
}

// Authenticate resolves a bearer access token into the request's
// AuthContext. Denylisted tokens are rejected.
func (s *UserService) Authenticate(ctx context.Context, bearer string) (*auth.AuthContext, error) {
	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	revoked, err := s.repomanager.AccessTokens(s.db).IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, s.internal(ctx, "check denylist", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrInvalidToken)
	}

	ac := &auth.AuthContext{UserID: claims.Subject, JTI: claims.ID}
	if claims.ExpiresAt != nil {
		ac.ExpiresAt = claims.ExpiresAt.Time
	}

	roles := s.repomanager.Roles(s.db)
	if ac.Roles, err = roles.RolesForUser(ctx, ac.UserID); err != nil {
		return nil, s.internal(ctx, "load roles", err)
	}
	if ac.Permissions, err = roles.PermissionsForUser(ctx, ac.UserID); err != nil {
		return nil, s.internal(ctx, "load permissions", err)
	}
	return ac, nil
}

// issueTokens creates the refresh row on tx and mints the access token.
// A minting failure is returned so the caller's transaction rolls back the row.
func (s *UserService) issueTokens(ctx context.Context, tx dbx.DBTX, userID string) (*TokenPair, error) {
	issued, err := s.refresh.Issue(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	access, err := s.mintAccess(userID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx)
	return &TokenPair{AccessToken: access.Token, RefreshToken: issued.Secret, ExpiresIn: s.tokens.TTL()}, nil
}

func (s *UserService) mintAccess(userID string) (*auth.AccessToken, error) {
	access, err := s.tokens.Generate(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: mint access token: %v", common.ErrorInternal, err)
	}
	return access, nil
}

// internal logs err and returns the opaque ErrorInternal.
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
