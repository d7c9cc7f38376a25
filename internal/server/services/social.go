package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/oauth"
	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
)

// SocialService signs users in through an OAuth provider.
type SocialService struct {
	users     *UserService
	providers oauth.Registry
	log       logging.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewSocialService builds on users for persistence and token issuance.
func NewSocialService(users *UserService, providers oauth.Registry, log logging.Logger, metrics *telemetry.Metrics) *SocialService {
	return &SocialService{
		users:     users,
		providers: providers,
		log:       log.With("module", "services.social"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Supports reports whether provider is configured.
func (s *SocialService) Supports(provider string) bool {
	_, ok := s.providers.Get(provider)
	return ok
}

// AuthURL returns the provider consent page URL carrying state.
func (s *SocialService) AuthURL(provider, state string) (string, error) {
	p, ok := s.providers.Get(provider)
	if !ok {
		return "", common.ErrUnknownProvider
	}
	return p.AuthCodeURL(state), nil
}

// Callback exchanges code for the provider profile, finds or creates the
// matching user by email and starts a session. Provider failures yield
// ErrorUnauthorized.
func (s *SocialService) Callback(ctx context.Context, provider, code string) (*models.User, *TokenPair, error) {
	p, ok := s.providers.Get(provider)
	if !ok {
		return nil, nil, common.ErrUnknownProvider
	}

	profile, err := p.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordSocialCallback(ctx, provider, false)
		s.log.Warn(ctx, "provider exchange failed", "provider", provider, "error", err)
		return nil, nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}

	var (
		user *models.User
		pair *TokenPair
	)
	err = s.users.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.upsertUser(ctx, tx, provider, profile)
		if err != nil {
			return err
		}
		return s.users.startSessionTx(ctx, tx, user.ID, &pair)
	})
	if errors.Is(err, common.ErrorUnauthorized) {
		s.metrics.RecordSocialCallback(ctx, provider, false)
		s.log.Warn(ctx, "social login refused", "provider", provider, "error", err)
		return nil, nil, err
	}
	if err != nil {
		s.metrics.RecordSocialCallback(ctx, provider, false)
		s.log.Error(ctx, "social login failed", "provider", provider, "error", err)
		return nil, nil, common.ErrorInternal
	}

	s.metrics.RecordSocialCallback(ctx, provider, true)
	s.log.Info(ctx, "social login", "provider", provider, "user_id", user.ID)
	return user, pair, nil
}

func (s *SocialService) upsertUser(ctx context.Context, tx dbx.DBTX, provider string, profile *oauth.Profile) (*models.User, error) {
	users := s.users.repomanager.Users(tx)
	now := s.now()

	user, err := users.GetByEmail(ctx, profile.Email)
	if err == nil {
		// An unverified provider email proves nothing about the mailbox, so
		// it may only sign in to the account this provider identity created.
		sameIdentity := user.Provider == provider && user.ProviderID == profile.ID
		if !profile.EmailVerified && !sameIdentity {
			return nil, fmt.Errorf("%w: unverified provider email matches existing account", common.ErrorUnauthorized)
		}
		if err := users.LinkProvider(ctx, user.ID, provider, profile.ID, profile.Avatar); err != nil {
			return nil, err
		}
		user.Provider, user.ProviderID, user.Avatar = provider, profile.ID, profile.Avatar
		if profile.EmailVerified && !user.IsVerified() {
			if _, err := users.MarkEmailVerified(ctx, user.ID, now); err != nil {
				return nil, err
			}
			user.EmailVerifiedAt = &now
		}
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	// Social accounts get an unguessable password; they sign in through the
	// provider or after a password reset.
	random, err := common.MakeRandURLString(32)
	if err != nil {
		return nil, err
	}
	hash, err := s.users.hasher.Hash(random)
	if err != nil {
		return nil, err
	}

	name := profile.Name
	if name == "" {
		name = profile.Email
	}
	newUser := &models.User{
		Name:         name,
		Email:        profile.Email,
		PasswordHash: hash,
		Provider:     provider,
		ProviderID:   profile.ID,
		Avatar:       profile.Avatar,
	}
	if profile.EmailVerified {
		newUser.EmailVerifiedAt = &now
	}

	user, err = users.Create(ctx, newUser)
	if err != nil {
		return nil, err
	}
	if err := s.users.repomanager.Roles(tx).Assign(ctx, user.ID, common.RoleUser); err != nil {
		return nil, err
	}
	return user, nil
}
