package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
)

// PurgeResult counts rows removed by PurgeTokens.
type PurgeResult struct {
	RefreshTokens int64
	AccessTokens  int64
}

// AdminService backs the operator CLI.
type AdminService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	refresh     *RefreshTokenManager
	log         logging.Logger
	now         func() time.Time
}

func NewAdminService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, hasher auth.PasswordHasher,
	refresh *RefreshTokenManager, log logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		tx:          tx,
		repomanager: m,
		hasher:      hasher,
		refresh:     refresh,
		log:         log.With("module", "services.admin"),
		now:         time.Now,
	}
}

// CreateUser creates a verified user holding role.
func (s *AdminService) CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	email = strings.TrimSpace(email)
	v := common.ValidationErrors{}
	checkName(v, name)
	checkEmail(v, email)
	checkPassword(v, password, password)
	if role == "" {
		v.Add("role", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var user *models.User
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, &models.User{
			Name:            strings.TrimSpace(name),
			Email:           email,
			PasswordHash:    hash,
			EmailVerifiedAt: &now,
		})
		if err != nil {
			return err
		}
		return s.repomanager.Roles(tx).Assign(ctx, user.ID, role)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "role", role)
	return user, nil
}

// FindUser looks a user up by email.
func (s *AdminService) FindUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return user, nil
}

// RevokeSessions revokes every refresh token of the user with email.
func (s *AdminService) RevokeSessions(ctx context.Context, email string) (int64, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrorNotFound
		}
		return 0, err
	}
	n, err := s.refresh.RevokeAllForUser(ctx, s.db, user.ID)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "sessions revoked", "user_id", user.ID, "count", n)
	return n, nil
}

// PurgeTokens deletes refresh tokens that expired more than retention ago
// and denylist entries whose access token has expired.
func (s *AdminService) PurgeTokens(ctx context.Context, retention time.Duration) (*PurgeResult, error) {
	refreshN, err := s.refresh.PurgeExpired(ctx, s.db, retention)
	if err != nil {
		return nil, err
	}
	accessN, err := s.repomanager.AccessTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return &PurgeResult{RefreshTokens: refreshN, AccessTokens: accessN}, nil
}
