package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// refreshSecretSize is the number of random bytes behind a refresh secret.
const refreshSecretSize = 64

// IssuedRefreshToken is a freshly minted refresh token. Secret is the only
// copy of the plaintext and must be handed to the client once.
type IssuedRefreshToken struct {
	Secret string
	Record *models.RefreshToken
}

// RefreshTokenManager creates, rotates and revokes refresh tokens. All
// methods take the DBTX to run on so callers can compose them into a wider
// transaction.
type RefreshTokenManager struct {
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	now         func() time.Time
}

func NewRefreshTokenManager(m repomanager.RepositoryManager, ttl time.Duration) *RefreshTokenManager {
	if ttl <= 0 {
		ttl = common.DefaultRefreshTokenTTL
	}
	return &RefreshTokenManager{repomanager: m, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *RefreshTokenManager) WithClock(now func() time.Time) *RefreshTokenManager {
	m.now = now
	return m
}

// HashToken returns the stored form of a refresh secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Issue creates a new active token for userID.
func (m *RefreshTokenManager) Issue(ctx context.Context, db dbx.DBTX, userID string) (*IssuedRefreshToken, error) {
	return m.issue(ctx, m.repomanager.RefreshTokens(db), userID, m.now())
}

func (m *RefreshTokenManager) issue(ctx context.Context, repo refreshtokens.Repository, userID string, now time.Time) (*IssuedRefreshToken, error) {
	secret, err := common.MakeRandURLString(refreshSecretSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	record := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(secret),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return &IssuedRefreshToken{Secret: secret, Record: record}, nil
}

// Rotate consumes the token behind secret and issues its successor for the
// same user. Run it inside a transaction: the consume is a conditional update,
// so of two concurrent callers only one sees it succeed and the other gets
// ErrRefreshTokenRevoked.
func (m *RefreshTokenManager) Rotate(ctx context.Context, db dbx.DBTX, secret string) (*IssuedRefreshToken, error) {
	if secret == "" {
		return nil, common.ErrRefreshTokenNotFound
	}

	repo := m.repomanager.RefreshTokens(db)
	hash := HashToken(secret)

	token, err := repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hash)) != 1 {
		return nil, common.ErrRefreshTokenNotFound
	}

	now := m.now()
	if token.Revoked {
		return nil, common.ErrRefreshTokenRevoked
	}
	if !token.ExpiresAt.After(now) {
		return nil, common.ErrRefreshTokenExpired
	}

	ok, err := repo.ConsumeActive(ctx, token.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrRefreshTokenRevoked
	}

	return m.issue(ctx, repo, token.UserID, now)
}

// Revoke marks the token behind secret revoked when it belongs to userID and
// reports how many tokens it revoked. Unknown or foreign secrets are ignored.
func (m *RefreshTokenManager) Revoke(ctx context.Context, db dbx.DBTX, userID, secret string) (int64, error) {
	if secret == "" {
		return 0, nil
	}
	n, err := m.repomanager.RefreshTokens(db).RevokeByHash(ctx, HashToken(secret), userID, m.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return n, nil
}

// RevokeAllForUser revokes every active token of userID.
func (m *RefreshTokenManager) RevokeAllForUser(ctx context.Context, db dbx.DBTX, userID string) (int64, error) {
	n, err := m.repomanager.RefreshTokens(db).RevokeAllForUser(ctx, userID, m.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return n, nil
}

// PurgeExpired deletes tokens that expired more than retention ago.
// Revoked tokens that have not expired yet are kept.
func (m *RefreshTokenManager) PurgeExpired(ctx context.Context, db dbx.DBTX, retention time.Duration) (int64, error) {
	n, err := m.repomanager.RefreshTokens(db).DeleteExpired(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return n, nil
}
