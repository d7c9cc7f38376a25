// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
// Tokens are addressed by the SHA-256 hash of their secret; plaintext secrets
// never reach this layer.
type Repository interface {
	// Create stores token as given; the caller sets ID, hash and timestamps.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the row with the given token hash regardless of its
	// state, or common.ErrorNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// ConsumeActive revokes the token only if it is still active at now and
	// stamps last_used_at. It reports false when another caller got there
	// first or the token expired meanwhile.
	ConsumeActive(ctx context.Context, id string, now time.Time) (bool, error)

	// RevokeByHash revokes the token with tokenHash if it belongs to userID and
	// returns the number of rows revoked. Unknown, foreign or already revoked
	// hashes yield 0 and no error.
	RevokeByHash(ctx context.Context, tokenHash, userID string, now time.Time) (int64, error)

	// RevokeAllForUser revokes every non-revoked token of userID and returns
	// how many rows changed.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteExpired removes tokens that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
