// Package accesstokens keeps the denylist of access tokens revoked at logout.
// Entries only need to outlive the token they block.
package accesstokens

import (
	"context"
	"time"
)

type Repository interface {
	// Revoke denylists jti until expiresAt. Revoking twice is a no-op.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
