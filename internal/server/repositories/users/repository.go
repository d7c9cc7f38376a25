// Package users declares the server-side repository contract for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/server/models"
)

// Repository defines persistence operations for users.
type Repository interface {
	// Create inserts user, assigning ID and timestamps. A taken email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID and GetByEmail return common.ErrorNotFound when no row matches.
	// Email comparison is case-insensitive.
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// MarkEmailVerified sets email_verified_at if it is still NULL and
	// reports whether the row changed.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error)

	// LinkProvider records the social login identity of an existing user.
	LinkProvider(ctx context.Context, id, provider, providerID, avatar string) error

	SetAvatarKey(ctx context.Context, id string, key string) error
}
