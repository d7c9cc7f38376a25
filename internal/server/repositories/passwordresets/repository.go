// Package passwordresets stores pending password reset tokens, one per email.
package passwordresets

import (
	"context"

	"github.com/dmitrijs2005/spa-auth/internal/server/models"
)

type Repository interface {
	// Put creates or replaces the reset token for reset.Email.
	Put(ctx context.Context, reset *models.PasswordReset) error
	// Get returns common.ErrorNotFound when no reset is pending for email.
	Get(ctx context.Context, email string) (*models.PasswordReset, error)
	// Delete removes the reset for email only while it still holds tokenHash
	// and returns the number of rows removed. A concurrent reset or a newer
	// token leaves it at 0.
	Delete(ctx context.Context, email, tokenHash string) (int64, error)
}
