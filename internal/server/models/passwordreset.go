package models

import "time"

// PasswordReset is a pending reset request; at most one per email.
type PasswordReset struct {
	Email     string
	TokenHash string
	CreatedAt time.Time
}
