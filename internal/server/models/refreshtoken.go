package models

import "time"

// RefreshToken is the persisted half of a refresh token. Only the SHA-256
// hash of the secret is stored.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValid reports whether the token may still be exchanged at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
