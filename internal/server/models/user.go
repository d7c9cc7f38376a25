// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. PasswordHash is never serialized.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	EmailVerifiedAt *time.Time

	// Set for accounts created or linked through social login.
	Provider   string
	ProviderID string
	// Avatar is a provider supplied URL, AvatarKey an object-storage key.
	Avatar    string
	AvatarKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}
