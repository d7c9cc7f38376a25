// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorForbidden          = errors.New("forbidden")
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorValidation         = errors.New("validation error")
	ErrorThrottled          = errors.New("throttled")

	// Auth errors (invalid or malformed access token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Refresh token lifecycle errors. They are kept distinct for logging and
	// metrics; the transport reports all of them as ErrorUnauthorized.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")

	// Flow specific errors.
	ErrInvalidResetToken    = errors.New("invalid password reset token")
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrUnknownProvider      = errors.New("unknown provider")
)
