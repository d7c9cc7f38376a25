package common

import "time"

// RefreshTokenCookieName is the HTTP-only cookie carrying the refresh token.
const RefreshTokenCookieName = "refresh_token"

// OAuthStateCookieName holds the social login state between redirect and callback.
const OAuthStateCookieName = "oauth_state"

// DefaultRefreshTokenTTL is the lifetime of a refresh token.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// Role labels.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Permission labels.
const (
	PermissionCreateTask = "create task"
	PermissionEditTask   = "edit task"
	PermissionDeleteTask = "delete task"
	PermissionViewTask   = "view task"
)
