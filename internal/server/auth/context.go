package auth

import (
	"context"
	"slices"
	"time"
)

// AuthContext is the identity resolved for the current request. It is built
// by the HTTP auth middleware from a verified access token and the role
// store, and lives only as long as the request.
type AuthContext struct {
	UserID      string
	JTI         string    // id of the presented access token
	ExpiresAt   time.Time // expiry of the presented access token
	Roles       []string
	Permissions []string
}

// HasRole reports whether the user holds role.
func (a *AuthContext) HasRole(role string) bool {
	return a != nil && slices.Contains(a.Roles, role)
}

// HasPermission reports whether any of the user's roles grants permission.
func (a *AuthContext) HasPermission(permission string) bool {
	return a != nil && slices.Contains(a.Permissions, permission)
}

type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
