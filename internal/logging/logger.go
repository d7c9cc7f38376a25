// Package logging is the structured logger shared by the server, its
// services and the operator CLI.
package logging

import "context"

// Logger logs with key/value pairs and the request context:
//
//	log.Info(ctx, "user logged in", "user_id", id)
//
// Secrets (refresh tokens, reset tokens, password hashes) must never be
// passed as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger carrying args on every record.
	With(args ...any) Logger
}
