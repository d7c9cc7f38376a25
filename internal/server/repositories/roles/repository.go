// Package roles stores role assignments and resolves the permissions they grant.
package roles

import "context"

type Repository interface {
	// Assign gives userID the named role. Assigning a role twice is a no-op;
	// an unknown role yields common.ErrorNotFound.
	Assign(ctx context.Context, userID, role string) error
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	PermissionsForUser(ctx context.Context, userID string) ([]string, error)
}
