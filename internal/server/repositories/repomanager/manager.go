package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/roles"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path serves both plain connections and transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Roles(db dbx.DBTX) roles.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
}
