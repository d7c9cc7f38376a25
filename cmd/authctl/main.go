package main

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/dmitrijs2005/spa-auth/internal/authctl"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
	"github.com/fatih/color"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, "warn")

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(ctx, cfg, db, logger); err != nil {
		if !errors.Is(err, authctl.ErrUsage) {
			color.Red("Error: %v\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, db *sql.DB, logger logging.Logger) error {
	rm := repomanager.NewPostgresRepositoryManager()
	refresh := services.NewRefreshTokenManager(rm, cfg.RefreshTokenValidityDuration)

	admin := services.NewAdminService(db, dbx.NewSQLTransactor(db, nil), rm, auth.NewBcryptHasher(), refresh, logger)
	avatars := services.NewAvatarService(db, rm, cfg, logger)

	app := authctl.NewApp(admin, avatars, func(ctx context.Context) error {
		return rm.RunMigrations(ctx, db)
	}, os.Stdout)

	return app.Run(ctx, commandArgs(os.Args[1:]))
}

// commandArgs drops the server config flags that precede the command name.
func commandArgs(args []string) []string {
	for i, a := range args {
		if a != "" && a[0] != '-' {
			if i > 0 && takesValue(args[i-1]) {
				continue
			}
			return args[i:]
		}
	}
	return nil
}

func takesValue(flag string) bool {
	switch flag {
	case "-a", "-d", "-s", "-t", "-r", "-f", "-l", "-u", "-p", "-b", "-g", "-e", "-m", "-c", "-config":
		return true
	}
	return false
}
