// Package authctl implements the operator commands of the auth server:
// migrations, user provisioning and session maintenance.
package authctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/flagx"
	"github.com/dmitrijs2005/spa-auth/internal/netx"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage error")

type Admin interface {
	CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error)
	FindUser(ctx context.Context, email string) (*models.User, error)
	RevokeSessions(ctx context.Context, email string) (int64, error)
	PurgeTokens(ctx context.Context, retention time.Duration) (*services.PurgeResult, error)
}

type Avatars interface {
	PresignUpload(ctx context.Context, userID string) (*services.AvatarUpload, error)
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// upload is a test seam for netx.PutPresigned.
var upload = netx.PutPresigned

type App struct {
	admin   Admin
	avatars Avatars
	migrate func(ctx context.Context) error
	out     io.Writer
}

func NewApp(admin Admin, avatars Avatars, migrate func(ctx context.Context) error, out io.Writer) *App {
	return &App{admin: admin, avatars: avatars, migrate: migrate, out: out}
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.PrintUsage()
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "migrate":
		return a.cmdMigrate(ctx)
	case "create-user":
		return a.cmdCreateUser(ctx, rest)
	case "revoke-sessions":
		return a.cmdRevokeSessions(ctx, rest)
	case "purge-tokens":
		return a.cmdPurgeTokens(ctx, rest)
	case "set-avatar":
		return a.cmdSetAvatar(ctx, rest)
	case "help", "-h", "--help":
		a.PrintUsage()
		return nil
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n", cmd)
		a.PrintUsage()
		return ErrUsage
	}
}

func (a *App) PrintUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(a.out, "Usage: authctl <command> [flags]")
	fmt.Fprintln(a.out)
	yellow.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  migrate                                   Apply database migrations")
	fmt.Fprintln(a.out, "  create-user -email E -name N [-role R]    Create a verified user (password prompted)")
	fmt.Fprintln(a.out, "  revoke-sessions -email E                  Revoke every refresh token of a user")
	fmt.Fprintln(a.out, "  purge-tokens [-older-than 720h]           Delete long expired tokens")
	fmt.Fprintln(a.out, "  set-avatar -email E -file F               Upload an avatar image for a user")
	fmt.Fprintln(a.out)
	yellow.Fprintln(a.out, "Server settings (-d DSN, -c config file, SPA_AUTH_* env) are honored.")
}

// flags builds a flag set that only sees its own flags, so server config
// flags on the same command line are ignored here.
func (a *App) flags(name string, args []string, names ...string) (*flag.FlagSet, []string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)

	allowed := make([]string, 0, len(names)*2)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}
	return fs, flagx.FilterArgs(args, allowed)
}

func (a *App) ok(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(a.out, format+"\n", args...)
}

func (a *App) cmdMigrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.ok("Migrations applied")
	return nil
}

func (a *App) cmdCreateUser(ctx context.Context, args []string) error {
	fs, args := a.flags("create-user", args, "email", "name", "role")
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", common.RoleUser, "role label")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" || *name == "" {
		fmt.Fprintln(a.out, "create-user requires -email and -name")
		return ErrUsage
	}

	password, err := a.promptPassword()
	if err != nil {
		return err
	}

	user, err := a.admin.CreateUser(ctx, *name, *email, password, *role)
	if err != nil {
		var ve common.ValidationErrors
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid input: %s", ve.Error())
		}
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("unknown role %q", *role)
		}
		return err
	}

	a.ok("Created user %s (%s) with role %s", user.Email, user.ID, *role)
	return nil
}

func (a *App) promptPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(a.out, "Confirm password: ")
	confirm, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(pw) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(pw), nil
}

func (a *App) cmdRevokeSessions(ctx context.Context, args []string) error {
	fs, args := a.flags("revoke-sessions", args, "email")
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" {
		fmt.Fprintln(a.out, "revoke-sessions requires -email")
		return ErrUsage
	}

	n, err := a.admin.RevokeSessions(ctx, *email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no user with email %s", *email)
		}
		return err
	}

	a.ok("Revoked %d session(s) of %s", n, *email)
	return nil
}

func (a *App) cmdPurgeTokens(ctx context.Context, args []string) error {
	fs, args := a.flags("purge-tokens", args, "older-than")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "retention after expiry")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	res, err := a.admin.PurgeTokens(ctx, *olderThan)
	if err != nil {
		return err
	}

	a.ok("Purged %d refresh token(s) and %d denylist entr(ies)", res.RefreshTokens, res.AccessTokens)
	return nil
}

func (a *App) cmdSetAvatar(ctx context.Context, args []string) error {
	fs, args := a.flags("set-avatar", args, "email", "file")
	email := fs.String("email", "", "user email")
	file := fs.String("file", "", "image file")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" || *file == "" {
		fmt.Fprintln(a.out, "set-avatar requires -email and -file")
		return ErrUsage
	}

	data, err := os.ReadFile(filepath.Clean(*file))
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%s is not an image (%s)", *file, contentType)
	}

	user, err := a.admin.FindUser(ctx, *email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no user with email %s", *email)
		}
		return err
	}

	up, err := a.avatars.PresignUpload(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := upload(ctx, up.URL, contentType, data); err != nil {
		return err
	}

	a.ok("Uploaded avatar of %s to %s", user.Email, up.Key)
	return nil
}
