package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Put(ctx context.Context, reset *models.PasswordReset) error {
	query :=
		`INSERT INTO password_reset_tokens (email, token_hash, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at
		 `
	if _, err := r.db.ExecContext(ctx, query, strings.ToLower(reset.Email), reset.TokenHash, reset.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, email string) (*models.PasswordReset, error) {
	query := `SELECT email, token_hash, created_at FROM password_reset_tokens WHERE email = $1`

	reset := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&reset.Email, &reset.TokenHash, &reset.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reset, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, email, tokenHash string) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE email = $1 AND token_hash = $2`
	res, err := r.db.ExecContext(ctx, query, strings.ToLower(email), tokenHash)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
