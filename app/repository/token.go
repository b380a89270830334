package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anotherme-social/identity-service/app/entity"
)

const (
	PasswordResetTokensTable     = "password_reset_tokens"
	EmailVerificationTokensTable = "email_verification_tokens"
)

// TokenRepository persists ephemeral tokens. The password-reset and
// email-verification tables are structurally identical, so one
// repository serves both, parameterized by table name.
type TokenRepository struct {
	db    dbtx
	table string
}

func NewTokenRepository(db *sql.DB, table string) *TokenRepository {
	return &TokenRepository{db: db, table: table}
}

func (r *TokenRepository) WithTx(tx *sql.Tx) *TokenRepository {
	return &TokenRepository{db: tx, table: r.table}
}

func (r *TokenRepository) Create(ctx context.Context, token *entity.EphemeralToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, token, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// FindBySecretForUpdate locks the matching row for the duration of the
// surrounding transaction so concurrent redemptions of the same secret
// serialize.
func (r *TokenRepository) FindBySecretForUpdate(ctx context.Context, secret string) (*entity.EphemeralToken, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token, expires_at, used, created_at
		FROM %s WHERE token = ? FOR UPDATE
	`, r.table)
	token := &entity.EphemeralToken{}
	err := r.db.QueryRowContext(ctx, query, secret).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.Used,
		&token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// MarkUsed consumes a token. Rows are kept after consumption; used is
// the only field that changes.
func (r *TokenRepository) MarkUsed(ctx context.Context, id uint64) error {
	query := fmt.Sprintf(`UPDATE %s SET used = TRUE WHERE id = ?`, r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
