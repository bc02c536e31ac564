package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

// TokenRepo persists single-use auth tokens (password reset and email
// verification) in one table, discriminated by token_type. Only SHA-256
// hashes are stored.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Create inserts a token row.
func (r *TokenRepo) Create(ctx context.Context, t *model.AuthToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO auth_tokens (id, user_id, token_type, token_hash, expires_at) VALUES (?,?,?,?,?)",
		t.ID, t.UserID, t.TokenType, t.TokenHash, t.ExpiresAt)
	return err
}

// GetByHash fetches a token of the given type by credential hash. Used and
// expired rows are returned as-is; classification is the service's job.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenType, tokenHash string) (model.AuthToken, error) {
	var t model.AuthToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token_type,token_hash,used_at,expires_at,created_at FROM auth_tokens WHERE token_type=? AND token_hash=? LIMIT 1",
		tokenType, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenType, &t.TokenHash,
		&t.UsedAt, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// MarkUsed sets used_at exactly once. A second call is a no-op; the guard
// keeps the false->true transition one-way even under concurrent callers.
func (r *TokenRepo) MarkUsed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE auth_tokens SET used_at=UTC_TIMESTAMP() WHERE id=? AND used_at IS NULL", id)
	return err
}

// InvalidateForUser consumes every outstanding token of the given type for a
// user, so only the most recently issued one stays usable after a re-request.
func (r *TokenRepo) InvalidateForUser(ctx context.Context, userID uint64, tokenType string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE auth_tokens SET used_at=UTC_TIMESTAMP() WHERE user_id=? AND token_type=? AND used_at IS NULL",
		userID, tokenType)
	return err
}

// DeleteExpired removes rows past expiration plus grace.
func (r *TokenRepo) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE expires_at < DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)",
		int(grace.Seconds()))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
