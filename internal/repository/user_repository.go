package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,email_verified,password_hash,provider,provider_id,display_name,avatar_url,failed_attempts,locked_until,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.PasswordHash, &u.Provider,
		&u.ProviderID, &u.DisplayName, &u.AvatarURL, &u.FailedAttempts, &u.LockedUntil,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Create inserts a password-based user and returns its ID. The hash is
// produced by the caller; this layer never sees plaintext passwords.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, displayName string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, display_name) VALUES (?,?,?)",
		email, passwordHash, displayName)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateOAuth inserts a user for a third-party identity. No password hash is
// stored; the provider attestation stands in for email verification.
func (r *UserRepo) CreateOAuth(ctx context.Context, email, provider, providerID, displayName string, avatarURL *string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, email_verified, provider, provider_id, display_name, avatar_url) VALUES (?,1,?,?,?,?)",
		email, provider, providerID, displayName, avatarURL)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByProvider fetches a user by OAuth provider identity.
func (r *UserRepo) GetByProvider(ctx context.Context, provider, providerID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE provider=? AND provider_id=? LIMIT 1",
		provider, providerID))
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
	return err
}

// SetEmailVerified marks the account's email as verified.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1 WHERE id=?", id)
	return err
}

// RecordFailure increments the consecutive-failure counter and, when the
// counter crosses threshold, sets locked_until in the same statement so the
// threshold comparison is atomic in the store. It returns the post-increment
// counter and lock.
func (r *UserRepo) RecordFailure(ctx context.Context, id uint64, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		    SET failed_attempts = failed_attempts + 1,
		        locked_until = IF(failed_attempts + 1 >= ?, DATE_ADD(UTC_TIMESTAMP(), INTERVAL ? SECOND), locked_until)
		  WHERE id = ?`,
		threshold, int(lockFor.Seconds()), id)
	if err != nil {
		return 0, nil, err
	}
	var (
		attempts    int
		lockedUntil sql.NullTime
	)
	err = r.DB.QueryRowContext(ctx,
		"SELECT failed_attempts, locked_until FROM users WHERE id=?", id).
		Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		return attempts, &t, nil
	}
	return attempts, nil, nil
}

// ResetLockout zeroes the failure counter and clears any lock. Called on
// every successful authentication.
func (r *UserRepo) ResetLockout(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=0, locked_until=NULL WHERE id=?", id)
	return err
}

// SoftDelete nulls personal fields and leaves a sentinel display name.
// Rows are never hard-deleted so authored content keeps a valid owner.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		    SET email=NULL, password_hash=NULL, provider=NULL, provider_id=NULL,
		        avatar_url=NULL, display_name=?, email_verified=0
		  WHERE id=?`,
		model.DeletedDisplayName, id)
	return err
}
