package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

// SessionRepo persists rotation-family session rows. Refresh credentials are
// stored as SHA-256 hashes; the raw value only ever lives in the cookie.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id,user_id,family_id,token_hash,status,revoke_reason,rotation,remember,ip,user_agent,expires_at,created_at,rotated_at"

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, family_id, token_hash, status, rotation, remember, ip, user_agent, expires_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.UserID, s.FamilyID, s.TokenHash, s.Status, s.Rotation, s.Remember,
		s.IP, s.UserAgent, s.ExpiresAt)
	return err
}

// GetByTokenHash fetches a session row by credential hash, whatever its
// status. The rotation engine needs to see rotated and revoked rows to
// classify reuse, so no filtering happens here.
func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.UserID, &s.FamilyID, &s.TokenHash, &s.Status,
		&s.RevokeReason, &s.Rotation, &s.Remember, &s.IP, &s.UserAgent,
		&s.ExpiresAt, &s.CreatedAt, &s.RotatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// MarkRotated performs the active->rotated transition as a check-and-set:
// the update only matches while the row is still active, so of two
// concurrent refreshes exactly one observes true. The loser sees the row as
// already rotated and takes the reuse path.
func (r *SessionRepo) MarkRotated(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET status=?, rotated_at=UTC_TIMESTAMP() WHERE id=? AND status=?",
		model.SessionRotated, id, model.SessionActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeFamily marks every non-revoked session in the family revoked.
// Idempotent: already-revoked rows keep their original reason.
func (r *SessionRepo) RevokeFamily(ctx context.Context, familyID, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET status=?, revoke_reason=? WHERE family_id=? AND status<>?",
		model.SessionRevoked, reason, familyID, model.SessionRevoked)
	return err
}

// RevokeAllForUser revokes every live session the user owns, across all
// families. Used on password reset and account deletion.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uint64, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET status=?, revoke_reason=? WHERE user_id=? AND status<>?",
		model.SessionRevoked, reason, userID, model.SessionRevoked)
	return err
}

// FamilyStartedAt returns the creation time of the family's origin session.
func (r *SessionRepo) FamilyStartedAt(ctx context.Context, familyID string) (time.Time, error) {
	var t sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		"SELECT MIN(created_at) FROM sessions WHERE family_id=?", familyID).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, ErrNotFound
	}
	return t.Time, nil
}

// DeleteExpired removes rows past expiration plus grace, and revoked rows
// past the retention window. Returns the deleted counts.
func (r *SessionRepo) DeleteExpired(ctx context.Context, grace, retention time.Duration) (expired int64, revoked int64, err error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)",
		int(grace.Seconds()))
	if err != nil {
		return 0, 0, err
	}
	expired, _ = res.RowsAffected()

	res, err = r.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE status=? AND updated_at < DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)",
		model.SessionRevoked, int(retention.Seconds()))
	if err != nil {
		return expired, 0, err
	}
	revoked, _ = res.RowsAffected()
	return expired, revoked, nil
}
