package model

import "time"

// Session states. Every row moves through at most one transition:
// active -> rotated (consumed by exactly one refresh) or active/rotated ->
// revoked. Rotated and revoked rows never come back.
const (
	SessionActive  = "active"
	SessionRotated = "rotated"
	SessionRevoked = "revoked"
)

// Revocation reasons recorded on the session row.
const (
	RevokeReasonSignOut       = "sign_out"
	RevokeReasonReuse         = "token_reuse"
	RevokeReasonRotationLimit = "rotation_limit"
	RevokeReasonFamilyAge     = "family_age"
	RevokeReasonPasswordReset = "password_reset"
	RevokeReasonAccountDelete = "account_delete"
)

// Session is one row per issued refresh credential. All rows sharing a
// FamilyID descend from a single login; rotation appends a child row with
// Rotation+1 and marks the parent rotated. Only the token's SHA-256 hash is
// stored.
type Session struct {
	ID           string
	UserID       uint64
	FamilyID     string
	TokenHash    string
	Status       string
	RevokeReason *string
	Rotation     int
	Remember     bool
	IP           string
	UserAgent    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RotatedAt    *time.Time
}

// Expired reports whether the session is past its expiration.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
