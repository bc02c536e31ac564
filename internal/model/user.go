package model

import "time"

// DeletedDisplayName is the sentinel display name left on soft-deleted
// accounts so authored content keeps a valid owner reference.
const DeletedDisplayName = "deleted user"

// User mirrors the 'users' table. Nullable columns are pointers; nil means
// SQL NULL. Email and PasswordHash are both nullable: email is nulled on
// soft delete and the hash is absent for OAuth-only accounts.
type User struct {
	ID             uint64
	Email          *string
	EmailVerified  bool
	PasswordHash   *string
	Provider       *string
	ProviderID     *string
	DisplayName    string
	AvatarURL      *string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the account is currently locked out and, if so,
// how long the lock has left.
func (u *User) Locked(now time.Time) (bool, time.Duration) {
	if u.LockedUntil == nil || !u.LockedUntil.After(now) {
		return false, 0
	}
	return true, u.LockedUntil.Sub(now)
}
