package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCredentials covers both unknown email and wrong password; the
// two cases are indistinguishable to the caller on purpose.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionInvalid forces re-login: the presented session is expired,
// revoked, or unknown.
var ErrSessionInvalid = errors.New("session invalid")

// ErrSessionReuse is the breach classification: an already-rotated
// credential was presented again. It wraps ErrSessionInvalid so handlers
// surface it as a plain invalid session while logging it distinctly.
var ErrSessionReuse = fmt.Errorf("refresh credential reuse detected: %w", ErrSessionInvalid)

// ErrTokenExpiredOrUsed is returned for password-reset and
// email-verification tokens that are unknown, expired, or already consumed.
var ErrTokenExpiredOrUsed = errors.New("token expired or already used")

// LockedError rejects an authentication attempt while the account lock is
// in force. The remaining duration is reported to the caller so the
// legitimate user can see the lockout; the password is never evaluated.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for another %s", e.Remaining.Round(time.Second))
}
