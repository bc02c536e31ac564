package auth

import (
	"context"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

// LockoutStore is the durable backing for per-user failure counters.
type LockoutStore interface {
	RecordFailure(ctx context.Context, id uint64, threshold int, lockFor time.Duration) (int, *time.Time, error)
	ResetLockout(ctx context.Context, id uint64) error
}

// Lockout tracks consecutive credential failures per user. The counter
// survives lock expiry and resets only on a successful authentication, so an
// attacker cannot drip-feed guesses between expiring locks.
type Lockout struct {
	store     LockoutStore
	threshold int
	duration  time.Duration
	now       func() time.Time
}

func NewLockout(store LockoutStore, threshold int, duration time.Duration) *Lockout {
	return &Lockout{store: store, threshold: threshold, duration: duration, now: time.Now}
}

// Check rejects while the user's lock-until is in the future, independent of
// whether the presented credential would otherwise match. The remaining
// duration is reported so the legitimate user can see the lockout; the
// error is never the generic invalid-credentials response.
func (l *Lockout) Check(u *model.User) error {
	if locked, remaining := u.Locked(l.now().UTC()); locked {
		return &LockedError{Remaining: remaining}
	}
	return nil
}

// OnFailure records one failed attempt. The threshold comparison happens in
// the store so parallel failures cannot both slip under it. Returns whether
// this failure triggered the lock.
func (l *Lockout) OnFailure(ctx context.Context, userID uint64) (bool, error) {
	attempts, lockedUntil, err := l.store.RecordFailure(ctx, userID, l.threshold, l.duration)
	if err != nil {
		return false, err
	}
	return attempts >= l.threshold && lockedUntil != nil, nil
}

// OnSuccess zeroes the counter and clears the lock.
func (l *Lockout) OnSuccess(ctx context.Context, userID uint64) error {
	return l.store.ResetLockout(ctx, userID)
}
