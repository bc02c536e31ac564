package auth

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweepStore is the subset of storage the sweeper needs.
type SweepStore interface {
	DeleteExpired(ctx context.Context, grace, retention time.Duration) (int64, int64, error)
}

// TokenSweepStore prunes expired auth tokens.
type TokenSweepStore interface {
	DeleteExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// Sweeper garbage-collects expired sessions and tokens. It is invoked
// opportunistically after routine operations rather than on a timer; the
// TryLock plus minimum-interval gate means concurrent callers skip instead
// of stacking, and skipping is always safe: nothing depends on a sweep for
// correctness.
type Sweeper struct {
	sessions  SweepStore
	tokens    TokenSweepStore
	grace     time.Duration
	retention time.Duration
	minEvery  time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewSweeper(sessions SweepStore, tokens TokenSweepStore, grace, retention, minEvery time.Duration) *Sweeper {
	return &Sweeper{sessions: sessions, tokens: tokens, grace: grace, retention: retention, minEvery: minEvery}
}

// MaybeSweep runs one collection pass unless another is in flight or one ran
// within the minimum interval. Returns whether a pass ran.
func (s *Sweeper) MaybeSweep(ctx context.Context) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if time.Since(s.last) < s.minEvery {
		return false
	}
	s.last = time.Now()

	expired, revoked, err := s.sessions.DeleteExpired(ctx, s.grace, s.retention)
	if err != nil {
		log.Printf("sweeper: session cleanup failed: %v", err)
		return true
	}
	var tokens int64
	if s.tokens != nil {
		tokens, err = s.tokens.DeleteExpired(ctx, s.grace)
		if err != nil {
			log.Printf("sweeper: token cleanup failed: %v", err)
		}
	}
	if expired+revoked+tokens > 0 {
		log.Printf("sweeper: removed %d expired sessions, %d revoked sessions, %d tokens", expired, revoked, tokens)
	}
	return true
}
