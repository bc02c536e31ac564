// Package ratelimit bounds the attempt frequency of sensitive actions with
// fixed-window counters kept in shared storage. The increment-and-compare
// runs as one store operation so two parallel requests can never both slip
// under the ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Actions with independent budgets. Keys are action plus a compound
// identity: login and the email flows key by email and address, while
// registration keys by address alone.
const (
	ActionLogin        = "login"
	ActionRegister     = "register"
	ActionResetRequest = "reset_request"
	ActionVerifyResend = "verify_resend"
)

// Rule is the ceiling and window for one action.
type Rule struct {
	Limit  int
	Window time.Duration
}

// RateLimitedError rejects a request that is over budget. RetryAfter is at
// most the action's configured window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// Store holds window counters. Hit atomically counts an attempt unless the
// window is already at its ceiling; an over-budget attempt is rejected
// without being counted further.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
	Reset(ctx context.Context, keys ...string) error
}

// Limiter applies per-action rules over a primary store, falling back to a
// per-process store when the primary is unreachable. Degrading to a local
// window keeps some bound in place instead of turning limiting off.
type Limiter struct {
	store    Store
	fallback Store
	rules    map[string]Rule
	prefix   string
}

func New(store Store, rules map[string]Rule, prefix string) *Limiter {
	return &Limiter{store: store, fallback: NewMemoryStore(), rules: rules, prefix: prefix}
}

func (l *Limiter) key(action string, identity []string) string {
	parts := append([]string{l.prefix, action}, identity...)
	return strings.Join(parts, ":")
}

// Allow counts one attempt for (action, identity). Returns nil when under
// budget, a *RateLimitedError when over, and only fails hard on fallback
// store errors.
func (l *Limiter) Allow(ctx context.Context, action string, identity ...string) error {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return nil
	}
	key := l.key(action, identity)
	store := l.store
	if store == nil {
		store = l.fallback
	}
	allowed, retryAfter, err := store.Hit(ctx, key, rule.Limit, rule.Window)
	if err != nil && store != l.fallback {
		log.Printf("ratelimit: primary store failed for %s, using local window: %v", action, err)
		allowed, retryAfter, err = l.fallback.Hit(ctx, key, rule.Limit, rule.Window)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return &RateLimitedError{RetryAfter: retryAfter}
	}
	return nil
}

// Reset clears the counters for (action, identity). A successful login
// calls this so legitimate failures followed by success do not leave the
// user throttled.
func (l *Limiter) Reset(ctx context.Context, action string, identity ...string) error {
	key := l.key(action, identity)
	var firstErr error
	if l.store != nil {
		firstErr = l.store.Reset(ctx, key)
	}
	if err := l.fallback.Reset(ctx, key); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
