package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
)

// TokenStore is the durable backing for single-use auth tokens.
type TokenStore interface {
	Create(ctx context.Context, t *model.AuthToken) error
	GetByHash(ctx context.Context, tokenType, tokenHash string) (model.AuthToken, error)
	MarkUsed(ctx context.Context, id string) error
	InvalidateForUser(ctx context.Context, userID uint64, tokenType string) error
}

// TokenService issues and consumes password-reset and email-verification
// tokens. Validate and MarkUsed are split on purpose: a caller validates,
// performs the downstream change, and only marks the token used once that
// change succeeded, so a failed downstream step does not burn the token.
type TokenService struct {
	store     TokenStore
	resetTTL  time.Duration
	verifyTTL time.Duration
	now       func() time.Time
}

func NewTokenService(store TokenStore, resetTTL, verifyTTL time.Duration) *TokenService {
	return &TokenService{store: store, resetTTL: resetTTL, verifyTTL: verifyTTL, now: time.Now}
}

func (s *TokenService) create(ctx context.Context, userID uint64, tokenType string, ttl time.Duration) (string, error) {
	// Re-requesting consumes any outstanding token of the same type, so only
	// the latest emailed link works.
	if err := s.store.InvalidateForUser(ctx, userID, tokenType); err != nil {
		return "", fmt.Errorf("invalidate outstanding tokens: %w", err)
	}
	raw, err := randomHex(32)
	if err != nil {
		return "", err
	}
	t := &model.AuthToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenType: tokenType,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("create %s token: %w", tokenType, err)
	}
	return raw, nil
}

func (s *TokenService) validate(ctx context.Context, tokenType, raw string) (model.AuthToken, error) {
	t, err := s.store.GetByHash(ctx, tokenType, HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthToken{}, ErrTokenExpiredOrUsed
		}
		return model.AuthToken{}, fmt.Errorf("lookup %s token: %w", tokenType, err)
	}
	if t.UsedAt != nil || !t.ExpiresAt.After(s.now().UTC()) {
		return model.AuthToken{}, ErrTokenExpiredOrUsed
	}
	return t, nil
}

// CreateReset issues a password-reset token and returns the raw value for
// the email link.
func (s *TokenService) CreateReset(ctx context.Context, userID uint64) (string, error) {
	return s.create(ctx, userID, model.TokenPasswordReset, s.resetTTL)
}

// ValidateReset checks the token without consuming it.
func (s *TokenService) ValidateReset(ctx context.Context, raw string) (model.AuthToken, error) {
	return s.validate(ctx, model.TokenPasswordReset, raw)
}

// CreateVerification issues an email-verification token.
func (s *TokenService) CreateVerification(ctx context.Context, userID uint64) (string, error) {
	return s.create(ctx, userID, model.TokenEmailVerification, s.verifyTTL)
}

// ValidateVerification checks the token without consuming it.
func (s *TokenService) ValidateVerification(ctx context.Context, raw string) (model.AuthToken, error) {
	return s.validate(ctx, model.TokenEmailVerification, raw)
}

// MarkUsed consumes a token. Idempotent, but any later validate of the same
// token fails.
func (s *TokenService) MarkUsed(ctx context.Context, id string) error {
	return s.store.MarkUsed(ctx, id)
}
