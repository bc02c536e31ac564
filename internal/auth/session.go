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

// SessionStore is the durable backing for rotation families.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	MarkRotated(ctx context.Context, id string) (bool, error)
	RevokeFamily(ctx context.Context, familyID, reason string) error
	RevokeAllForUser(ctx context.Context, userID uint64, reason string) error
	FamilyStartedAt(ctx context.Context, familyID string) (time.Time, error)
}

// EngineConfig bounds session lifetimes and how far a single login can be
// extended through rotation.
type EngineConfig struct {
	SessionTTL   time.Duration // non-remembered sessions
	RememberTTL  time.Duration // remembered sessions
	RotationMax  int           // rotations after which the family is force-revoked
	FamilyMaxAge time.Duration // absolute family age ceiling
}

// Engine is the session rotation state machine. Every refresh credential is
// single-use: rotating exchanges it for a child in the same family, and
// presenting an already-rotated credential is treated as compromise, killing
// the whole family. A client retry after a lost response trips the same
// path; that false positive is accepted over leaving a replay window open.
type Engine struct {
	store SessionStore
	audit *Recorder
	cfg   EngineConfig
	now   func() time.Time
}

func NewEngine(store SessionStore, audit *Recorder, cfg EngineConfig) *Engine {
	return &Engine{store: store, audit: audit, cfg: cfg, now: time.Now}
}

func (e *Engine) ttl(remember bool) time.Duration {
	if remember {
		return e.cfg.RememberTTL
	}
	return e.cfg.SessionTTL
}

func (e *Engine) newSession(userID uint64, familyID string, rotation int, remember bool, net NetContext) (*model.Session, string, error) {
	raw, err := randomHex(48)
	if err != nil {
		return nil, "", err
	}
	s := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		FamilyID:  familyID,
		TokenHash: HashToken(raw),
		Status:    model.SessionActive,
		Rotation:  rotation,
		Remember:  remember,
		IP:        net.IP,
		UserAgent: net.UserAgent,
		ExpiresAt: e.now().UTC().Add(e.ttl(remember)),
	}
	return s, raw, nil
}

// Issue starts a new rotation family for a fresh login and returns the
// session row plus the raw credential for the cookie.
func (e *Engine) Issue(ctx context.Context, userID uint64, remember bool, net NetContext) (*model.Session, string, error) {
	s, raw, err := e.newSession(userID, uuid.NewString(), 0, remember, net)
	if err != nil {
		return nil, "", err
	}
	if err := e.store.Create(ctx, s); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}
	return s, raw, nil
}

// Rotate validates the presented credential and exchanges it for a child
// session in the same family.
//
// Unknown, revoked, and expired credentials fail with ErrSessionInvalid.
// A credential that was already rotated is the breach condition: the entire
// family is revoked, a high-severity audit event is written, and the caller
// gets ErrSessionReuse (which still satisfies errors.Is(_, ErrSessionInvalid)
// so nothing extra leaks externally). The active->rotated transition is a
// store-side check-and-set, so of two concurrent refreshes of the same
// credential exactly one wins; the loser lands on the reuse path.
func (e *Engine) Rotate(ctx context.Context, rawToken string, net NetContext) (*model.Session, string, error) {
	s, err := e.store.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrSessionInvalid
		}
		return nil, "", fmt.Errorf("lookup session: %w", err)
	}

	switch {
	case s.Status == model.SessionRevoked:
		return nil, "", ErrSessionInvalid
	case s.Expired(e.now().UTC()):
		return nil, "", ErrSessionInvalid
	case s.Status == model.SessionRotated:
		return nil, "", e.reuseDetected(ctx, &s, net)
	}

	if err := e.checkCeilings(ctx, &s, net); err != nil {
		return nil, "", err
	}

	won, err := e.store.MarkRotated(ctx, s.ID)
	if err != nil {
		return nil, "", fmt.Errorf("rotate session: %w", err)
	}
	if !won {
		// Lost the check-and-set: someone else consumed this credential
		// between lookup and update. Same treatment as a replay.
		return nil, "", e.reuseDetected(ctx, &s, net)
	}

	child, raw, err := e.newSession(s.UserID, s.FamilyID, s.Rotation+1, s.Remember, net)
	if err != nil {
		return nil, "", err
	}
	if err := e.store.Create(ctx, child); err != nil {
		return nil, "", fmt.Errorf("create rotated session: %w", err)
	}

	e.audit.Record(ctx, Event(model.AuditSessionRotated, &s.UserID, net, true, map[string]any{
		"family_id": s.FamilyID,
		"rotation":  child.Rotation,
	}))
	return child, raw, nil
}

// checkCeilings enforces the rotation-count and family-age bounds. Hitting
// either revokes the family even without detected reuse, so a single login
// cannot be extended indefinitely.
func (e *Engine) checkCeilings(ctx context.Context, s *model.Session, net NetContext) error {
	if e.cfg.RotationMax > 0 && s.Rotation >= e.cfg.RotationMax {
		if err := e.store.RevokeFamily(ctx, s.FamilyID, model.RevokeReasonRotationLimit); err != nil {
			return fmt.Errorf("revoke family: %w", err)
		}
		return ErrSessionInvalid
	}
	if e.cfg.FamilyMaxAge > 0 {
		started, err := e.store.FamilyStartedAt(ctx, s.FamilyID)
		if err != nil {
			return fmt.Errorf("family age: %w", err)
		}
		if e.now().UTC().Sub(started) > e.cfg.FamilyMaxAge {
			if err := e.store.RevokeFamily(ctx, s.FamilyID, model.RevokeReasonFamilyAge); err != nil {
				return fmt.Errorf("revoke family: %w", err)
			}
			return ErrSessionInvalid
		}
	}
	return nil
}

func (e *Engine) reuseDetected(ctx context.Context, s *model.Session, net NetContext) error {
	if err := e.store.RevokeFamily(ctx, s.FamilyID, model.RevokeReasonReuse); err != nil {
		// Fail closed: the caller is rejected either way, but a family left
		// alive after detected reuse must be reported.
		e.audit.Record(ctx, Event(model.AuditSessionReuse, &s.UserID, net, false, map[string]any{
			"family_id":     s.FamilyID,
			"session_id":    s.ID,
			"revoke_failed": err.Error(),
		}))
		return ErrSessionReuse
	}
	e.audit.Record(ctx, Event(model.AuditSessionReuse, &s.UserID, net, false, map[string]any{
		"family_id":  s.FamilyID,
		"session_id": s.ID,
		"rotation":   s.Rotation,
	}))
	return ErrSessionReuse
}

// Invalidate handles explicit sign-out: it revokes the whole family the
// presented credential belongs to, terminating every device sharing that
// login lineage. Unknown credentials are not an error; sign-out is
// idempotent from the client's point of view.
func (e *Engine) Invalidate(ctx context.Context, rawToken string, net NetContext) error {
	s, err := e.store.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := e.store.RevokeFamily(ctx, s.FamilyID, model.RevokeReasonSignOut); err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	e.audit.Record(ctx, Event(model.AuditSignOut, &s.UserID, net, true, map[string]any{
		"family_id": s.FamilyID,
	}))
	return nil
}

// RevokeAllForUser kills every live session the user owns, across families.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID uint64, reason string) error {
	return e.store.RevokeAllForUser(ctx, userID, reason)
}
