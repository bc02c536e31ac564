package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
)

// memSessionStore is an in-memory SessionStore with the same check-and-set
// semantics as the SQL implementation.
type memSessionStore struct {
	mu     sync.Mutex
	byID   map[string]*model.Session
	byHash map[string]string // token hash -> session id
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{byID: map[string]*model.Session{}, byHash: map[string]string{}}
}

func (s *memSessionStore) Create(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.CreatedAt = time.Now().UTC()
	s.byID[cp.ID] = &cp
	s.byHash[cp.TokenHash] = cp.ID
	return nil
}

func (s *memSessionStore) GetByTokenHash(_ context.Context, hash string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[hash]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *memSessionStore) MarkRotated(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok || sess.Status != model.SessionActive {
		return false, nil
	}
	now := time.Now().UTC()
	sess.Status = model.SessionRotated
	sess.RotatedAt = &now
	return true, nil
}

func (s *memSessionStore) RevokeFamily(_ context.Context, familyID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.FamilyID == familyID && sess.Status != model.SessionRevoked {
			sess.Status = model.SessionRevoked
			r := reason
			sess.RevokeReason = &r
		}
	}
	return nil
}

func (s *memSessionStore) RevokeAllForUser(_ context.Context, userID uint64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.UserID == userID && sess.Status != model.SessionRevoked {
			sess.Status = model.SessionRevoked
			r := reason
			sess.RevokeReason = &r
		}
	}
	return nil
}

func (s *memSessionStore) FamilyStartedAt(_ context.Context, familyID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var min time.Time
	for _, sess := range s.byID {
		if sess.FamilyID == familyID && (min.IsZero() || sess.CreatedAt.Before(min)) {
			min = sess.CreatedAt
		}
	}
	if min.IsZero() {
		return time.Time{}, repository.ErrNotFound
	}
	return min, nil
}

func (s *memSessionStore) family(familyID string) []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Session
	for _, sess := range s.byID {
		if sess.FamilyID == familyID {
			out = append(out, sess)
		}
	}
	return out
}

// memAuditStore records events for assertions.
type memAuditStore struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *memAuditStore) Insert(_ context.Context, e *model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *memAuditStore) byType(eventType string) []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(store *memSessionStore, audit *memAuditStore) *Engine {
	return NewEngine(store, NewRecorder(audit), EngineConfig{
		SessionTTL:   12 * time.Hour,
		RememberTTL:  30 * 24 * time.Hour,
		RotationMax:  100,
		FamilyMaxAge: 90 * 24 * time.Hour,
	})
}

var testNet = NetContext{IP: "203.0.113.7", UserAgent: "test-agent"}

func TestEngineIssue(t *testing.T) {
	store := newMemSessionStore()
	eng := newTestEngine(store, &memAuditStore{})

	sess, raw, err := eng.Issue(context.Background(), 1, false, testNet)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	assert.Equal(t, model.SessionActive, sess.Status)
	assert.Equal(t, 0, sess.Rotation)
	assert.NotEmpty(t, sess.FamilyID)
	assert.Equal(t, HashToken(raw), sess.TokenHash)

	t.Run("remembered sessions live longer", func(t *testing.T) {
		short, _, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)
		long, _, err := eng.Issue(context.Background(), 1, true, testNet)
		require.NoError(t, err)
		assert.True(t, long.ExpiresAt.After(short.ExpiresAt))
	})

	t.Run("each login starts a distinct family", func(t *testing.T) {
		a, _, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)
		b, _, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)
		assert.NotEqual(t, a.FamilyID, b.FamilyID)
	})
}

func TestEngineRotate(t *testing.T) {
	t.Run("rotation yields an active child in the same family", func(t *testing.T) {
		store := newMemSessionStore()
		eng := newTestEngine(store, &memAuditStore{})

		s0, raw0, err := eng.Issue(context.Background(), 1, true, testNet)
		require.NoError(t, err)

		s1, raw1, err := eng.Rotate(context.Background(), raw0, testNet)
		require.NoError(t, err)
		assert.Equal(t, s0.FamilyID, s1.FamilyID)
		assert.Equal(t, 1, s1.Rotation)
		assert.Equal(t, model.SessionActive, s1.Status)
		assert.NotEqual(t, raw0, raw1)
		assert.True(t, s1.Remember, "remember flag carries across rotation")

		parent, err := store.GetByTokenHash(context.Background(), HashToken(raw0))
		require.NoError(t, err)
		assert.Equal(t, model.SessionRotated, parent.Status)
	})

	t.Run("replay of a rotated credential revokes the family", func(t *testing.T) {
		store := newMemSessionStore()
		audit := &memAuditStore{}
		eng := newTestEngine(store, audit)

		s0, raw0, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)
		_, raw1, err := eng.Rotate(context.Background(), raw0, testNet)
		require.NoError(t, err)

		// Replay the consumed credential.
		_, _, err = eng.Rotate(context.Background(), raw0, testNet)
		require.ErrorIs(t, err, ErrSessionReuse)
		assert.ErrorIs(t, err, ErrSessionInvalid, "reuse surfaces as a plain invalid session")

		for _, sess := range store.family(s0.FamilyID) {
			assert.Equal(t, model.SessionRevoked, sess.Status)
		}
		require.Len(t, audit.byType(model.AuditSessionReuse), 1)

		// The legitimate successor is dead too.
		_, _, err = eng.Rotate(context.Background(), raw1, testNet)
		assert.ErrorIs(t, err, ErrSessionInvalid)
		assert.NotErrorIs(t, err, ErrSessionReuse)
	})

	t.Run("unknown credential", func(t *testing.T) {
		eng := newTestEngine(newMemSessionStore(), &memAuditStore{})
		_, _, err := eng.Rotate(context.Background(), "no-such-token", testNet)
		assert.ErrorIs(t, err, ErrSessionInvalid)
		assert.NotErrorIs(t, err, ErrSessionReuse)
	})

	t.Run("expired credential", func(t *testing.T) {
		store := newMemSessionStore()
		eng := newTestEngine(store, &memAuditStore{})

		_, raw, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)

		eng.now = func() time.Time { return time.Now().Add(13 * time.Hour) }
		_, _, err = eng.Rotate(context.Background(), raw, testNet)
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("rotation ceiling forces family revocation", func(t *testing.T) {
		store := newMemSessionStore()
		eng := newTestEngine(store, &memAuditStore{})
		eng.cfg.RotationMax = 2

		s0, raw, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)
		_, raw, err = eng.Rotate(context.Background(), raw, testNet)
		require.NoError(t, err)
		_, raw, err = eng.Rotate(context.Background(), raw, testNet)
		require.NoError(t, err)

		_, _, err = eng.Rotate(context.Background(), raw, testNet)
		require.ErrorIs(t, err, ErrSessionInvalid)
		for _, sess := range store.family(s0.FamilyID) {
			assert.Equal(t, model.SessionRevoked, sess.Status)
		}
	})

	t.Run("family age ceiling forces family revocation", func(t *testing.T) {
		store := newMemSessionStore()
		eng := newTestEngine(store, &memAuditStore{})
		eng.cfg.FamilyMaxAge = time.Hour
		// Long TTL so expiry does not trip first.
		eng.cfg.SessionTTL = 48 * time.Hour

		s0, raw, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)

		eng.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, _, err = eng.Rotate(context.Background(), raw, testNet)
		require.ErrorIs(t, err, ErrSessionInvalid)
		for _, sess := range store.family(s0.FamilyID) {
			assert.Equal(t, model.SessionRevoked, sess.Status)
		}
	})

	t.Run("concurrent refreshes produce exactly one winner", func(t *testing.T) {
		store := newMemSessionStore()
		eng := newTestEngine(store, &memAuditStore{})

		_, raw, err := eng.Issue(context.Background(), 1, false, testNet)
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, errs[i] = eng.Rotate(context.Background(), raw, testNet)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ErrSessionInvalid)
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestEngineInvalidate(t *testing.T) {
	store := newMemSessionStore()
	audit := &memAuditStore{}
	eng := newTestEngine(store, audit)

	s0, raw0, err := eng.Issue(context.Background(), 1, false, testNet)
	require.NoError(t, err)
	_, raw1, err := eng.Rotate(context.Background(), raw0, testNet)
	require.NoError(t, err)

	// Sign out with the current credential kills the whole lineage.
	require.NoError(t, eng.Invalidate(context.Background(), raw1, testNet))
	for _, sess := range store.family(s0.FamilyID) {
		assert.Equal(t, model.SessionRevoked, sess.Status)
	}
	require.Len(t, audit.byType(model.AuditSignOut), 1)

	t.Run("unknown credential is not an error", func(t *testing.T) {
		assert.NoError(t, eng.Invalidate(context.Background(), "gone", testNet))
	})
}
