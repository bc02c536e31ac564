package auth

import (
	"context"
	"log"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

// AuditStore appends audit events to durable storage.
type AuditStore interface {
	Insert(ctx context.Context, e *model.AuditEvent) error
}

// Recorder writes audit events with a never-fails contract: a storage
// failure is logged locally and swallowed so it can never abort the
// security decision that triggered it.
type Recorder struct {
	store AuditStore
}

func NewRecorder(store AuditStore) *Recorder { return &Recorder{store: store} }

// Record appends one event. The write runs on a context detached from the
// request's cancellation so an aborted request still gets its audit row.
// Safe on a nil Recorder.
func (r *Recorder) Record(ctx context.Context, e *model.AuditEvent) {
	if r == nil || r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := r.store.Insert(ctx, e); err != nil {
		log.Printf("audit: write failed for %s: %v", e.EventType, err)
	}
}

// Event is a convenience constructor for the common shape.
func Event(eventType string, userID *uint64, net NetContext, success bool, data map[string]any) *model.AuditEvent {
	return &model.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Data:      data,
		IP:        net.IP,
		UserAgent: net.UserAgent,
		Success:   success,
	}
}
