package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mikefreno/freno-dev-sub000/internal/model"
)

// AuditRepo appends rows to the audit_events table. The table is
// append-only; there are no update or delete methods on purpose.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert appends one event. Callers that must not fail on audit errors wrap
// this behind auth.Recorder rather than calling it directly.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditEvent) error {
	var data []byte
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		data = b
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO audit_events (event_type, user_id, data, ip, user_agent, success) VALUES (?,?,?,?,?,?)",
		e.EventType, e.UserID, data, e.IP, e.UserAgent, e.Success)
	return err
}
