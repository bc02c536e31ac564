package model

import "time"

// Audit event types.
const (
	AuditLoginSuccess      = "login.success"
	AuditLoginFailure      = "login.failure"
	AuditLockoutTriggered  = "lockout.triggered"
	AuditSessionRotated    = "session.rotated"
	AuditSessionReuse      = "session.reuse_detected"
	AuditSignOut           = "session.sign_out"
	AuditRegister          = "account.registered"
	AuditAccountDeleted    = "account.deleted"
	AuditOAuthLogin        = "login.oauth"
	AuditResetRequested    = "password_reset.requested"
	AuditResetCompleted    = "password_reset.completed"
	AuditVerifyRequested   = "email_verification.requested"
	AuditVerifyCompleted   = "email_verification.completed"
	AuditRateLimitExceeded = "rate_limit.exceeded"
)

// AuditEvent is an append-only record of a security-relevant decision.
// UserID is nil for pre-auth failures where no account was identified.
// Data holds optional event context serialized as JSON.
type AuditEvent struct {
	ID        uint64
	EventType string
	UserID    *uint64
	Data      map[string]any
	IP        string
	UserAgent string
	Success   bool
	CreatedAt time.Time
}
