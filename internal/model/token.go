package model

import "time"

// Token types stored in the 'auth_tokens' table.
const (
	TokenPasswordReset     = "password_reset"
	TokenEmailVerification = "email_verification"
)

// AuthToken is a single-use, short-lived capability (password reset or email
// verification). UsedAt is nil until consumed; it is set exactly once and a
// used token never validates again, regardless of remaining lifetime.
type AuthToken struct {
	ID        string
	UserID    uint64
	TokenType string
	TokenHash string
	UsedAt    *time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}
