// Package auth implements the authentication-session security engine:
// credential verification, session rotation with reuse detection, account
// lockout, single-use reset/verification tokens, CSRF token issuance, and
// best-effort audit logging. All cross-request state lives in injected
// stores; the package holds no global state so it is safe under a pool of
// stateless workers.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NetContext carries the originating network address and client signature
// of the request driving a security decision.
type NetContext struct {
	IP        string
	UserAgent string
}

// randomHex returns a hex string generated from n bytes of cryptographically
// secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a raw credential. Sessions and
// auth tokens are stored hashed so a leaked database cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
