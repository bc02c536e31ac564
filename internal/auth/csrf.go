package auth

import "crypto/subtle"

// CSRF protection uses the double-submit pattern: the value issued on every
// successful authentication and every rotation is set as a cookie, and
// state-changing requests must echo it in a header. Validity is "presented
// value matches cookie value"; there is no server-side storage.

// CSRFCookieName is readable by client script so it can be echoed back.
const CSRFCookieName = "csrf_token"

// CSRFHeader carries the echoed value on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

// NewCSRFToken returns a fresh random token value.
func NewCSRFToken() (string, error) {
	return randomHex(32)
}

// ValidCSRF compares the cookie value with the presented value in constant
// time. Empty values never validate.
func ValidCSRF(cookieVal, presented string) bool {
	if cookieVal == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieVal), []byte(presented)) == 1
}
