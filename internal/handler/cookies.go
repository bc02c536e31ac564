package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
	"github.com/mikefreno/freno-dev-sub000/internal/oauth"
	"github.com/mikefreno/freno-dev-sub000/internal/ratelimit"
)

// SessionCookieName carries the rotating refresh credential.
const SessionCookieName = "session_token"

// setAuthCookies installs the session and csrf cookies. The session cookie
// is httpOnly and SameSite Lax; it gets an explicit expiry only for
// remembered sessions, otherwise it lives for the browser session while the
// server-side row enforces the real lifetime.
func (h *AuthHandler) setAuthCookies(c echo.Context, rawToken string, remember bool, expires time.Time, csrfToken string) {
	session := &http.Cookie{
		Name:     SessionCookieName,
		Value:    rawToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		session.Expires = expires
	}
	c.SetCookie(session)

	// Double-submit: client script must be able to read this one back.
	csrf := &http.Cookie{
		Name:     auth.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		csrf.Expires = expires
	}
	c.SetCookie(csrf)
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, name := range []string{SessionCookieName, auth.CSRFCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == SessionCookieName,
			Secure:   h.Cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

// writeAuthError maps the security-decision error taxonomy onto HTTP
// responses. Reuse detection deliberately falls through the generic
// invalid-session branch: externally it is indistinguishable from expiry.
// Anything unclassified is an internal fault and fails closed as a 500
// with no detail.
func writeAuthError(c echo.Context, err error) error {
	var limited *ratelimit.RateLimitedError
	var locked *auth.LockedError
	switch {
	case errors.As(err, &limited):
		secs := int(limited.RetryAfter.Seconds() + 0.5)
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many requests",
			"retry_after": secs,
		})
	case errors.As(err, &locked):
		return c.JSON(http.StatusLocked, echo.Map{
			"error":       "account locked",
			"retry_after": int(locked.Remaining.Seconds() + 0.5),
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrSessionInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
	case errors.Is(err, auth.ErrTokenExpiredOrUsed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token expired or already used"})
	case errors.Is(err, oauth.ErrUpstreamTimeout):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "identity provider timed out", "retryable": true})
	case errors.Is(err, oauth.ErrUpstreamNetwork):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity provider unavailable", "retryable": true})
	case errors.Is(err, oauth.ErrUpstreamRejected):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "identity provider rejected the sign-in", "retryable": false})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
