package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
)

// CSRF returns an Echo middleware enforcing the double-submit check on
// state-changing requests: the value in the csrf cookie must match the
// value echoed in the X-CSRF-Token header. Safe methods pass through.
// There is no server-side token state; the comparison is the whole check.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			cookie, err := c.Cookie(auth.CSRFCookieName)
			if err != nil || !auth.ValidCSRF(cookie.Value, c.Request().Header.Get(auth.CSRFHeader)) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "csrf token mismatch"})
			}
			return next(c)
		}
	}
}
