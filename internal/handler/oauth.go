package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
	"github.com/mikefreno/freno-dev-sub000/internal/model"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
)

// OAuthCallback consumes a third-party authorization code: exchange with
// the provider (bounded timeout and retries inside the client), find or
// create the account, then start a fresh session family exactly like a
// password login.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	// The provider exchange gets its own budget on top of the DB work.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()
	net := netCtx(c)

	ident, err := h.OAuth.Exchange(ctx, provider, code)
	if err != nil {
		return writeAuthError(c, err)
	}

	u, err := h.Users.GetByProvider(ctx, ident.Provider, ident.ProviderID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		var avatar *string
		if ident.AvatarURL != "" {
			avatar = &ident.AvatarURL
		}
		uid, createErr := h.Users.CreateOAuth(ctx, ident.Email, ident.Provider, ident.ProviderID, ident.Name, avatar)
		if createErr != nil {
			if errors.Is(createErr, repository.ErrEmailExists) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered, sign in with your password"})
			}
			return writeAuthError(c, createErr)
		}
		u, err = h.Users.GetByID(ctx, uid)
		if err != nil {
			return writeAuthError(c, err)
		}
	default:
		return writeAuthError(c, err)
	}

	// Provider attestation counts as a successful authentication.
	if err := h.Lockout.OnSuccess(ctx, u.ID); err != nil {
		log.Printf("oauth: lockout reset for user %d: %v", u.ID, err)
	}

	resp, err := h.issue(c, ctx, &u, true)
	if err != nil {
		return writeAuthError(c, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditOAuthLogin, &u.ID, net, true,
		map[string]any{"provider": ident.Provider}))
	return c.JSON(http.StatusOK, resp)
}
