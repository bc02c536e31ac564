package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
	"github.com/mikefreno/freno-dev-sub000/internal/config"
	"github.com/mikefreno/freno-dev-sub000/internal/email"
	"github.com/mikefreno/freno-dev-sub000/internal/model"
	"github.com/mikefreno/freno-dev-sub000/internal/oauth"
	"github.com/mikefreno/freno-dev-sub000/internal/ratelimit"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
)

// UserStore is the account storage the auth surface needs.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, displayName string) (uint64, error)
	CreateOAuth(ctx context.Context, email, provider, providerID, displayName string, avatarURL *string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	SetEmailVerified(ctx context.Context, id uint64) error
	SoftDelete(ctx context.Context, id uint64) error
}

// AuthHandler bundles dependencies for the authentication surface.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Engine   *auth.Engine
	Verifier *auth.PasswordVerifier
	Lockout  *auth.Lockout
	Tokens   *auth.TokenService
	Limiter  *ratelimit.Limiter
	Audit    *auth.Recorder
	Mail     email.Sender
	OAuth    *oauth.Client
	Sweeper  *auth.Sweeper
}

// ----- DTOs -----

type registerReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
	DisplayName  string `json:"display_name"`
}
type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID            uint64 `json:"id"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
	CSRF   string    `json:"csrf"`
}

func netCtx(c echo.Context) auth.NetContext {
	return auth.NetContext{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (h *AuthHandler) isAdmin(u *model.User) bool {
	return h.Cfg.AdminEmail != "" && u.Email != nil && *u.Email == h.Cfg.AdminEmail
}

// issue creates a fresh session family plus access token and csrf value,
// installs cookies, and builds the shared success payload.
func (h *AuthHandler) issue(c echo.Context, ctx context.Context, u *model.User, remember bool) (*authResp, error) {
	sess, raw, err := h.Engine.Issue(ctx, u.ID, remember, netCtx(c))
	if err != nil {
		return nil, err
	}
	access, err := auth.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.isAdmin(u), h.Cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	csrf, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	h.setAuthCookies(c, raw, remember, sess.ExpiresAt, csrf)

	var emailStr string
	if u.Email != nil {
		emailStr = *u.Email
	}
	return &authResp{
		User:   userPart{ID: u.ID, Email: emailStr, DisplayName: u.DisplayName, EmailVerified: u.EmailVerified},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
		CSRF:   csrf,
	}, nil
}

// Login: rate limit, constant-shape credential check, lockout bookkeeping,
// then a fresh session family.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	if err := h.Limiter.Allow(ctx, ratelimit.ActionLogin, req.Email, net.IP); err != nil {
		var limited *ratelimit.RateLimitedError
		if errors.As(err, &limited) {
			h.Audit.Record(ctx, auth.Event(model.AuditRateLimitExceeded, nil, net, false,
				map[string]any{"action": ratelimit.ActionLogin, "email": req.Email}))
		}
		return writeAuthError(c, err)
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return writeAuthError(c, err)
	}

	// The compare runs even when no account (or no hash) exists, so timing
	// does not reveal account existence.
	var hash *string
	if found {
		hash = u.PasswordHash
	}
	match := h.Verifier.Verify(hash, req.Password)

	if found {
		if err := h.Lockout.Check(&u); err != nil {
			h.Audit.Record(ctx, auth.Event(model.AuditLoginFailure, &u.ID, net, false,
				map[string]any{"reason": "locked"}))
			return writeAuthError(c, err)
		}
	}

	if !found || !match {
		if found {
			lockedNow, lockErr := h.Lockout.OnFailure(ctx, u.ID)
			if lockErr != nil {
				log.Printf("login: failure bookkeeping for user %d: %v", u.ID, lockErr)
			}
			h.Audit.Record(ctx, auth.Event(model.AuditLoginFailure, &u.ID, net, false,
				map[string]any{"reason": "bad_password"}))
			if lockedNow {
				h.Audit.Record(ctx, auth.Event(model.AuditLockoutTriggered, &u.ID, net, false, nil))
			}
		} else {
			h.Audit.Record(ctx, auth.Event(model.AuditLoginFailure, nil, net, false,
				map[string]any{"reason": "unknown_email"}))
		}
		return writeAuthError(c, auth.ErrInvalidCredentials)
	}

	if err := h.Lockout.OnSuccess(ctx, u.ID); err != nil {
		log.Printf("login: lockout reset for user %d: %v", u.ID, err)
	}
	if err := h.Limiter.Reset(ctx, ratelimit.ActionLogin, req.Email, net.IP); err != nil {
		log.Printf("login: rate limit reset for %s: %v", req.Email, err)
	}

	resp, err := h.issue(c, ctx, &u, req.RememberMe)
	if err != nil {
		return writeAuthError(c, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditLoginSuccess, &u.ID, net, true, nil))
	return c.JSON(http.StatusOK, resp)
}

// Refresh: rotate the presented session credential for a child in the same
// family. Replay of a consumed credential revokes the family inside the
// engine; externally it is a plain invalid session.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return writeAuthError(c, auth.ErrSessionInvalid)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, raw, err := h.Engine.Rotate(ctx, cookie.Value, netCtx(c))
	if err != nil {
		if errors.Is(err, auth.ErrSessionInvalid) {
			h.clearAuthCookies(c)
		}
		return writeAuthError(c, err)
	}

	u, err := h.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return writeAuthError(c, auth.ErrSessionInvalid)
		}
		return writeAuthError(c, err)
	}

	access, err := auth.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.isAdmin(&u), h.Cfg.AccessTTL)
	if err != nil {
		return writeAuthError(c, err)
	}
	csrf, err := auth.NewCSRFToken()
	if err != nil {
		return writeAuthError(c, err)
	}
	h.setAuthCookies(c, raw, sess.Remember, sess.ExpiresAt, csrf)

	// Opportunistic garbage collection; never on the request path.
	if h.Sweeper != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.Sweeper.MaybeSweep(ctx)
		}()
	}

	var emailStr string
	if u.Email != nil {
		emailStr = *u.Email
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: emailStr, DisplayName: u.DisplayName, EmailVerified: u.EmailVerified},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
		CSRF:   csrf,
	})
}

// Logout revokes the presented session's whole family: sign-out terminates
// every device sharing that login lineage.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.Engine.Invalidate(ctx, cookie.Value, netCtx(c)); err != nil {
			return writeAuthError(c, err)
		}
	}
	h.clearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// Register: create the account, queue the verification email, and log the
// user straight in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	case len(req.Password) < 8:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	case req.Password != req.Confirmation:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}
	if req.DisplayName == "" {
		req.DisplayName = strings.SplitN(req.Email, "@", 2)[0]
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	// Registration is keyed by address alone; an attacker cycling emails
	// from one address burns a single budget.
	if err := h.Limiter.Allow(ctx, ratelimit.ActionRegister, net.IP); err != nil {
		return writeAuthError(c, err)
	}

	hash, err := h.Verifier.Hash(req.Password)
	if err != nil {
		return writeAuthError(c, err)
	}
	uid, err := h.Users.Create(ctx, req.Email, hash, req.DisplayName)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return writeAuthError(c, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditRegister, &uid, net, true, nil))

	if err := h.sendVerification(ctx, uid, req.Email, net); err != nil {
		// Account exists; the caller can use the resend path once mail is
		// back up.
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification email failed, retry later", "retryable": true})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeAuthError(c, err)
	}
	resp, err := h.issue(c, ctx, &u, false)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return writeAuthError(c, auth.ErrSessionInvalid)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeAuthError(c, err)
	}
	var emailStr string
	if u.Email != nil {
		emailStr = *u.Email
	}
	return c.JSON(http.StatusOK, userPart{
		ID: u.ID, Email: emailStr, DisplayName: u.DisplayName, EmailVerified: u.EmailVerified,
	})
}

// DeleteAccount soft-deletes the account: personal fields are nulled, the
// display name becomes a sentinel, and every session is revoked. The row
// itself stays so authored content keeps its owner reference.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return writeAuthError(c, auth.ErrSessionInvalid)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	if err := h.Users.SoftDelete(ctx, uid); err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Engine.RevokeAllForUser(ctx, uid, model.RevokeReasonAccountDelete); err != nil {
		return writeAuthError(c, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditAccountDeleted, &uid, net, true, nil))
	h.clearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}
