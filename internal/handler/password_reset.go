package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
	"github.com/mikefreno/freno-dev-sub000/internal/model"
	"github.com/mikefreno/freno-dev-sub000/internal/ratelimit"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
)

type emailReq struct {
	Email string `json:"email"`
}
type resetCompleteReq struct {
	Token        string `json:"token"`
	NewPassword  string `json:"new_password"`
	Confirmation string `json:"confirmation"`
}
type verifyReq struct {
	Token string `json:"token"`
}

// RequestPasswordReset issues a single-use reset token and mails it.
// The response is 202 whether or not the email is registered; only a mail
// transport failure is surfaced, as a retryable service error.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || normalizeEmail(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	req.Email = normalizeEmail(req.Email)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	if err := h.Limiter.Allow(ctx, ratelimit.ActionResetRequest, req.Email, net.IP); err != nil {
		return writeAuthError(c, err)
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same response as the found case; existence stays private.
			return c.JSON(http.StatusAccepted, echo.Map{"message": "if that account exists, a reset email is on its way"})
		}
		return writeAuthError(c, err)
	}

	raw, err := h.Tokens.CreateReset(ctx, u.ID)
	if err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Mail.Send(ctx, req.Email, "Reset your password",
		fmt.Sprintf("<p>Use this token to reset your password: <code>%s</code>. It expires in %s.</p>",
			raw, h.Cfg.ResetTokenTTL)); err != nil {
		log.Printf("password-reset: send to user %d failed: %v", u.ID, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "reset email failed, retry later", "retryable": true})
	}
	h.Audit.Record(ctx, auth.Event(model.AuditResetRequested, &u.ID, net, true, nil))
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if that account exists, a reset email is on its way"})
}

// ResetPassword consumes a reset token. The token is validated first, only
// marked used after the password change lands, and every session the user
// owns is revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetCompleteReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	switch {
	case len(req.NewPassword) < 8:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	case req.NewPassword != req.Confirmation:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	t, err := h.Tokens.ValidateReset(ctx, req.Token)
	if err != nil {
		return writeAuthError(c, err)
	}
	hash, err := h.Verifier.Hash(req.NewPassword)
	if err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Users.UpdatePassword(ctx, t.UserID, hash); err != nil {
		// Token stays unburned; the caller can retry with the same link.
		return writeAuthError(c, err)
	}
	if err := h.Tokens.MarkUsed(ctx, t.ID); err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Engine.RevokeAllForUser(ctx, t.UserID, model.RevokeReasonPasswordReset); err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Lockout.OnSuccess(ctx, t.UserID); err != nil {
		log.Printf("password-reset: lockout reset for user %d: %v", t.UserID, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditResetCompleted, &t.UserID, net, true, nil))
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated, please sign in"})
}

// ResendVerification re-issues the email-verification token. Like the
// reset request, the response never reveals whether the email exists.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || normalizeEmail(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	req.Email = normalizeEmail(req.Email)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	if err := h.Limiter.Allow(ctx, ratelimit.ActionVerifyResend, req.Email, net.IP); err != nil {
		return writeAuthError(c, err)
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusAccepted, echo.Map{"message": "if that account exists, a verification email is on its way"})
		}
		return writeAuthError(c, err)
	}
	if u.EmailVerified {
		return c.JSON(http.StatusAccepted, echo.Map{"message": "if that account exists, a verification email is on its way"})
	}

	if err := h.sendVerification(ctx, u.ID, req.Email, net); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification email failed, retry later", "retryable": true})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if that account exists, a verification email is on its way"})
}

// VerifyEmail consumes a verification token and flips the verified flag.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	net := netCtx(c)

	t, err := h.Tokens.ValidateVerification(ctx, req.Token)
	if err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Users.SetEmailVerified(ctx, t.UserID); err != nil {
		return writeAuthError(c, err)
	}
	if err := h.Tokens.MarkUsed(ctx, t.ID); err != nil {
		return writeAuthError(c, err)
	}
	h.Audit.Record(ctx, auth.Event(model.AuditVerifyCompleted, &t.UserID, net, true, nil))
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

func (h *AuthHandler) sendVerification(ctx context.Context, userID uint64, to string, net auth.NetContext) error {
	raw, err := h.Tokens.CreateVerification(ctx, userID)
	if err != nil {
		return err
	}
	if err := h.Mail.Send(ctx, to, "Verify your email",
		fmt.Sprintf("<p>Use this token to verify your email: <code>%s</code>. It expires in %s.</p>",
			raw, h.Cfg.VerifyTokenTTL)); err != nil {
		log.Printf("verification: send to user %d failed: %v", userID, err)
		return err
	}
	h.Audit.Record(ctx, auth.Event(model.AuditVerifyRequested, &userID, net, true, nil))
	return nil
}
