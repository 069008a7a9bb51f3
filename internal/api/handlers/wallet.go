/**
 * @description
 * Wallet API Handlers.
 * Challenge issuance, verify+link, unlink, link status, and wallet-based
 * sign-in. The challenge lives entirely in a signed HttpOnly cookie set
 * here; the link call clears it on every terminal outcome (single-use
 * enforcement).
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/api/middleware
 */

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tokenfolio-project/backend/internal/api/middleware"
	"github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/challenge"
	"github.com/tokenfolio-project/backend/internal/services"
)

// ChallengeCookieName is the cookie holding the encoded challenge.
const ChallengeCookieName = "wallet_challenge"

// WalletHandler handles wallet link and sign-in requests
type WalletHandler struct {
	links  *services.WalletLinkService
	issuer *auth.TokenIssuer
	env    string
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(links *services.WalletLinkService, issuer *auth.TokenIssuer, env string) *WalletHandler {
	return &WalletHandler{links: links, issuer: issuer, env: env}
}

// ChallengeRequest is the payload for issuing a challenge
type ChallengeRequest struct {
	Method  string `json:"method"`
	Address string `json:"address"` // required for siwe
}

// Challenge issues a fresh signed challenge and sets the cookie
// POST /api/v1/wallet/challenge
func (h *WalletHandler) Challenge(c *fiber.Ctx) error {
	var req ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Method == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Method is required", "code": "INVALID_METHOD"})
	}

	// Anonymous challenges serve wallet sign-in; authenticated ones bind
	// the caller for a link.
	userID, _ := middleware.GetUserID(c)

	result, err := h.links.IssueChallenge(c.UserContext(), challenge.Method(req.Method), userID, c.Hostname(), req.Address)
	if err != nil {
		return respondServiceError(c, err)
	}

	h.setChallengeCookie(c, result.CookieValue, result.ExpiresAt)

	resp := fiber.Map{
		"method":     result.Method,
		"nonce":      result.Nonce,
		"domain":     result.Domain,
		"issued_at":  result.IssuedAt,
		"expires_at": result.ExpiresAt,
		"message":    result.Message,
	}
	if result.SIWEHints != nil {
		resp["siwe"] = result.SIWEHints
	}
	return c.JSON(resp)
}

// LinkRequest is the payload for verify+link
type LinkRequest struct {
	Method      string `json:"method"`
	Signature   string `json:"signature"`
	SIWEMessage string `json:"siwe_message"`
	// UseSession requests the session-trust shortcut: skip re-signing when
	// the session already carries a verified wallet address.
	UseSession bool `json:"use_session"`
}

// Link verifies the signed challenge and commits the address
// POST /api/v1/wallet/link
func (h *WalletHandler) Link(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.links.VerifyLink(c.UserContext(), services.LinkInput{
		UserID:        userID,
		Method:        challenge.Method(req.Method),
		Signature:     req.Signature,
		SIWEMessage:   req.SIWEMessage,
		Host:          c.Hostname(),
		CookieValue:   c.Cookies(ChallengeCookieName),
		SessionWallet: middleware.GetSessionWallet(c),
		TrustSession:  req.UseSession,
	})

	// Single use: the challenge is spent on any terminal outcome of this
	// call, success or rejection.
	h.clearChallengeCookie(c)

	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"wallet_address": result.WalletAddress,
		"linked_at":      result.LinkedAt,
	})
}

// Unlink clears the wallet fields on the caller's profile
// POST /api/v1/wallet/unlink
func (h *WalletHandler) Unlink(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := h.links.Unlink(c.UserContext(), userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Check reports the caller's link status
// GET /api/v1/wallet/check
func (h *WalletHandler) Check(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	status, err := h.links.Check(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"is_linked":      status.IsLinked,
		"wallet_address": status.WalletAddress,
		"linked_at":      status.LinkedAt,
	})
}

// LoginRequest is the payload for wallet-based sign-in
type LoginRequest struct {
	Signature string `json:"signature"`
}

// Login verifies a minimal-method challenge signature and mints a session
// POST /api/v1/auth/wallet/login
func (h *WalletHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	profile, err := h.links.VerifyLogin(c.UserContext(), services.LoginInput{
		Signature:   req.Signature,
		Host:        c.Hostname(),
		CookieValue: c.Cookies(ChallengeCookieName),
	})

	h.clearChallengeCookie(c)

	if err != nil {
		return respondServiceError(c, err)
	}

	wallet := ""
	if profile.WalletAddress != nil {
		wallet = *profile.WalletAddress
	}
	token, err := h.issuer.MintSessionToken(profile.UserID, wallet)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":   token,
		"profile": profile,
	})
}

func (h *WalletHandler) setChallengeCookie(c *fiber.Ctx, value string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     ChallengeCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HTTPOnly: true,
		Secure:   h.env == "production",
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *WalletHandler) clearChallengeCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     ChallengeCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.env == "production",
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
