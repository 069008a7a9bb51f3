/**
 * @description
 * Session middleware.
 * Validates Bearer tokens and resolves the caller identity once per
 * request. Two token kinds are accepted: HS256 session tokens minted by
 * this service after a wallet sign-in, and RS256 Google ID tokens
 * validated against Google's JWKS.
 *
 * On success the middleware mints the short-lived store claim for the
 * caller and stashes the full identity in the request's user context, so
 * the row-level-secured store can verify it independently.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - github.com/golang-jwt/jwt/v5: JWT parsing
 * - github.com/MicahParks/keyfunc/v2: JWKS fetching and caching
 */

package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/config"
	"github.com/tokenfolio-project/backend/internal/logger"
)

// AuthMiddlewareConfig holds the JWKS function and token issuer
type AuthMiddlewareConfig struct {
	JWKS   *keyfunc.JWKS
	Issuer *auth.TokenIssuer
}

var mwConfig *AuthMiddlewareConfig

// InitAuthMiddleware initializes the JWKS cache and issuer. Should be called at startup.
func InitAuthMiddleware(cfg *config.Config, issuer *auth.TokenIssuer) error {
	mw := &AuthMiddlewareConfig{Issuer: issuer}

	if cfg.Auth.GoogleJWKSURL != "" {
		// Refresh the JWKS every hour.
		jwks, err := keyfunc.Get(cfg.Auth.GoogleJWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				logger.Error("There was an error with the JWKS refresh: %v", err)
			},
		})
		if err != nil {
			return err
		}
		mw.JWKS = jwks
	} else {
		logger.Warn("GOOGLE_JWKS_URL is empty. Google ID tokens will be rejected.")
	}

	mwConfig = mw
	logger.Info("✅ Auth Middleware Initialized")
	return nil
}

// keyFor selects the verification key by signing method: HMAC tokens are
// this service's own session tokens, anything else goes to the JWKS.
func keyFor(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok {
		return mwConfig.Issuer.SessionSecret(), nil
	}
	if mwConfig.JWKS != nil {
		return mwConfig.JWKS.Keyfunc(t)
	}
	return nil, fmt.Errorf("unsupported signing method %v", t.Header["alg"])
}

// resolveCaller validates the bearer token and sets the caller identity on
// the request. Returns a fiber error response when the token is invalid.
func resolveCaller(c *fiber.Ctx, tokenString string) error {
	token, err := jwt.Parse(tokenString, keyFor)
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing subject"})
	}
	email, _ := claims["email"].(string)
	// The wallet claim is set only by our own wallet-login path, so its
	// presence means the address was verified when the session began.
	wallet, _ := claims["wallet"].(string)

	storeClaim, err := mwConfig.Issuer.MintStoreClaim(sub)
	if err != nil {
		logger.Error("Auth: failed to mint store claim: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	caller := auth.Caller{
		UserID:        sub,
		Email:         email,
		WalletAddress: wallet,
		StoreClaim:    storeClaim,
	}

	c.Locals("user_id", sub)
	c.Locals("session_email", email)
	c.Locals("session_wallet", wallet)
	c.SetUserContext(auth.WithCaller(c.UserContext(), caller))

	return c.Next()
}

// Protected protects routes requiring authentication
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mwConfig == nil || mwConfig.Issuer == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Auth configuration not initialized",
			})
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token format"})
		}

		return resolveCaller(c, tokenString)
	}
}

// OptionalAuth resolves the caller when a bearer token is present and
// passes anonymous requests through. Used by the challenge endpoint, which
// serves both sign-in (anonymous) and link (authenticated) flows.
func OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mwConfig == nil || mwConfig.Issuer == nil {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Next()
		}

		return resolveCaller(c, tokenString)
	}
}

// GetUserID returns the authenticated user's ID from context
func GetUserID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals("user_id").(string)
	if !ok || id == "" {
		return "", errors.New("user id not found in context")
	}
	return id, nil
}

// GetSessionEmail returns the session email, if any
func GetSessionEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("session_email").(string)
	return email
}

// GetSessionWallet returns the session-trusted wallet address, if any
func GetSessionWallet(c *fiber.Ctx) string {
	wallet, _ := c.Locals("session_wallet").(string)
	return wallet
}
