/**
 * @description
 * Profile API Handlers.
 * GetMe ensures the profile row exists just-in-time, which is the
 * guarantee the wallet operations depend on.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/api/middleware
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokenfolio-project/backend/internal/api/middleware"
	"github.com/tokenfolio-project/backend/internal/services"
	"github.com/tokenfolio-project/backend/internal/store"
)

// ProfileHandler handles profile requests
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetMe returns the caller's profile, creating it just-in-time
// GET /api/v1/profile/me
func (h *ProfileHandler) GetMe(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	profile, err := h.profiles.Ensure(c.UserContext(), userID, middleware.GetSessionEmail(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// SyncRequest carries partial profile updates; absent fields stay untouched
type SyncRequest struct {
	Username   *string `json:"username"`
	Bio        *string `json:"bio"`
	TwitterURL *string `json:"twitter_url"`
	WebsiteURL *string `json:"website_url"`
}

// Sync updates the caller's profile fields
// POST /api/v1/profile/sync
func (h *ProfileHandler) Sync(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// Ensure first so a fresh session can set its username in one call.
	if _, err := h.profiles.Ensure(c.UserContext(), userID, middleware.GetSessionEmail(c)); err != nil {
		return respondServiceError(c, err)
	}

	profile, err := h.profiles.Update(c.UserContext(), userID, store.ProfileUpdate{
		Username:   req.Username,
		Bio:        req.Bio,
		TwitterURL: req.TwitterURL,
		WebsiteURL: req.WebsiteURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}
