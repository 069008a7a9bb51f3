/**
 * @description
 * Favorites API Handlers.
 * The authoritative mutation is a full-set replace; clients never patch
 * the set incrementally through this API.
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
)

// FavoritesHandler handles favorite-token requests
type FavoritesHandler struct {
	favorites *services.FavoritesService
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler(favorites *services.FavoritesService) *FavoritesHandler {
	return &FavoritesHandler{favorites: favorites}
}

// ReplaceRequest is the payload for a full-set replace
type ReplaceRequest struct {
	TokenIDs []string `json:"token_ids"`
}

// Replace atomically makes the stored set equal the given tokens
// PUT /api/v1/favorites
func (h *FavoritesHandler) Replace(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req ReplaceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.TokenIDs == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token_ids is required"})
	}

	if err := h.favorites.Replace(c.UserContext(), userID, req.TokenIDs); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// List returns the caller's favorites
// GET /api/v1/favorites
func (h *FavoritesHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	favorites, err := h.favorites.List(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"favorites": favorites,
		"count":     len(favorites),
	})
}
