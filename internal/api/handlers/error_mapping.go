/**
 * @description
 * Maps service rejection codes to HTTP responses.
 * Business/protocol rejections carry their stable code so the client UI can
 * branch on it; store and infrastructure failures collapse to a generic 500
 * with the detail logged server-side only.
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tokenfolio-project/backend/internal/challenge"
	"github.com/tokenfolio-project/backend/internal/logger"
	"github.com/tokenfolio-project/backend/internal/services"
)

func statusForCode(code string) int {
	switch code {
	case services.ErrWalletTaken.Code, services.ErrUsernameTaken.Code:
		return fiber.StatusConflict
	case services.ErrProfileNotFound.Code:
		return fiber.StatusNotFound
	case services.ErrForbidden.Code:
		return fiber.StatusForbidden
	default:
		// Client-input and protocol-violation rejections.
		return fiber.StatusBadRequest
	}
}

// respondServiceError renders a service error, or a generic 500 for
// anything that is not a stable rejection code.
func respondServiceError(c *fiber.Ctx, err error) error {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		body := fiber.Map{
			"error": svcErr.Message,
			"code":  svcErr.Code,
		}
		// Challenge decode failures carry a reason the client branches on
		// (e.g. EXPIRED restarts the flow, NO_CHALLENGE retries silently),
		// so it is never collapsed into the bare rejection code.
		var decodeErr *challenge.DecodeError
		if errors.As(svcErr.Err, &decodeErr) {
			body["reason"] = decodeErr.Code
		}
		return c.Status(statusForCode(svcErr.Code)).JSON(body)
	}

	logger.Error("Handler: internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
