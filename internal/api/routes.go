/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 */

package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tokenfolio-project/backend/internal/api/handlers"
	"github.com/tokenfolio-project/backend/internal/api/middleware"
	"github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/challenge"
	"github.com/tokenfolio-project/backend/internal/config"
	"github.com/tokenfolio-project/backend/internal/logger"
	"github.com/tokenfolio-project/backend/internal/services"
	"github.com/tokenfolio-project/backend/internal/store"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 1. Initialize token issuer and middleware
	issuer := auth.NewTokenIssuer(
		[]byte(cfg.Auth.SessionSecret),
		[]byte(cfg.Auth.StoreClaimSecret),
		cfg.Auth.SessionTTL,
		cfg.Auth.StoreClaimTTL,
	)
	if err := middleware.InitAuthMiddleware(cfg, issuer); err != nil {
		logger.Error("Failed to init auth middleware: %v", err)
		// App still starts in dev modes without valid keys, but protected
		// routes will fail.
	}

	// 2. Initialize store and services
	gormStore := store.NewGormStore(db, issuer)
	codec := challenge.NewCodec([]byte(cfg.Auth.ChallengeSecret))

	linkService := services.NewWalletLinkService(gormStore, codec, cfg.Wallet)
	favoritesService := services.NewFavoritesService(gormStore)
	profileService := services.NewProfileService(gormStore)

	// 3. Initialize handlers
	walletHandler := handlers.NewWalletHandler(linkService, issuer, cfg.Server.Env)
	favoritesHandler := handlers.NewFavoritesHandler(favoritesService)
	profileHandler := handlers.NewProfileHandler(profileService)

	walletLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Redis:     rdb,
		KeyPrefix: "ratelimit:wallet",
		Limit:     30,
		Window:    time.Minute,
	})

	// 4. Define routes
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Public
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Wallet challenge serves both anonymous sign-in and authenticated link
	wallet := v1.Group("/wallet")
	wallet.Post("/challenge", walletLimiter, middleware.OptionalAuth(), walletHandler.Challenge)
	wallet.Post("/link", walletLimiter, middleware.Protected(), walletHandler.Link)
	wallet.Post("/unlink", middleware.Protected(), walletHandler.Unlink)
	wallet.Get("/check", middleware.Protected(), walletHandler.Check)
	wallet.Post("/check", middleware.Protected(), walletHandler.Check)

	v1.Post("/auth/wallet/login", walletLimiter, walletHandler.Login)

	favorites := v1.Group("/favorites", middleware.Protected())
	favorites.Get("", favoritesHandler.List)
	favorites.Put("", favoritesHandler.Replace)

	profile := v1.Group("/profile", middleware.Protected())
	profile.Get("/me", profileHandler.GetMe)
	profile.Post("/sync", profileHandler.Sync)
}
