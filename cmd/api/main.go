/**
 * @description
 * Main entry point for the Tokenfolio Backend API.
 * Initializes the Fiber web server, loads configuration, and sets up routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - github.com/tokenfolio-project/backend/internal/config: Config loader
 * - github.com/tokenfolio-project/backend/internal/db: Database connections
 *
 * @notes
 * - Connects to Postgres on startup; Redis is optional (rate limiting
 *   fails open without it).
 */

package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tokenfolio-project/backend/internal/api"
	"github.com/tokenfolio-project/backend/internal/config"
	"github.com/tokenfolio-project/backend/internal/db"
	"github.com/tokenfolio-project/backend/internal/logger"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Database connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled: %v", err)
		redisClient = nil
	}

	// 3. Fiber app
	app := fiber.New(fiber.Config{
		AppName:       "Tokenfolio API",
		StrictRouting: false,
		CaseSensitive: true,
	})

	// 4. Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*", // TODO: lock down to the dashboard origin in production
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// 5. Routes
	api.SetupRoutes(app, pgDB, redisClient, cfg)

	// 6. Start server
	logger.Info("🚀 Starting Tokenfolio Backend on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
