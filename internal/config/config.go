/**
 * @description
 * Configuration loader for the Tokenfolio Backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (database URL, challenge cookie secret) are missing.
 * - Warns when the challenge cookie secret doubles as the store claim secret; this is
 *   accepted but weakens isolation between the two signing purposes.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tokenfolio-project/backend/internal/logger"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Wallet WalletConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// AuthConfig holds secrets and settings for the session and challenge layers
type AuthConfig struct {
	// SessionSecret signs HS256 session tokens minted by the wallet login path.
	SessionSecret string
	// ChallengeSecret keys the HMAC over the wallet challenge cookie.
	ChallengeSecret string
	// StoreClaimSecret signs the short-lived per-request claim handed to the
	// row-level-secured store. Defaults to ChallengeSecret when unset.
	StoreClaimSecret string
	// GoogleJWKSURL is the JWKS endpoint used to validate Google ID tokens.
	// Optional; wallet-session tokens still work without it.
	GoogleJWKSURL string
	SessionTTL    time.Duration
	StoreClaimTTL time.Duration
}

// WalletConfig holds parameters baked into signable messages
type WalletConfig struct {
	AppName   string
	Statement string
	URI       string
	ChainID   int
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Auth: AuthConfig{
			SessionSecret:    getEnv("SESSION_JWT_SECRET", ""),
			ChallengeSecret:  getEnv("CHALLENGE_COOKIE_SECRET", ""),
			StoreClaimSecret: getEnv("STORE_CLAIM_SECRET", ""),
			GoogleJWKSURL:    getEnv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
			SessionTTL:       time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 60*24)) * time.Minute,
			StoreClaimTTL:    time.Duration(getEnvAsInt("STORE_CLAIM_TTL_MINUTES", 5)) * time.Minute,
		},
		Wallet: WalletConfig{
			AppName:   getEnv("WALLET_APP_NAME", "Tokenfolio"),
			Statement: getEnv("WALLET_SIWE_STATEMENT", "Link this wallet to your Tokenfolio account."),
			URI:       getEnv("WALLET_SIWE_URI", "https://tokenfolio.app"),
			ChainID:   getEnvAsInt("WALLET_CHAIN_ID", 1),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.ChallengeSecret == "" {
		return fmt.Errorf("CHALLENGE_COOKIE_SECRET is required")
	}
	if cfg.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_JWT_SECRET is required")
	}
	if cfg.Auth.StoreClaimSecret == "" {
		logger.Warn("STORE_CLAIM_SECRET not set; reusing CHALLENGE_COOKIE_SECRET for store claims")
		cfg.Auth.StoreClaimSecret = cfg.Auth.ChallengeSecret
	} else if cfg.Auth.StoreClaimSecret == cfg.Auth.ChallengeSecret {
		logger.Warn("STORE_CLAIM_SECRET equals CHALLENGE_COOKIE_SECRET; consider separate secrets")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
