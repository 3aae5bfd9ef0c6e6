package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/susu3304/warikan/internal/settlement"
)

type Config struct {
	// Discord Bot (empty disables the bot)
	DiscordToken string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Database (empty keeps sessions in memory)
	DatabaseURL string

	// Web Server
	WebBind string

	// Session
	JWTSecret string

	// Settlement defaults for new sessions
	RoundingUnit      int64
	RemainderStrategy settlement.RemainderStrategy

	// Logging
	LogEnv   string
	LogLevel string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		JWTSecret:           getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		LogEnv:              getEnvDefault("LOG_ENV", "production"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
	}

	unit, err := strconv.ParseInt(getEnvDefault("ROUNDING_UNIT", strconv.FormatInt(settlement.DefaultRoundingUnit, 10)), 10, 64)
	if err != nil || unit <= 0 {
		return nil, fmt.Errorf("ROUNDING_UNIT must be a positive integer")
	}
	cfg.RoundingUnit = unit

	strategy, err := settlement.ParseRemainderStrategy(os.Getenv("REMAINDER_STRATEGY"))
	if err != nil {
		return nil, fmt.Errorf("REMAINDER_STRATEGY: %w", err)
	}
	cfg.RemainderStrategy = strategy

	if cfg.DiscordToken != "" && cfg.DiscordClientID == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_ID is required when DISCORD_TOKEN is set")
	}
	if cfg.DiscordClientID != "" && cfg.DiscordClientSecret == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}

	return cfg, nil
}

// OAuthEnabled reports whether Discord login can be offered.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
