// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the gateway needs at startup. Secrets live only
// here and in the components they are injected into; they must never
// appear in logs or error responses.
type Config struct {
	Port   string
	AppURL string

	APIKey        string
	APISecret     string
	EncryptionKey string

	// Plan selects the OAuth scope set requested at install time.
	Plan string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitMax    int
	RateLimitWindow time.Duration

	SessionTTL time.Duration
	StateTTL   time.Duration
}

// Load reads configuration from the environment. The platform credentials,
// encryption key, and app URL are required; missing values are a fatal
// configuration error, not a runtime fallback.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AppURL:          os.Getenv("APP_URL"),
		APIKey:          os.Getenv("SHOPIFY_API_KEY"),
		APISecret:       os.Getenv("SHOPIFY_API_SECRET"),
		EncryptionKey:   os.Getenv("ENCRYPTION_KEY"),
		Plan:            getEnv("OAUTH_PLAN", "basic"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "shopify_gateway"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		SessionTTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),
		StateTTL:        getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SHOPIFY_API_KEY is required")
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.AppURL == "" {
		return nil, fmt.Errorf("APP_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
