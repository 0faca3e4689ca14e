package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Platform OAuth application
	GHLClientID       string
	GHLClientSecret   string
	GHLRedirectURI    string
	GHLAppID          string
	GHLCompanyName    string
	GHLAPIBaseURL     string
	GHLMarketplaceURL string

	// 64 hex chars (AES-256)
	EncryptionKey string

	AnythingLLMAPIURL string
	AnythingLLMAPIKey string

	TokenRefreshInterval    time.Duration
	TokenRefreshWindow      time.Duration
	LocationTokenRetries    int
	LocationTokenRetryDelay time.Duration
	FanoutConcurrency       int

	// firestore | memory
	StoreDriver string

	GoogleProjectID          string
	GoogleCredentials        string
	GooglePubSubWebhookTopic string

	RedisURL       string
	AdminJWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GHLClientID:       getEnv("GHL_CLIENT_ID", ""),
		GHLClientSecret:   getEnv("GHL_CLIENT_SECRET", ""),
		GHLRedirectURI:    getEnv("GHL_REDIRECT_URI", "http://localhost:8080/api/oauth/callback"),
		GHLAppID:          getEnv("GHL_APP_ID", ""),
		GHLCompanyName:    getEnv("GHL_COMPANY_NAME", ""),
		GHLAPIBaseURL:     getEnv("GHL_API_BASE_URL", "https://services.leadconnectorhq.com"),
		GHLMarketplaceURL: getEnv("GHL_MARKETPLACE_URL", "https://marketplace.gohighlevel.com"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		AnythingLLMAPIURL: getEnv("ANYTHINGLLM_API_URL", "http://localhost:3001/api"),
		AnythingLLMAPIKey: getEnv("ANYTHINGLLM_API_KEY", ""),

		TokenRefreshInterval:    getDuration("TOKEN_REFRESH_INTERVAL", time.Minute),
		TokenRefreshWindow:      getDuration("TOKEN_REFRESH_WINDOW", 10*time.Minute),
		LocationTokenRetries:    getInt("LOCATION_TOKEN_RETRIES", 3),
		LocationTokenRetryDelay: getDuration("LOCATION_TOKEN_RETRY_DELAY", 60*time.Second),
		FanoutConcurrency:       getInt("FANOUT_CONCURRENCY", 10),

		StoreDriver: getEnv("STORE_DRIVER", "firestore"),

		GoogleProjectID:          getEnv("GOOGLE_PROJECT_ID", ""),
		GoogleCredentials:        getEnv("GOOGLE_CREDENTIALS", ""),
		GooglePubSubWebhookTopic: getEnv("GOOGLE_PUBSUB_WEBHOOK_TOPIC", ""),

		RedisURL:       getEnv("REDIS_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
