package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Reconciliation modes for previously-pending tips once a receiver links an
// account. Custodial confirms the tip immediately with no signature step
// (the tip is treated as an operator disbursement); resign re-creates it as
// a pending transaction so the sender signs it through the normal flow.
const (
	ReconcileModeCustodial = "custodial"
	ReconcileModeResign    = "resign"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	AppURL  string
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Redis configuration (optional; empty addr disables the user cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Hedera configuration
	HederaNetwork     string
	HederaOperatorID  string
	HederaOperatorKey string
	HederaNodeAccount string
	// Twitter configuration
	TwitterAPIBaseURL  string
	TwitterBearerToken string
	TwitterBotUserID   string
	TwitterBotUsername string
	// Bot configuration
	PollInterval     time.Duration
	MentionBatchSize int
	DryRun           bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
	RateLimitBackoff time.Duration
	// Transfer configuration
	ReconcileMode string
	// Auth configuration
	JWTSecret string
	JWTTTL    time.Duration
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development: getEnvAsBool("DEVELOPMENT", false),
		APIPort:     getEnvAsInt("API_PORT", 6831),
		AppURL:      getEnv("APP_URL", "https://tipjar.app"),

		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "tipjar"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		HederaNetwork:     getEnv("HEDERA_NETWORK", "testnet"),
		HederaOperatorID:  getEnv("HEDERA_OPERATOR_ID", ""),
		HederaOperatorKey: getEnv("HEDERA_OPERATOR_KEY", ""),
		HederaNodeAccount: getEnv("HEDERA_NODE_ACCOUNT", "0.0.3"),

		TwitterAPIBaseURL:  getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		TwitterBotUserID:   getEnv("TWITTER_BOT_USER_ID", ""),
		TwitterBotUsername: getEnv("TWITTER_BOT_USERNAME", "tipjarbot"),

		PollInterval:     getEnvAsDuration("POLL_INTERVAL", 2*time.Minute),
		MentionBatchSize: getEnvAsInt("MENTION_BATCH_SIZE", 10),
		DryRun:           getEnvAsBool("DRY_RUN", false),
		RateLimitMax:     getEnvAsInt("RATE_LIMIT_MAX", 250),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitBackoff: getEnvAsDuration("RATE_LIMIT_BACKOFF", 5*time.Minute),

		ReconcileMode: getEnv("RECONCILE_MODE", ReconcileModeCustodial),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.TwitterBearerToken == "" {
		return fmt.Errorf("TWITTER_BEARER_TOKEN is required")
	}

	if c.TwitterBotUserID == "" {
		return fmt.Errorf("TWITTER_BOT_USER_ID is required")
	}

	if c.ReconcileMode != ReconcileModeCustodial && c.ReconcileMode != ReconcileModeResign {
		return fmt.Errorf("RECONCILE_MODE must be %q or %q, got %q",
			ReconcileModeCustodial, ReconcileModeResign, c.ReconcileMode)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	if c.MentionBatchSize < 1 || c.MentionBatchSize > 100 {
		return fmt.Errorf("MENTION_BATCH_SIZE must be between 1 and 100")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
