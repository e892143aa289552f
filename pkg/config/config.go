package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Idempotency cache TTL bounds. The cache is only a hint; the unique key on
// payments is the durable dedup record, so the TTL just controls how long
// the fast path stays warm.
const (
	MinIdempotencyTTL = 24 * time.Hour
	MaxIdempotencyTTL = 7 * 24 * time.Hour
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// Kafka configuration
	KafkaBrokers []string
	KafkaTopic   string

	// Outbox dispatcher configuration
	OutboxPublisherEnabled bool
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int

	// Idempotency cache configuration
	IdempotencyCacheTTL time.Duration

	// Consumer configuration
	ConsumerEnabled bool
	AutoAuthorize   bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:           splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:             getEnv("KAFKA_TOPIC", "clearway.payments"),
		OutboxPublisherEnabled: getEnvAsBool("OUTBOX_PUBLISHER_ENABLED", true),
		OutboxPollInterval:     time.Duration(getEnvAsInt("OUTBOX_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		OutboxBatchSize:        getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		IdempotencyCacheTTL:    getEnvAsDuration("IDEMPOTENCY_CACHE_TTL", MaxIdempotencyTTL),
		ConsumerEnabled:        getEnvAsBool("CONSUMER_ENABLED", true),
		AutoAuthorize:          getEnvAsBool("AUTO_AUTHORIZE", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Keep the idempotency TTL inside its contract bounds rather than failing
	if cfg.IdempotencyCacheTTL < MinIdempotencyTTL {
		cfg.IdempotencyCacheTTL = MinIdempotencyTTL
	}
	if cfg.IdempotencyCacheTTL > MaxIdempotencyTTL {
		cfg.IdempotencyCacheTTL = MaxIdempotencyTTL
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL_MS must be positive")
	}

	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}

	if c.OutboxMaxRetries < 0 {
		return fmt.Errorf("OUTBOX_MAX_RETRIES must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
