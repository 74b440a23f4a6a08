// Package config loads application configuration from the environment.
package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port           int
	BaseURL        string
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// CronSecret authorizes the internal dispatch endpoint.
	CronSecret string

	// Worker settings
	WorkerEnabled     bool
	WorkerConcurrency int
	WorkerPollRate    time.Duration

	// LLM provider (OpenAI-compatible chat completions)
	LLMBaseURL           string
	LLMAPIKey            string
	LLMModel             string
	LLMCostPerMInputUSD  float64
	LLMCostPerMOutputUSD float64

	// Report archive (S3-compatible, optional)
	ArchiveEnabled   bool
	ArchiveBucket    string
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string

	// EncryptionKey is derived from JWT_SECRET via HKDF and used to
	// encrypt webhook URLs at rest.
	EncryptionKey []byte

	// WebhookSigningKey signs outgoing webhook payloads. Derived from
	// the same secret but with a distinct HKDF purpose, so neither key
	// reveals the other.
	WebhookSigningKey []byte
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:    getEnvSlice("CORS_ORIGINS", []string{"*"}),

		DatabaseURL: getEnv("DATABASE_URL", "file:optivexiq.sqlite"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		CronSecret: getEnv("CRON_SECRET", ""),

		WorkerEnabled:     getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollRate:    getEnvDuration("WORKER_POLL_RATE", 5*time.Second),

		LLMBaseURL:           getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		LLMModel:             getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMCostPerMInputUSD:  getEnvFloat("LLM_COST_PER_M_INPUT_USD", 0.15),
		LLMCostPerMOutputUSD: getEnvFloat("LLM_COST_PER_M_OUTPUT_USD", 0.60),

		ArchiveEnabled:   getEnvBool("ARCHIVE_ENABLED", false),
		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveEndpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveRegion:    getEnv("ARCHIVE_REGION", "auto"),
		ArchiveAccessKey: getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.EncryptionKey = deriveKey(cfg.JWTSecret, "webhook-secret-encryption")
	cfg.WebhookSigningKey = deriveKey(cfg.JWTSecret, "webhook-delivery-signing")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.ArchiveEnabled && c.ArchiveBucket == "" {
		return fmt.Errorf("ARCHIVE_BUCKET is required when ARCHIVE_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// deriveKey creates a 32-byte key from the JWT secret using
// HKDF-SHA256, bound to this application and the given purpose.
func deriveKey(secret, purpose string) []byte {
	salt := []byte("optivexiq-report-service-v1")
	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, []byte(purpose))

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
