package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Public URL of the landing page
	BaseURL string

	// Optional. The Postgres funnel sink is disabled when empty.
	DatabaseUrl string

	// Profile (user) service
	UserServiceURL     string
	UserServiceTimeout time.Duration

	// WhatsApp service
	WhatsAppServiceURL     string
	WhatsAppAPIKey         string
	WhatsAppServiceTimeout time.Duration
	WhatsAppBusinessNumber string // click-to-chat target on the confirmation page

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Analytics delivery
	AnalyticsWorkers        int
	AnalyticsQueueSize      int
	AnalyticsArchiveEnabled bool
	AnalyticsFlushInterval  time.Duration
	AnalyticsBatchSize      int
	AnalyticsHashKey        string

	// Submit rate limit, per client IP
	SignupRateLimit  int
	SignupRateWindow time.Duration

	// How long the confirmation page stays claimable after a submit
	ConfirmationTTL time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),

		// Backend services default to the local docker-compose ports
		UserServiceURL:         getEnv("USER_SERVICE_URL", "http://localhost:3001/api/v1"),
		UserServiceTimeout:     getEnvDuration("USER_SERVICE_TIMEOUT", 10*time.Second),
		WhatsAppServiceURL:     getEnv("WHATSAPP_SERVICE_URL", "http://localhost:3002/api/v1"),
		WhatsAppAPIKey:         getEnv("WHATSAPP_API_KEY", "dev-api-key"),
		WhatsAppServiceTimeout: getEnvDuration("WHATSAPP_SERVICE_TIMEOUT", 10*time.Second),
		WhatsAppBusinessNumber: getEnv("WHATSAPP_BUSINESS_NUMBER", "5511999999999"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Analytics defaults
		AnalyticsWorkers:        getEnvInt("ANALYTICS_WORKERS", 2),
		AnalyticsQueueSize:      getEnvInt("ANALYTICS_QUEUE_SIZE", 1000),
		AnalyticsArchiveEnabled: getEnvBool("ANALYTICS_ARCHIVE_ENABLED", false),
		AnalyticsFlushInterval:  getEnvDuration("ANALYTICS_FLUSH_INTERVAL", time.Minute),
		AnalyticsBatchSize:      getEnvInt("ANALYTICS_BATCH_SIZE", 500),
		AnalyticsHashKey:        getEnv("ANALYTICS_HASH_KEY", ""),

		SignupRateLimit:  getEnvInt("SIGNUP_RATE_LIMIT", 10),
		SignupRateWindow: getEnvDuration("SIGNUP_RATE_WINDOW", 15*time.Minute),

		ConfirmationTTL: getEnvDuration("CONFIRMATION_TTL", 10*time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"BASE_URL":             c.BaseURL,
		"USER_SERVICE_URL":     c.UserServiceURL,
		"WHATSAPP_SERVICE_URL": c.WhatsAppServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got: %q", name, raw)
		}
	}

	for name, d := range map[string]time.Duration{
		"USER_SERVICE_TIMEOUT":     c.UserServiceTimeout,
		"WHATSAPP_SERVICE_TIMEOUT": c.WhatsAppServiceTimeout,
		"SIGNUP_RATE_WINDOW":       c.SignupRateWindow,
		"CONFIRMATION_TTL":         c.ConfirmationTTL,
		"ANALYTICS_FLUSH_INTERVAL": c.AnalyticsFlushInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got: %s", name, d)
		}
	}

	if c.SignupRateLimit < 1 {
		return fmt.Errorf("SIGNUP_RATE_LIMIT must be at least 1, got: %d", c.SignupRateLimit)
	}
	if c.AnalyticsBatchSize < 1 {
		return fmt.Errorf("ANALYTICS_BATCH_SIZE must be at least 1, got: %d", c.AnalyticsBatchSize)
	}
	if len(c.AnalyticsHashKey) > 64 {
		return fmt.Errorf("ANALYTICS_HASH_KEY must be at most 64 bytes")
	}

	// Validate storage configuration
	if c.StorageProvider == "r2" {
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
