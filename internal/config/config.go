package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	LogLevel  string
	Database  DatabaseConfig
	Walmart   WalmartConfig
	Warranty  WarrantyConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// WalmartConfig holds Walmart Marketplace API credentials and sync tuning
type WalmartConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	ChannelType  string
	SyncInterval time.Duration
	SyncEnabled  bool
}

// WarrantyConfig holds warranty lifecycle tuning
type WarrantyConfig struct {
	DefaultPeriodMonths int
	MaxExtensions       int
	ExpiryCheckInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "opsgo"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Walmart: WalmartConfig{
			ClientID:     os.Getenv("WALMART_CLIENT_ID"),
			ClientSecret: os.Getenv("WALMART_CLIENT_SECRET"),
			BaseURL:      getEnv("WALMART_BASE_URL", "https://marketplace.walmartapis.com"),
			ChannelType:  os.Getenv("WALMART_CHANNEL_TYPE"),
			SyncInterval: getEnvDuration("WALMART_SYNC_INTERVAL", 15*time.Minute),
			SyncEnabled:  getEnv("WALMART_SYNC_ENABLED", "false") == "true",
		},
		Warranty: WarrantyConfig{
			DefaultPeriodMonths: getEnvInt("WARRANTY_DEFAULT_PERIOD_MONTHS", 3),
			MaxExtensions:       getEnvInt("WARRANTY_MAX_EXTENSIONS", 2),
			ExpiryCheckInterval: getEnvDuration("WARRANTY_EXPIRY_CHECK_INTERVAL", time.Hour),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
