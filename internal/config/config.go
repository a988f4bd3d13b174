package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DBUrl                 string
	JWTSecret             string
	AppEnv                string
	EscrowReleaseDelay    time.Duration
	AffiliateReleaseDelay time.Duration
	ReleasePollInterval   time.Duration
	SessionOffset         time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		DBUrl:                 getEnv("DB_URL", ""),
		JWTSecret:             jwtSecret,
		AppEnv:                normalizeEnv(getEnv("APP_ENV", "production")),
		EscrowReleaseDelay:    time.Duration(getEnvInt("ESCROW_RELEASE_DELAY_HOURS", 72)) * time.Hour,
		AffiliateReleaseDelay: time.Duration(getEnvInt("AFFILIATE_RELEASE_DELAY_HOURS", 168)) * time.Hour,
		ReleasePollInterval:   time.Duration(getEnvInt("RELEASE_POLL_INTERVAL_SECONDS", 60)) * time.Second,
		SessionOffset:         time.Duration(getEnvInt("ONE_TO_ONE_SESSION_OFFSET_MINUTES", 0)) * time.Minute,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
