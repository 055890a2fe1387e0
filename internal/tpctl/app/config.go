package app

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/httpx"
	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded by LoadConfig when no other file is named.
const DefaultEnvFile = ".env"

type Config struct {
	ClientID     string // Required: OAuth2 client ID
	ClientSecret string // Required: OAuth2 client secret

	BaseURL   string                // API root (default: tpsdk.DefaultBaseURL)
	TokenURL  string                // Token endpoint (default: tpsdk.DefaultTokenURL)
	Timeout   time.Duration         // Per-request timeout (default: 30s)
	RateLimit httpx.RateLimitConfig // Outbound throttle (default: off)

	Env       string // Environment (dev, staging, prod) (default: prod)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

// LoadConfig reads the configuration from the environment. envFile, if it
// exists, is loaded first; variables already set in the environment win.
func LoadConfig(envFile string) (Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	return Config{
		ClientID:     os.Getenv("PROOFPOINT_CLIENT_ID"),
		ClientSecret: os.Getenv("PROOFPOINT_CLIENT_SECRET"),
		BaseURL:      getEnvOrDefault("PROOFPOINT_BASE_URL", tpsdk.DefaultBaseURL),
		TokenURL:     getEnvOrDefault("PROOFPOINT_TOKEN_URL", tpsdk.DefaultTokenURL),
		Timeout:      getEnvDurationOrDefault("PROOFPOINT_TIMEOUT", tpsdk.DefaultTimeout),
		RateLimit:    httpx.ParseRateLimitFromEnv("PROOFPOINT", httpx.RateLimitConfig{}),
		Env:          getEnvOrDefault("ENV", "prod"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "text"),
	}, nil
}

// Validate checks the configuration before any client is built.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required.Error("PROOFPOINT_CLIENT_ID is required")),
		validation.Field(&c.ClientSecret, validation.Required.Error("PROOFPOINT_CLIENT_SECRET is required")),
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.TokenURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("json", "text")),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "30s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
