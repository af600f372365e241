package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string
	EventsAddr string

	ProviderName    string
	ProviderBaseURL string
	ProviderAPIKey  string
	Model           string
	Temperature     float64

	PresetsFile string
	PresetName  string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	MaxInvalidMoves int

	ProviderTimeout time.Duration

	RedisURL    string
	DatabaseURL string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		ProviderName:     "openai",
		Temperature:      0.2,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Second,
		MaxInvalidMoves:  3,
		ProviderTimeout:  60 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.EventsAddr = strings.TrimSpace(os.Getenv("EVENTS_ADDR"))

	if v := strings.TrimSpace(os.Getenv("PROVIDER_NAME")); v != "" {
		cfg.ProviderName = v
	}
	cfg.ProviderBaseURL = strings.TrimSpace(os.Getenv("PROVIDER_BASE_URL"))
	cfg.ProviderAPIKey = strings.TrimSpace(os.Getenv("PROVIDER_API_KEY"))
	cfg.Model = strings.TrimSpace(os.Getenv("PROVIDER_MODEL"))

	if v := strings.TrimSpace(os.Getenv("PROVIDER_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Temperature = f
		}
	}

	cfg.PresetsFile = strings.TrimSpace(os.Getenv("PROVIDER_PRESETS_FILE"))
	cfg.PresetName = strings.TrimSpace(os.Getenv("PROVIDER_PRESET"))

	if v := strings.TrimSpace(os.Getenv("RETRY_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_BASE_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryBaseDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_INVALID_MOVES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInvalidMoves = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROVIDER_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProviderTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	return cfg, nil
}

// ErrProviderNotConfigured is returned when no completion provider can be
// resolved from the environment or a preset. Matches cannot start without one.
var ErrProviderNotConfigured = errors.New("no provider configured: set PROVIDER_BASE_URL and PROVIDER_MODEL or select PROVIDER_PRESET")

// ValidateProvider checks that the resolved configuration names a usable
// provider endpoint and model.
func (c *AppConfig) ValidateProvider() error {
	if strings.TrimSpace(c.ProviderBaseURL) == "" || strings.TrimSpace(c.Model) == "" {
		return ErrProviderNotConfigured
	}
	return nil
}
