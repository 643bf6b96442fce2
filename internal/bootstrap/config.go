package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sidesa/desa-admin/config"
)

// InitLogger initializes the structured logger at the given level.
func InitLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and that the
// selected modes have the settings they need.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	switch cfg.Identity.Mode {
	case config.IdentityModeOIDC:
		if cfg.Identity.OIDC.IssuerURL == "" {
			return errors.New("IDENTITY_MODE=oidc requires OIDC_ISSUER_URL")
		}
	case config.IdentityModeDev:
		if !cfg.IsDev {
			return errors.New("IDENTITY_MODE=dev is only allowed with DEV=true")
		}
	default:
		if cfg.Identity.BaseURL == "" {
			return errors.New("IDENTITY_BASE_URL is required")
		}
	}
	return nil
}

// GetEnabledServices returns a sorted list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for svc := range services {
		enabled = append(enabled, string(svc))
	}
	sort.Strings(enabled)
	return enabled
}

// NeedsRedis reports whether any configured component talks to Redis.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg.TokenStore.Mode == config.TokenStoreRedis ||
		cfg.Session.Store == config.SessionStoreRedis ||
		(cfg.IsRelayEnabled() && cfg.Notify.Transport == config.NotifyTransportRedis)
}

// NeedsDB reports whether the notification journal database is used.
func NeedsDB(cfg *config.AppConfig) bool {
	return cfg.Journal.Enabled
}
