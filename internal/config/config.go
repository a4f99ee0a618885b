package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Home-region pricing knobs. Tax is basis points applied after discount.
	HomeTaxBps      int
	HomeCountry     string
	HomeLanguages   []string
	IntlShippingFee int64

	// GeoIP lookup service.
	GeoIPEndpoint string
	GeoIPTimeout  time.Duration
	GeoIPCacheTTL time.Duration

	// Webhook and admin credentials.
	PaymentWebhookSecret string
	AdminToken           string

	IdempotencyTTL  time.Duration
	CatalogCacheTTL time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		HomeTaxBps:      parseInt(k.String("HOME_TAX_BPS"), 1800),
		HomeCountry:     valueOrDefault(strings.ToUpper(strings.TrimSpace(k.String("HOME_COUNTRY"))), "IN"),
		HomeLanguages:   splitAndTrimDefault(k.String("HOME_LANGUAGES"), []string{"hi", "en-IN"}),
		IntlShippingFee: parseInt64(k.String("INTL_SHIPPING_FEE"), 2000),

		GeoIPEndpoint: strings.TrimSpace(k.String("GEOIP_ENDPOINT")),
		GeoIPTimeout:  parseDuration(k.String("GEOIP_TIMEOUT"), "800ms"),
		GeoIPCacheTTL: parseDuration(k.String("GEOIP_CACHE_TTL"), "12h"),

		PaymentWebhookSecret: k.String("PAYMENT_WEBHOOK_SECRET"),
		AdminToken:           k.String("ADMIN_TOKEN"),

		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.HomeTaxBps < 0 || cfg.HomeTaxBps > 10000 {
		return nil, fmt.Errorf("HOME_TAX_BPS out of range: %d", cfg.HomeTaxBps)
	}
	if cfg.IntlShippingFee < 0 {
		return nil, fmt.Errorf("INTL_SHIPPING_FEE must not be negative: %d", cfg.IntlShippingFee)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func splitAndTrimDefault(value string, fallback []string) []string {
	if parsed := splitAndTrim(value); len(parsed) > 0 {
		return parsed
	}
	return fallback
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
