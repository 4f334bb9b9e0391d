// Package config assembles the collector's runtime configuration from
// environment variables and validates it before anything dials out.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full runtime configuration.
type Config struct {
	// Akamai EdgeGrid credentials.
	AkamaiBaseURL      string `validate:"required,url"`
	AkamaiClientToken  string `validate:"required"`
	AkamaiClientSecret string `validate:"required"`
	AkamaiAccessToken  string `validate:"required"`

	// HyperBilling contract directory.
	HyperBillingURL    string `validate:"required,url"`
	HyperBillingCookie string `validate:"required"`

	// BigQuery destination.
	BigQueryProject   string `validate:"required"`
	BigQueryDataset   string `validate:"required"`
	CredentialsJSON   string
	WebhookURL        string `validate:"omitempty,url"`

	// BillingMonth is the month to collect, YYYY-MM. Defaults to the
	// previous calendar month.
	BillingMonth string `validate:"required,len=7"`

	// Collection tuning.
	RateLimitPerMinute int `validate:"gte=1"`
	Workers            int `validate:"gte=1"`
	ReadinessSamples   int `validate:"gte=1"`

	// Optional infrastructure.
	RedisAddr   string
	CacheTTL    time.Duration
	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AkamaiBaseURL:      os.Getenv("AKAMAI_BASE_URL"),
		AkamaiClientToken:  os.Getenv("AKAMAI_CLIENT_TOKEN"),
		AkamaiClientSecret: os.Getenv("AKAMAI_CLIENT_SECRET"),
		AkamaiAccessToken:  os.Getenv("AKAMAI_ACCESS_TOKEN"),

		HyperBillingURL:    os.Getenv("HYPERBILLING_URL"),
		HyperBillingCookie: os.Getenv("HYPERBILLING_COOKIE"),

		BigQueryProject: os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset: envOr("BIGQUERY_DATASET", "akamai_billing"),
		CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		WebhookURL:      os.Getenv("WEBHOOK_URL"),

		BillingMonth: envOr("BILLING_MONTH", PreviousMonth(time.Now())),

		RateLimitPerMinute: envIntOr("RATE_LIMIT_PER_MINUTE", 100),
		Workers:            envIntOr("WORKERS", 20),
		ReadinessSamples:   envIntOr("READINESS_SAMPLES", 5),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		CacheTTL:    envDurationOr("CACHE_TTL", time.Hour),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := time.Parse("2006-01", cfg.BillingMonth); err != nil {
		return nil, fmt.Errorf("config: BILLING_MONTH %q is not YYYY-MM", cfg.BillingMonth)
	}

	return cfg, nil
}

// NextMonth returns the month after a YYYY-MM month, rolling over the
// year at December. The billing API takes half-open month ranges, so
// most queries need both ends.
func NextMonth(month string) (string, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", fmt.Errorf("config: parse month %q: %w", month, err)
	}
	return t.AddDate(0, 1, 0).Format("2006-01"), nil
}

// PreviousMonth returns the calendar month before now, YYYY-MM.
func PreviousMonth(now time.Time) string {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0).Format("2006-01")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
