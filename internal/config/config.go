// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/residuals/internal/ledger"
)

// Config holds every server setting.
type Config struct {
	HTTPPort int
	DBPath   string
	LogLevel string

	Auth   AuthConfig
	Ledger LedgerConfig
	Store  StoreConfig
	Cache  CacheConfig
}

type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	TokenDuration time.Duration
}

// LedgerConfig configures the external ledger. Sync is disabled when BaseURL
// is empty.
type LedgerConfig struct {
	BaseURL    string
	APIKey     string
	BaseID     string
	Table      string
	BatchSize  int
	BatchDelay time.Duration
	Timeout    time.Duration
}

// Enabled reports whether a ledger is configured.
func (c LedgerConfig) Enabled() bool {
	return c.BaseURL != ""
}

type StoreConfig struct {
	PageSize int
}

type CacheConfig struct {
	PartnerTTL  time.Duration
	PartnerSize int
}

// Load reads an optional .env file from the working directory, then the
// environment. Malformed numbers and durations are errors.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		HTTPPort: r.int("HTTP_PORT", 8080),
		DBPath:   r.string("DB_PATH", "./data/residuals.db"),
		LogLevel: r.string("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			Enabled:       r.bool("AUTH_ENABLED", false),
			JWTSecret:     r.string("JWT_SECRET", ""),
			TokenDuration: r.duration("TOKEN_DURATION", 24*time.Hour),
		},
		Ledger: LedgerConfig{
			BaseURL:    strings.TrimRight(r.string("LEDGER_BASE_URL", ""), "/"),
			APIKey:     r.string("LEDGER_API_KEY", ""),
			BaseID:     r.string("LEDGER_BASE_ID", ""),
			Table:      r.string("LEDGER_TABLE", "Payouts"),
			BatchSize:  r.int("LEDGER_BATCH_SIZE", ledger.MaxBatchSize),
			BatchDelay: r.duration("LEDGER_BATCH_DELAY", 250*time.Millisecond),
			Timeout:    r.duration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			PageSize: r.int("STORE_PAGE_SIZE", 1000),
		},
		Cache: CacheConfig{
			PartnerTTL:  r.duration("PARTNER_CACHE_TTL", 5*time.Minute),
			PartnerSize: r.int("PARTNER_CACHE_SIZE", 1024),
		},
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

// Validate rejects impossible settings.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENABLED=true"))
	}
	if c.Auth.TokenDuration <= 0 {
		errs = append(errs, errors.New("TOKEN_DURATION must be positive"))
	}
	if c.Ledger.Enabled() {
		if c.Ledger.BaseID == "" || c.Ledger.Table == "" {
			errs = append(errs, errors.New("LEDGER_BASE_ID and LEDGER_TABLE are required when LEDGER_BASE_URL is set"))
		}
		if c.Ledger.APIKey == "" {
			errs = append(errs, errors.New("LEDGER_API_KEY is required when LEDGER_BASE_URL is set"))
		}
	}
	if c.Ledger.BatchSize <= 0 {
		errs = append(errs, errors.New("LEDGER_BATCH_SIZE must be positive"))
	}
	if c.Ledger.BatchSize > ledger.MaxBatchSize {
		slog.Warn("LEDGER_BATCH_SIZE above the ledger limit, capping", "requested", c.Ledger.BatchSize, "max", ledger.MaxBatchSize)
		c.Ledger.BatchSize = ledger.MaxBatchSize
	}
	if c.Ledger.BatchDelay < 0 {
		errs = append(errs, errors.New("LEDGER_BATCH_DELAY must not be negative"))
	}
	if c.Store.PageSize <= 0 {
		errs = append(errs, errors.New("STORE_PAGE_SIZE must be positive"))
	}
	if c.Cache.PartnerSize <= 0 {
		errs = append(errs, errors.New("PARTNER_CACHE_SIZE must be positive"))
	}
	if c.Cache.PartnerTTL <= 0 {
		errs = append(errs, errors.New("PARTNER_CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) string(key, fallback string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (r *reader) int(key string, fallback int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (r *reader) bool(key string, fallback bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
