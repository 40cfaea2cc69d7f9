// Package config loads paywalld settings: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr      string   `yaml:"addr"`
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format"`
	Languages []string `yaml:"languages"`
}

type Database struct {
	URL      string `yaml:"url"`
	Schema   string `yaml:"schema"`
	MaxConns int32  `yaml:"max_conns"`
}

type Session struct {
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWKSURL   string        `yaml:"jwks_url"`
	Skew      time.Duration `yaml:"skew"`
}

type Paywall struct {
	PlanPath       string        `yaml:"plan_path"`
	GateTTL        time.Duration `yaml:"gate_ttl"`
	SourceCacheTTL time.Duration `yaml:"source_cache_ttl"`
	GrantWindow    time.Duration `yaml:"grant_window"`
}

type MercadoPago struct {
	AccessToken     string `yaml:"access_token"`
	BaseURL         string `yaml:"base_url"`
	NotificationURL string `yaml:"notification_url"`
	ReturnURLWeb    string `yaml:"return_url_web"`
	ReturnURLApp    string `yaml:"return_url_app"`
}

type Jobs struct {
	Enabled         bool   `yaml:"enabled"`
	MaxWorkers      int    `yaml:"max_workers"`
	RenewalSchedule string `yaml:"renewal_schedule"`
	RenewalLimit    int    `yaml:"renewal_limit"`
}

type Limit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	Server      Server           `yaml:"server"`
	Database    Database         `yaml:"database"`
	RedisURL    string           `yaml:"redis_url"`
	Session     Session          `yaml:"session"`
	Paywall     Paywall          `yaml:"paywall"`
	MercadoPago MercadoPago      `yaml:"mercadopago"`
	Jobs        Jobs             `yaml:"jobs"`
	RateLimits  map[string]Limit `yaml:"rate_limits"`
}

func Defaults() Config {
	return Config{
		Server: Server{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "json",
			Languages: []string{"es", "en"},
		},
		Database: Database{Schema: "public", MaxConns: 10},
		Session:  Session{Audience: "authenticated", Skew: 30 * time.Second},
		Paywall: Paywall{
			PlanPath:       "/mi-plan",
			GateTTL:        12 * time.Hour,
			SourceCacheTTL: time.Minute,
			GrantWindow:    30 * 24 * time.Hour,
		},
		Jobs: Jobs{Enabled: true, MaxWorkers: 10, RenewalSchedule: "0 6 * * *", RenewalLimit: 500},
		RateLimits: map[string]Limit{
			"default":         {Limit: 100, Window: time.Minute},
			"kv_redeem":       {Limit: 5, Window: 15 * time.Minute},
			"checkout_create": {Limit: 10, Window: time.Minute},
			"webhook":         {Limit: 300, Window: time.Minute},
		},
	}
}

// Load resolves configuration: defaults -> file (if path exists) -> env.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Server.Addr = envOrDefault("PAYWALL_ADDR", c.Server.Addr)
	c.Server.LogLevel = envOrDefault("PAYWALL_LOG_LEVEL", c.Server.LogLevel)
	c.Server.LogFormat = envOrDefault("PAYWALL_LOG_FORMAT", c.Server.LogFormat)
	c.Server.Languages = envCSV("PAYWALL_LANGUAGES", c.Server.Languages)

	c.Database.URL = envOrDefault("DATABASE_URL", c.Database.URL)
	c.Database.Schema = envOrDefault("PAYWALL_DB_SCHEMA", c.Database.Schema)
	c.Database.MaxConns = int32(envInt("PAYWALL_DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.RedisURL = envOrDefault("REDIS_URL", c.RedisURL)

	c.Session.Issuer = envOrDefault("PAYWALL_JWT_ISSUER", c.Session.Issuer)
	c.Session.Audience = envOrDefault("PAYWALL_JWT_AUDIENCE", c.Session.Audience)
	c.Session.JWTSecret = envOrDefault("SUPABASE_JWT_SECRET", c.Session.JWTSecret)
	c.Session.JWKSURL = envOrDefault("SUPABASE_JWKS_URL", c.Session.JWKSURL)

	c.Paywall.PlanPath = envOrDefault("PAYWALL_PLAN_PATH", c.Paywall.PlanPath)
	c.Paywall.GateTTL = envDuration("PAYWALL_GATE_TTL", c.Paywall.GateTTL)
	c.Paywall.SourceCacheTTL = envDuration("PAYWALL_SOURCE_CACHE_TTL", c.Paywall.SourceCacheTTL)
	c.Paywall.GrantWindow = envDuration("PAYWALL_GRANT_WINDOW", c.Paywall.GrantWindow)

	c.MercadoPago.AccessToken = envOrDefault("MP_ACCESS_TOKEN", c.MercadoPago.AccessToken)
	c.MercadoPago.BaseURL = envOrDefault("MP_BASE_URL", c.MercadoPago.BaseURL)
	c.MercadoPago.NotificationURL = envOrDefault("MP_NOTIFICATION_URL", c.MercadoPago.NotificationURL)
	c.MercadoPago.ReturnURLWeb = envOrDefault("MP_RETURN_URL_WEB", c.MercadoPago.ReturnURLWeb)
	c.MercadoPago.ReturnURLApp = envOrDefault("MP_RETURN_URL_APP", c.MercadoPago.ReturnURLApp)

	c.Jobs.Enabled = envBool("PAYWALL_JOBS_ENABLED", c.Jobs.Enabled)
	c.Jobs.MaxWorkers = envInt("PAYWALL_JOBS_MAX_WORKERS", c.Jobs.MaxWorkers)
	c.Jobs.RenewalSchedule = envOrDefault("PAYWALL_RENEWAL_SCHEDULE", c.Jobs.RenewalSchedule)
}

var reIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Session.JWTSecret == "" && c.Session.JWKSURL == "" {
		return errors.New("config: session.jwt_secret or session.jwks_url is required")
	}
	// the schema is interpolated into SQL
	if !reIdent.MatchString(c.Database.Schema) {
		return fmt.Errorf("config: invalid database schema %q", c.Database.Schema)
	}
	for name, l := range c.RateLimits {
		if l.Limit <= 0 || l.Window <= 0 {
			return fmt.Errorf("config: rate limit %q needs a positive limit and window", name)
		}
	}
	return nil
}

// PaymentsEnabled reports whether a Mercado Pago token is configured.
func (c Config) PaymentsEnabled() bool { return c.MercadoPago.AccessToken != "" }

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
