// Package config loads service settings from defaults, an optional TOML file
// and CRM_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalid wraps every validation failure from Load.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr     string `toml:"addr"`      // CRM_ADDR (default ":8080")
	Env      string `toml:"env"`       // CRM_ENV (default "development")
	DBPath   string `toml:"db_path"`   // CRM_DB_PATH (default "coachcrm.db")
	LogLevel string `toml:"log_level"` // CRM_LOG_LEVEL (debug|info|warn|error)
	Demo     bool   `toml:"demo"`      // CRM_DEMO: accept X-Demo-Mode requests
	Trace    bool   `toml:"trace"`     // CRM_TRACE: log orchestrator spans at debug level

	Auth    AuthConfig    `toml:"auth"`
	Cache   CacheConfig   `toml:"cache"`
	Events  EventsConfig  `toml:"events"`
	Mail    MailConfig    `toml:"mail"`
	Session SessionConfig `toml:"session"`
	Perf    PerfConfig    `toml:"perf"`
	Export  ExportConfig  `toml:"export"`
}

type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`   // CRM_JWT_SECRET (HS256 key shared with the auth provider)
	JWTIssuer   string `toml:"jwt_issuer"`   // CRM_JWT_ISSUER (optional)
	JWTAudience string `toml:"jwt_audience"` // CRM_JWT_AUDIENCE (optional)
	CSRFKey     string `toml:"csrf_key"`     // CRM_CSRF_KEY (32 bytes)
}

type CacheConfig struct {
	RedisAddr string        `toml:"redis_addr"` // CRM_REDIS_ADDR (empty = no cache)
	TTL       time.Duration `toml:"ttl"`        // CRM_CACHE_TTL (default 5m)
}

type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // CRM_NATS_URL (empty = no events)
}

type MailConfig struct {
	ResendKey string `toml:"resend_key"` // CRM_RESEND_KEY (empty = log only)
	From      string `toml:"from"`       // CRM_MAIL_FROM
}

type SessionConfig struct {
	TTL           time.Duration `toml:"ttl"`            // CRM_SESSION_TTL (default 30m)
	SweepInterval time.Duration `toml:"sweep_interval"` // CRM_SESSION_SWEEP (default 1m)
}

type PerfConfig struct {
	SlowQuery   time.Duration `toml:"slow_query"`   // CRM_SLOW_QUERY_MS
	SlowRequest time.Duration `toml:"slow_request"` // CRM_SLOW_REQUEST_MS
}

type ExportConfig struct {
	S3Bucket   string `toml:"s3_bucket"`   // CRM_EXPORT_S3_BUCKET
	S3Region   string `toml:"s3_region"`   // CRM_EXPORT_S3_REGION (default "us-east-1")
	S3Endpoint string `toml:"s3_endpoint"` // CRM_EXPORT_S3_ENDPOINT (MinIO and similar)
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Addr:     ":8080",
		Env:      "development",
		DBPath:   "coachcrm.db",
		LogLevel: "info",
		Demo:     true,
		Cache:    CacheConfig{TTL: 5 * time.Minute},
		Mail:     MailConfig{From: "Coach CRM <noreply@coachcrm.app>"},
		Session:  SessionConfig{TTL: 30 * time.Minute, SweepInterval: time.Minute},
		Perf:     PerfConfig{SlowQuery: 50 * time.Millisecond, SlowRequest: 500 * time.Millisecond},
		Export:   ExportConfig{S3Region: "us-east-1"},
	}
}

// Load builds a Config. path may be empty; a missing file named by path is an error.
// PRE: none
// POST: Returned config has passed Validate
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Production reports whether the service runs with production safeguards.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.Auth.CSRFKey != "" && len(c.Auth.CSRFKey) != 32 {
		return fmt.Errorf("%w: csrf_key must be 32 bytes, got %d", ErrInvalid, len(c.Auth.CSRFKey))
	}
	if c.Production() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("%w: CRM_JWT_SECRET is required in production", ErrInvalid)
		}
		if c.Auth.CSRFKey == "" {
			return fmt.Errorf("%w: CRM_CSRF_KEY is required in production", ErrInvalid)
		}
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("%w: session ttl and sweep interval must be positive", ErrInvalid)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Addr = envOrDefault("CRM_ADDR", c.Addr)
	c.Env = envOrDefault("CRM_ENV", c.Env)
	c.DBPath = envOrDefault("CRM_DB_PATH", c.DBPath)
	c.LogLevel = envOrDefault("CRM_LOG_LEVEL", c.LogLevel)
	c.Auth.JWTSecret = envOrDefault("CRM_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = envOrDefault("CRM_JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.JWTAudience = envOrDefault("CRM_JWT_AUDIENCE", c.Auth.JWTAudience)
	c.Auth.CSRFKey = envOrDefault("CRM_CSRF_KEY", c.Auth.CSRFKey)
	c.Cache.RedisAddr = envOrDefault("CRM_REDIS_ADDR", c.Cache.RedisAddr)
	c.Events.NATSURL = envOrDefault("CRM_NATS_URL", c.Events.NATSURL)
	c.Mail.ResendKey = envOrDefault("CRM_RESEND_KEY", c.Mail.ResendKey)
	c.Mail.From = envOrDefault("CRM_MAIL_FROM", c.Mail.From)
	c.Export.S3Bucket = envOrDefault("CRM_EXPORT_S3_BUCKET", c.Export.S3Bucket)
	c.Export.S3Region = envOrDefault("CRM_EXPORT_S3_REGION", c.Export.S3Region)
	c.Export.S3Endpoint = envOrDefault("CRM_EXPORT_S3_ENDPOINT", c.Export.S3Endpoint)

	bools := []struct {
		key string
		dst *bool
	}{
		{"CRM_DEMO", &c.Demo},
		{"CRM_TRACE", &c.Trace},
	}
	for _, b := range bools {
		if v := os.Getenv(b.key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, b.key, err)
			}
			*b.dst = parsed
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CRM_CACHE_TTL", &c.Cache.TTL},
		{"CRM_SESSION_TTL", &c.Session.TTL},
		{"CRM_SESSION_SWEEP", &c.Session.SweepInterval},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, d.key, err)
			}
			*d.dst = parsed
		}
	}

	millis := []struct {
		key string
		dst *time.Duration
	}{
		{"CRM_SLOW_QUERY_MS", &c.Perf.SlowQuery},
		{"CRM_SLOW_REQUEST_MS", &c.Perf.SlowRequest},
	}
	for _, m := range millis {
		if v := os.Getenv(m.key); v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil || ms < 0 {
				return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalid, m.key)
			}
			*m.dst = time.Duration(ms) * time.Millisecond
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
