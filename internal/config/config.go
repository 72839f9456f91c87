// Package config defines the top-level configuration for bookd and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BOOKD_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Engine   EngineConfig   `toml:"engine"`
	Treasury TreasuryConfig `toml:"treasury"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. Settlement
// reports and archive exports are skipped entirely when Enabled is false.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// BetRateLimit caps bet submissions per bettor address within
	// BetRateWindow. Zero disables rate limiting.
	BetRateLimit  int      `toml:"bet_rate_limit"`
	BetRateWindow duration `toml:"bet_rate_window"`
}

// AuthConfig holds PBKDF2 hashes of the role API keys. An empty hash
// leaves that role's endpoints unauthenticated, which is only sensible
// for local development.
type AuthConfig struct {
	AdminKeyHash   string `toml:"admin_key_hash"`
	OddsKeyHash    string `toml:"odds_key_hash"`
	ResultsKeyHash string `toml:"results_key_hash"`
}

// EngineConfig holds the accounting defaults applied to newly created
// markets. Amounts are in minor token units, odds in milli-units.
type EngineConfig struct {
	// PushPolicy decides spread/total bets that land exactly on the
	// line: "lose" keeps the stake, "refund" returns it.
	PushPolicy       string `toml:"push_policy"`
	MaxStake         int64  `toml:"max_stake"`
	DefaultGlobalMax int64  `toml:"default_global_max"`
	DefaultSlotMax   int64  `toml:"default_slot_max"`
}

// TreasuryConfig holds the in-process token vault parameters.
type TreasuryConfig struct {
	OpeningPool int64 `toml:"opening_pool"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// LargeBetThreshold triggers a "large_bet" notification for stakes
	// at or above this amount. Zero disables the alert.
	LargeBetThreshold int64 `toml:"large_bet_threshold"`
}

// ArchiveConfig holds retention parameters for the archive mode.
type ArchiveConfig struct {
	RetentionDays int `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "bookd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bookd-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:       true,
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			BetRateLimit:  10,
			BetRateWindow: duration{10 * time.Second},
		},
		Engine: EngineConfig{
			PushPolicy:       "lose",
			MaxStake:         1_000_000_000,
			DefaultGlobalMax: 0,
			DefaultSlotMax:   0,
		},
		Treasury: TreasuryConfig{
			OpeningPool: 0,
		},
		Notify: NotifyConfig{
			Events:            []string{"market_settled", "market_cancelled", "large_bet", "limits_changed"},
			LargeBetThreshold: 0,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPushPolicies enumerates the accepted values for Engine.PushPolicy.
var validPushPolicies = map[string]bool{
	"lose":   true,
	"refund": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only checked when report/archive uploads are switched on.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.BetRateLimit < 0 {
			errs = append(errs, "server: bet_rate_limit must be >= 0")
		}
		if c.Server.BetRateLimit > 0 && c.Server.BetRateWindow.Duration <= 0 {
			errs = append(errs, "server: bet_rate_window must be > 0 when bet_rate_limit is set")
		}
	}

	// Engine
	if !validPushPolicies[strings.ToLower(c.Engine.PushPolicy)] {
		errs = append(errs, fmt.Sprintf("engine: unknown push_policy %q (valid: lose, refund)", c.Engine.PushPolicy))
	}
	if c.Engine.MaxStake <= 0 {
		errs = append(errs, "engine: max_stake must be > 0")
	}
	if c.Engine.DefaultGlobalMax < 0 {
		errs = append(errs, "engine: default_global_max must be >= 0")
	}
	if c.Engine.DefaultSlotMax < 0 {
		errs = append(errs, "engine: default_slot_max must be >= 0")
	}

	// Treasury
	if c.Treasury.OpeningPool < 0 {
		errs = append(errs, "treasury: opening_pool must be >= 0")
	}

	// Notify
	if c.Notify.LargeBetThreshold < 0 {
		errs = append(errs, "notify: large_bet_threshold must be >= 0")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Archive
	if c.Mode == "archive" && c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive: retention_days must be >= 1 for archive mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
