package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BOOKD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BOOKD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOOKD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOOKD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOOKD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOOKD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOOKD_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "BOOKD_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "BOOKD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOOKD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOOKD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BOOKD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BOOKD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BOOKD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOOKD_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOOKD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOOKD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOOKD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOOKD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOOKD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOOKD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BOOKD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOOKD_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.BetRateLimit, "BOOKD_SERVER_BET_RATE_LIMIT")
	setDuration(&cfg.Server.BetRateWindow, "BOOKD_SERVER_BET_RATE_WINDOW")

	// ── Auth ──
	setStr(&cfg.Auth.AdminKeyHash, "BOOKD_AUTH_ADMIN_KEY_HASH")
	setStr(&cfg.Auth.OddsKeyHash, "BOOKD_AUTH_ODDS_KEY_HASH")
	setStr(&cfg.Auth.ResultsKeyHash, "BOOKD_AUTH_RESULTS_KEY_HASH")

	// ── Engine ──
	setStr(&cfg.Engine.PushPolicy, "BOOKD_ENGINE_PUSH_POLICY")
	setInt64(&cfg.Engine.MaxStake, "BOOKD_ENGINE_MAX_STAKE")
	setInt64(&cfg.Engine.DefaultGlobalMax, "BOOKD_ENGINE_DEFAULT_GLOBAL_MAX")
	setInt64(&cfg.Engine.DefaultSlotMax, "BOOKD_ENGINE_DEFAULT_SLOT_MAX")

	// ── Treasury ──
	setInt64(&cfg.Treasury.OpeningPool, "BOOKD_TREASURY_OPENING_POOL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BOOKD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BOOKD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BOOKD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BOOKD_NOTIFY_EVENTS")
	setInt64(&cfg.Notify.LargeBetThreshold, "BOOKD_NOTIFY_LARGE_BET_THRESHOLD")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "BOOKD_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKD_MODE")
	setStr(&cfg.LogLevel, "BOOKD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
