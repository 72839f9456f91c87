package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wagerhouse/bookd/internal/auth"
	s3blob "github.com/wagerhouse/bookd/internal/blob/s3"
	"github.com/wagerhouse/bookd/internal/cache/redis"
	"github.com/wagerhouse/bookd/internal/config"
	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/metrics"
	"github.com/wagerhouse/bookd/internal/notify"
	"github.com/wagerhouse/bookd/internal/store/postgres"
	"github.com/wagerhouse/bookd/internal/treasury"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	PositionStore domain.PositionStore
	LimitStore    domain.LimitStore
	AuditStore    domain.AuditStore

	// Caches and coordination
	OddsCache   domain.OddsCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	Reports    *s3blob.ReportWriter
	Archiver   domain.Archiver

	// In-process accounting state
	Vault   *treasury.Vault
	Keyring *auth.Keyring

	// Observability and notifications
	Metrics  *metrics.Metrics
	Notifier *notify.Notifier
}

// needsRedis returns true for modes that require the cache and pub/sub
// layer. The archive mode talks only to Postgres and S3.
func needsRedis(mode string) bool {
	return mode == "serve"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Mode == "archive" && !cfg.S3.Enabled {
		return nil, nil, fmt.Errorf("wire: archive mode requires s3.enabled")
	}

	deps := &Dependencies{}

	// --- PostgreSQL (both modes persist through it) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	// Run migrations if enabled.
	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.LimitStore = postgres.NewLimitStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis (serve mode only) ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.OddsCache = redis.NewOddsCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (settlement reports and archive exports) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		writer := s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Reports = s3blob.NewReportWriter(writer)
		deps.Archiver = s3blob.NewArchiver(
			writer,
			deps.MarketStore,
			deps.PositionStore,
			deps.AuditStore,
		)
	}

	// --- In-process token vault and API keyring ---
	deps.Vault = treasury.NewVault(cfg.Treasury.OpeningPool)
	deps.Keyring = auth.NewKeyring(
		cfg.Auth.AdminKeyHash,
		cfg.Auth.OddsKeyHash,
		cfg.Auth.ResultsKeyHash,
	)

	// --- Metrics ---
	deps.Metrics = metrics.New()
	deps.Metrics.UpdatePoolBalance(deps.Vault.Pool())

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
