package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/blob/s3"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/cache/redis"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/config"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/fanout"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/notify"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/persist"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/server/ws"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/store/postgres"
)

// Dependencies bundles every shared dependency the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// QuoteCache is nil when the Redis hot path is disabled.
	QuoteCache domain.QuoteCache
	// TickStore is the durable tick history.
	TickStore domain.TickStore
	// Archiver is nil when S3 cold storage is disabled.
	Archiver persist.Archiver
	// Fanout is the in-process broadcast set shared by the detection engine
	// and the WebSocket hub.
	Fanout *fanout.Fanout
	// Hub upgrades WebSocket clients and tracks venue statuses.
	Hub *ws.Hub
	// Alerter delivers suggestions to out-of-band channels.
	Alerter *notify.Alerter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL / TimescaleDB ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Timescale.DSN,
		Host:     cfg.Timescale.Host,
		Port:     cfg.Timescale.Port,
		Database: cfg.Timescale.Database,
		User:     cfg.Timescale.User,
		Password: cfg.Timescale.Password,
		SSLMode:  cfg.Timescale.SSLMode,
		MaxConns: cfg.Timescale.PoolMaxConns,
		MinConns: cfg.Timescale.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Timescale.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.TickStore = postgres.NewTickStore(pgClient.Pool())

	// --- Redis hot cache (optional) ---
	if cfg.Redis.Enabled {
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

		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Redis.TTL.Duration)
	}

	// --- S3 cold archive (optional) ---
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

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewTickArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix)
	}

	// --- Broadcast fan-out and WebSocket hub ---
	deps.Fanout = fanout.New(logger)
	deps.Hub = ws.NewHub(deps.Fanout, logger)

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
	deps.Alerter = notify.NewAlerter(senders, cfg.Notify.Types, logger)

	return deps, cleanup, nil
}
