package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ranjan2829/PolyBrain/internal/blob/s3"
	"github.com/ranjan2829/PolyBrain/internal/cache/redis"
	"github.com/ranjan2829/PolyBrain/internal/config"
	"github.com/ranjan2829/PolyBrain/internal/crypto"
	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/notify"
	"github.com/ranjan2829/PolyBrain/internal/platform/polymarket"
	"github.com/ranjan2829/PolyBrain/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Redis-backed hot path
	Snapshots   domain.SnapshotStore
	Ledger      domain.PositionLedger
	Prices      domain.PriceCache
	WhaleCache  domain.WhaleCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    domain.EventBus

	// Durable stores (nil when Postgres is not configured for the mode)
	PositionArchive domain.PositionArchive
	WhaleMoves      domain.WhaleMoveStore

	// Polymarket clients
	Markets  domain.MarketSource
	Exchange domain.ExchangeClient
	DataAPI  *polymarket.DataClient

	// Cold storage (nil unless archiving is enabled)
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
	Alerts   *notify.Alerts
}

// needsPostgres reports whether the mode writes durable history.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "whales":
		return true
	default:
		return false
	}
}

// needsExchange reports whether the mode submits orders.
func needsExchange(cfg *config.Config) bool {
	return cfg.Mode == "trade" && !cfg.Trading.DryRun
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis ---
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

	deps.Snapshots = redis.NewSnapshotStore(redisClient)
	deps.Ledger = redis.NewPositionLedger(redisClient)
	deps.Prices = redis.NewPriceCache(redisClient)
	deps.WhaleCache = redis.NewWhaleCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient)

	// --- PostgreSQL (durable history) ---
	if needsPostgres(cfg.Mode) {
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

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PositionArchive = postgres.NewPositionArchive(pool)
		deps.WhaleMoves = postgres.NewWhaleMoveStore(pool)
	}

	// --- Polymarket clients ---
	deps.Markets = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.DataAPI = polymarket.NewDataClient(cfg.Polymarket.DataHost)

	if needsExchange(cfg) {
		privateKey, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(privateKey, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: create signer: %w", err)
		}

		logger.Info("wallet loaded", slog.String("signer", signer.Address().Hex()))

		var hmacAuth *crypto.HMACAuth
		if cfg.Api.Key != "" {
			hmacAuth = &crypto.HMACAuth{
				Key:        cfg.Api.Key,
				Secret:     cfg.Api.Secret,
				Passphrase: cfg.Api.Passphrase,
			}
		}

		deps.Exchange = polymarket.NewClobClient(
			cfg.Polymarket.ClobHost,
			signer,
			hmacAuth,
			cfg.Wallet.FunderAddress,
		)
	}

	// --- S3 cold storage ---
	if cfg.Archive.Enabled && deps.PositionArchive != nil && deps.WhaleMoves != nil {
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

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.PositionArchive,
			deps.WhaleMoves,
			cfg.Archive.Prefix,
			logger,
		)
	}

	// --- Notifications ---
	senders := []notify.Sender{notify.NewConsoleSender()}
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
	deps.Alerts = notify.NewAlerts(deps.Notifier)

	return deps, cleanup, nil
}
