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
// built-in defaults, applies POLYBRAIN_* environment variable overrides, and
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

// applyEnvOverrides reads well-known POLYBRAIN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYBRAIN_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "POLYBRAIN_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYBRAIN_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYBRAIN_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYBRAIN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYBRAIN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYBRAIN_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYBRAIN_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYBRAIN_POLYMARKET_CHAIN_ID")

	// ── Api ──
	setStr(&cfg.Api.Key, "POLYBRAIN_API_KEY")
	setStr(&cfg.Api.Secret, "POLYBRAIN_API_SECRET")
	setStr(&cfg.Api.Passphrase, "POLYBRAIN_API_PASSPHRASE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYBRAIN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "POLYBRAIN_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYBRAIN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYBRAIN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYBRAIN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYBRAIN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYBRAIN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYBRAIN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYBRAIN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYBRAIN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYBRAIN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYBRAIN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYBRAIN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYBRAIN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYBRAIN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYBRAIN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYBRAIN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYBRAIN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYBRAIN_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYBRAIN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYBRAIN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYBRAIN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYBRAIN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYBRAIN_S3_FORCE_PATH_STYLE")

	// ── Trading ──
	setDuration(&cfg.Trading.PollInterval, "POLYBRAIN_TRADING_POLL_INTERVAL")
	setInt(&cfg.Trading.MarketLimit, "POLYBRAIN_TRADING_MARKET_LIMIT")
	setFloat64(&cfg.Trading.PriceSpikeThreshold, "POLYBRAIN_TRADING_PRICE_SPIKE_THRESHOLD")
	setFloat64(&cfg.Trading.VolumeSpikeThreshold, "POLYBRAIN_TRADING_VOLUME_SPIKE_THRESHOLD")
	setFloat64(&cfg.Trading.MinLiquidity, "POLYBRAIN_TRADING_MIN_LIQUIDITY")
	setInt(&cfg.Trading.MaxPositions, "POLYBRAIN_TRADING_MAX_POSITIONS")
	setFloat64(&cfg.Trading.MaxPositionSize, "POLYBRAIN_TRADING_MAX_POSITION_SIZE")
	setFloat64(&cfg.Trading.MinProfitPct, "POLYBRAIN_TRADING_MIN_PROFIT_PCT")
	setFloat64(&cfg.Trading.MaxLossPct, "POLYBRAIN_TRADING_MAX_LOSS_PCT")
	setInt(&cfg.Trading.SummaryEvery, "POLYBRAIN_TRADING_SUMMARY_EVERY")
	setDuration(&cfg.Trading.AlertCooldown, "POLYBRAIN_TRADING_ALERT_COOLDOWN")
	setBool(&cfg.Trading.DryRun, "POLYBRAIN_TRADING_DRY_RUN")

	// ── Whales ──
	setBool(&cfg.Whales.Enabled, "POLYBRAIN_WHALES_ENABLED")
	setDuration(&cfg.Whales.SyncInterval, "POLYBRAIN_WHALES_SYNC_INTERVAL")
	setInt(&cfg.Whales.LeaderboardLimit, "POLYBRAIN_WHALES_LEADERBOARD_LIMIT")
	setInt(&cfg.Whales.MovesPerTrader, "POLYBRAIN_WHALES_MOVES_PER_TRADER")

	// ── Advisor ──
	setBool(&cfg.Advisor.Enabled, "POLYBRAIN_ADVISOR_ENABLED")
	setStr(&cfg.Advisor.BaseURL, "POLYBRAIN_ADVISOR_BASE_URL")
	setStr(&cfg.Advisor.ApiKey, "POLYBRAIN_ADVISOR_API_KEY")
	setStr(&cfg.Advisor.Model, "POLYBRAIN_ADVISOR_MODEL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYBRAIN_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "POLYBRAIN_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "POLYBRAIN_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "POLYBRAIN_ARCHIVE_PREFIX")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "POLYBRAIN_FEED_ENABLED")
	setDuration(&cfg.Feed.StaleAfter, "POLYBRAIN_FEED_STALE_AFTER")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYBRAIN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYBRAIN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYBRAIN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYBRAIN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYBRAIN_MODE")
	setStr(&cfg.LogLevel, "POLYBRAIN_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
