// Package config defines the top-level configuration for the spike
// trading bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYBRAIN_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Api        ApiConfig        `toml:"api"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Trading    TradingConfig    `toml:"trading"`
	Whales     WhalesConfig     `toml:"whales"`
	Advisor    AdvisorConfig    `toml:"advisor"`
	Archive    ArchiveConfig    `toml:"archive"`
	Feed       FeedConfig       `toml:"feed"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
	ChainID   int    `toml:"chain_id"`
}

// ApiConfig holds the HMAC credentials for authenticated CLOB requests.
type ApiConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Passphrase string `toml:"passphrase"`
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

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TradingConfig holds spike detection and position management parameters.
type TradingConfig struct {
	PollInterval         duration `toml:"poll_interval"`
	MarketLimit          int      `toml:"market_limit"`
	PriceSpikeThreshold  float64  `toml:"price_spike_threshold"`  // fractional, e.g. 0.015
	VolumeSpikeThreshold float64  `toml:"volume_spike_threshold"` // ratio, e.g. 1.5
	MinLiquidity         float64  `toml:"min_liquidity"`
	MaxPositions         int      `toml:"max_positions"`
	MaxPositionSize      float64  `toml:"max_position_size"`
	MinProfitPct         float64  `toml:"min_profit_pct"` // take-profit, e.g. 2.0
	MaxLossPct           float64  `toml:"max_loss_pct"`   // stop-loss, e.g. -5.0
	SummaryEvery         int      `toml:"summary_every"`  // cycles between portfolio summaries
	AlertCooldown        duration `toml:"alert_cooldown"` // per-market alert suppression window
	DryRun               bool     `toml:"dry_run"`
}

// WhalesConfig holds leaderboard copy-trading sync parameters.
type WhalesConfig struct {
	Enabled          bool     `toml:"enabled"`
	SyncInterval     duration `toml:"sync_interval"`
	LeaderboardLimit int      `toml:"leaderboard_limit"`
	MovesPerTrader   int      `toml:"moves_per_trader"`
	MinMoveUSD       float64  `toml:"min_move_usd"` // alert floor; 0 disables move alerts
}

// AdvisorConfig holds the optional LLM advisor endpoint.
type AdvisorConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// ArchiveConfig holds cold-storage archiving parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
	Prefix        string   `toml:"prefix"`
}

// FeedConfig holds websocket price feed parameters.
type FeedConfig struct {
	Enabled    bool     `toml:"enabled"`
	StaleAfter duration `toml:"stale_after"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
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
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:   137,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
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
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polybrain-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Trading: TradingConfig{
			PollInterval:         duration{1 * time.Second},
			MarketLimit:          50,
			PriceSpikeThreshold:  0.015,
			VolumeSpikeThreshold: 1.5,
			MinLiquidity:         1000,
			MaxPositions:         5,
			MaxPositionSize:      100,
			MinProfitPct:         2.0,
			MaxLossPct:           -5.0,
			SummaryEvery:         10,
			AlertCooldown:        duration{60 * time.Second},
			DryRun:               false,
		},
		Whales: WhalesConfig{
			Enabled:          false,
			SyncInterval:     duration{1 * time.Hour},
			LeaderboardLimit: 20,
			MovesPerTrader:   25,
			MinMoveUSD:       10_000,
		},
		Advisor: AdvisorConfig{
			Enabled: false,
			BaseURL: "https://api.gigabrain.gg",
			Model:   "gigabrain-1",
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
			Prefix:        "archive",
		},
		Feed: FeedConfig{
			Enabled:    true,
			StaleAfter: duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"spike", "entry", "exit", "summary", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"whales":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, whales)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — a credential source is required when orders are actually sent.
	if c.Mode == "trade" && !c.Trading.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for live trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Api — all three fields must be set together, or all empty.
	ak := c.Api.Key != ""
	as := c.Api.Secret != ""
	ap := c.Api.Passphrase != ""
	if ak || as || ap {
		if !(ak && as && ap) {
			errs = append(errs, "api: key, secret, and passphrase must all be set together")
		}
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

	// S3 — only needed when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Trading
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0")
	}
	if c.Trading.MarketLimit < 1 {
		errs = append(errs, "trading: market_limit must be >= 1")
	}
	if c.Trading.PriceSpikeThreshold <= 0 || c.Trading.PriceSpikeThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("trading: price_spike_threshold must be in (0,1), got %v", c.Trading.PriceSpikeThreshold))
	}
	if c.Trading.VolumeSpikeThreshold <= 1 {
		errs = append(errs, "trading: volume_spike_threshold must be > 1")
	}
	if c.Trading.MinLiquidity < 0 {
		errs = append(errs, "trading: min_liquidity must be >= 0")
	}
	if c.Trading.MaxPositions < 1 {
		errs = append(errs, "trading: max_positions must be >= 1")
	}
	if c.Trading.MaxPositionSize <= 0 {
		errs = append(errs, "trading: max_position_size must be > 0")
	}
	if c.Trading.MinProfitPct <= 0 {
		errs = append(errs, "trading: min_profit_pct must be > 0")
	}
	if c.Trading.MaxLossPct >= 0 {
		errs = append(errs, "trading: max_loss_pct must be < 0")
	}
	if c.Trading.SummaryEvery < 1 {
		errs = append(errs, "trading: summary_every must be >= 1")
	}

	// Whales
	if c.Whales.Enabled {
		if c.Whales.SyncInterval.Duration <= 0 {
			errs = append(errs, "whales: sync_interval must be > 0 when enabled")
		}
		if c.Whales.LeaderboardLimit < 1 {
			errs = append(errs, "whales: leaderboard_limit must be >= 1")
		}
	}

	// Advisor
	if c.Advisor.Enabled {
		if c.Advisor.BaseURL == "" {
			errs = append(errs, "advisor: base_url must not be empty when enabled")
		}
		if c.Advisor.ApiKey == "" {
			errs = append(errs, "advisor: api_key is required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
