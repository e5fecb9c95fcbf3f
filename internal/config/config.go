// Package config defines the top-level configuration for flashscan and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLASHSCAN_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Feed       FeedConfig       `toml:"feed"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Flash      FlashConfig      `toml:"flash"`
	Executor   ExecutorConfig   `toml:"executor"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
}

// FeedConfig holds connection-manager tuning: heartbeat cadence, reconnect
// backoff bounds, and the REST polling fallback.
type FeedConfig struct {
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	ReconnectBase     duration `toml:"reconnect_base"`
	ReconnectMax      duration `toml:"reconnect_max"`
	MaxReconnects     int      `toml:"max_reconnects"`
	PollInterval      duration `toml:"poll_interval"`
	PollBatchSize     int      `toml:"poll_batch_size"`
	PollBatchDelay    duration `toml:"poll_batch_delay"`
}

// ArbitrageConfig holds multi-leg arbitrage detector thresholds.
type ArbitrageConfig struct {
	// MinROIPercent is the minimum return required for non-crypto markets.
	MinROIPercent float64 `toml:"min_roi_percent"`
	// MinROIPercentCrypto accepts thinner edges on crypto-flavored markets.
	MinROIPercentCrypto float64 `toml:"min_roi_percent_crypto"`
	// HysteresisPP is the ROI improvement (percentage points) required to
	// replace a live opportunity.
	HysteresisPP float64 `toml:"hysteresis_pp"`
	// MaxAge bounds how old an opportunity may be when read back.
	MaxAge duration `toml:"max_age"`
}

// FlashConfig holds flash-move detection and risk parameters. Detection
// thresholds are configuration, not constants: the right values differ per
// market regime.
type FlashConfig struct {
	Enabled           bool     `toml:"enabled"`
	WindowSize        int      `toml:"window_size"`
	VelocityThreshold float64  `toml:"velocity_threshold"`
	Cooldown          duration `toml:"cooldown"`

	BasePositionSize   float64 `toml:"base_position_size"`
	MinPositionSize    float64 `toml:"min_position_size"`
	MaxSlippagePercent float64 `toml:"max_slippage_percent"`
	MaxConcurrent      int     `toml:"max_concurrent"`
	VolatilityKill     bool    `toml:"volatility_kill"`
	// PreferredStrategy, when set to "aggressive" or "conservative",
	// overrides the per-event recommendation.
	PreferredStrategy string `toml:"preferred_strategy"`
}

// ExecutorConfig selects and tunes the trade executor collaborator.
type ExecutorConfig struct {
	// Kind is "paper" (simulated fills) or "live" (CLOB REST).
	Kind          string  `toml:"kind"`
	ApiKey        string  `toml:"api_key"`
	ApiSecret     string  `toml:"api_secret"`
	ApiPassphrase string  `toml:"api_passphrase"`
	PaperSlippage float64 `toml:"paper_slippage"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// S3Config holds S3-compatible object storage parameters for cold-storage
// archival.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	ForcePathStyle bool     `toml:"force_path_style"`
	RetentionDays  int      `toml:"retention_days"`
	Interval       duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults for every
// tunable. The TOML file and env overrides are layered on top.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Feed: FeedConfig{
			HeartbeatInterval: duration{10 * time.Second},
			ReconnectBase:     duration{time.Second},
			ReconnectMax:      duration{30 * time.Second},
			MaxReconnects:     10,
			PollInterval:      duration{time.Minute},
			PollBatchSize:     20,
			PollBatchDelay:    duration{500 * time.Millisecond},
		},
		Arbitrage: ArbitrageConfig{
			MinROIPercent:       0.4,
			MinROIPercentCrypto: 0.25,
			HysteresisPP:        0.1,
			MaxAge:              duration{120 * time.Second},
		},
		Flash: FlashConfig{
			Enabled:            true,
			WindowSize:         12,
			VelocityThreshold:  0.03,
			Cooldown:           duration{15 * time.Second},
			BasePositionSize:   100,
			MinPositionSize:    10,
			MaxSlippagePercent: 3,
			MaxConcurrent:      5,
			VolatilityKill:     true,
		},
		Executor: ExecutorConfig{
			Kind:          "paper",
			PaperSlippage: 0.002,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		S3: S3Config{
			Region:        "us-east-1",
			RetentionDays: 30,
			Interval:      duration{6 * time.Hour},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes lists the supported run modes.
var validModes = map[string]bool{
	"scan":  true, // arbitrage detection only
	"flash": true, // flash-move pipeline only
	"full":  true, // both
}

// Validate checks the configuration for internal consistency. It returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	if !validModes[c.Mode] {
		return fmt.Errorf("config: unknown mode %q (want scan, flash, or full)", c.Mode)
	}

	if strings.TrimSpace(c.Polymarket.WsHost) == "" {
		return fmt.Errorf("config: polymarket.ws_host is required")
	}
	if strings.TrimSpace(c.Polymarket.GammaHost) == "" {
		return fmt.Errorf("config: polymarket.gamma_host is required")
	}

	if c.Feed.MaxReconnects <= 0 {
		return fmt.Errorf("config: feed.max_reconnects must be positive")
	}
	if c.Feed.ReconnectBase.Duration <= 0 || c.Feed.ReconnectMax.Duration < c.Feed.ReconnectBase.Duration {
		return fmt.Errorf("config: feed reconnect delays are inconsistent")
	}

	if c.Arbitrage.MinROIPercent <= 0 || c.Arbitrage.MinROIPercentCrypto <= 0 {
		return fmt.Errorf("config: arbitrage min ROI thresholds must be positive")
	}
	if c.Arbitrage.MaxAge.Duration <= 0 {
		return fmt.Errorf("config: arbitrage.max_age must be positive")
	}

	if c.Flash.WindowSize < 3 {
		return fmt.Errorf("config: flash.window_size must be at least 3")
	}
	if c.Flash.VelocityThreshold <= 0 {
		return fmt.Errorf("config: flash.velocity_threshold must be positive")
	}
	if c.Flash.BasePositionSize < c.Flash.MinPositionSize {
		return fmt.Errorf("config: flash.base_position_size below the minimum size floor")
	}
	if c.Flash.MaxConcurrent <= 0 {
		return fmt.Errorf("config: flash.max_concurrent must be positive")
	}
	switch c.Flash.PreferredStrategy {
	case "", "aggressive", "conservative", "adaptive":
	default:
		return fmt.Errorf("config: flash.preferred_strategy %q is not a known strategy", c.Flash.PreferredStrategy)
	}

	switch c.Executor.Kind {
	case "paper":
	case "live":
		if c.Executor.ApiKey == "" || c.Executor.ApiSecret == "" {
			return fmt.Errorf("config: live executor requires api_key and api_secret")
		}
	default:
		return fmt.Errorf("config: executor.kind %q is not supported (want paper or live)", c.Executor.Kind)
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres enabled but neither dsn nor host is set")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3 enabled but bucket is empty")
	}

	return nil
}
