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
// built-in defaults, applies FLASHSCAN_* environment variable overrides, and
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

// applyEnvOverrides reads well-known FLASHSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "FLASHSCAN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "FLASHSCAN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "FLASHSCAN_POLYMARKET_WS_HOST")

	// ── Feed ──
	setDuration(&cfg.Feed.HeartbeatInterval, "FLASHSCAN_FEED_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feed.ReconnectBase, "FLASHSCAN_FEED_RECONNECT_BASE")
	setDuration(&cfg.Feed.ReconnectMax, "FLASHSCAN_FEED_RECONNECT_MAX")
	setInt(&cfg.Feed.MaxReconnects, "FLASHSCAN_FEED_MAX_RECONNECTS")
	setDuration(&cfg.Feed.PollInterval, "FLASHSCAN_FEED_POLL_INTERVAL")
	setInt(&cfg.Feed.PollBatchSize, "FLASHSCAN_FEED_POLL_BATCH_SIZE")
	setDuration(&cfg.Feed.PollBatchDelay, "FLASHSCAN_FEED_POLL_BATCH_DELAY")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinROIPercent, "FLASHSCAN_ARBITRAGE_MIN_ROI_PERCENT")
	setFloat64(&cfg.Arbitrage.MinROIPercentCrypto, "FLASHSCAN_ARBITRAGE_MIN_ROI_PERCENT_CRYPTO")
	setFloat64(&cfg.Arbitrage.HysteresisPP, "FLASHSCAN_ARBITRAGE_HYSTERESIS_PP")
	setDuration(&cfg.Arbitrage.MaxAge, "FLASHSCAN_ARBITRAGE_MAX_AGE")

	// ── Flash ──
	setBool(&cfg.Flash.Enabled, "FLASHSCAN_FLASH_ENABLED")
	setInt(&cfg.Flash.WindowSize, "FLASHSCAN_FLASH_WINDOW_SIZE")
	setFloat64(&cfg.Flash.VelocityThreshold, "FLASHSCAN_FLASH_VELOCITY_THRESHOLD")
	setDuration(&cfg.Flash.Cooldown, "FLASHSCAN_FLASH_COOLDOWN")
	setFloat64(&cfg.Flash.BasePositionSize, "FLASHSCAN_FLASH_BASE_POSITION_SIZE")
	setFloat64(&cfg.Flash.MinPositionSize, "FLASHSCAN_FLASH_MIN_POSITION_SIZE")
	setFloat64(&cfg.Flash.MaxSlippagePercent, "FLASHSCAN_FLASH_MAX_SLIPPAGE_PERCENT")
	setInt(&cfg.Flash.MaxConcurrent, "FLASHSCAN_FLASH_MAX_CONCURRENT")
	setBool(&cfg.Flash.VolatilityKill, "FLASHSCAN_FLASH_VOLATILITY_KILL")
	setStr(&cfg.Flash.PreferredStrategy, "FLASHSCAN_FLASH_PREFERRED_STRATEGY")

	// ── Executor ──
	setStr(&cfg.Executor.Kind, "FLASHSCAN_EXECUTOR_KIND")
	setStr(&cfg.Executor.ApiKey, "FLASHSCAN_EXECUTOR_API_KEY")
	setStr(&cfg.Executor.ApiSecret, "FLASHSCAN_EXECUTOR_API_SECRET")
	setStr(&cfg.Executor.ApiPassphrase, "FLASHSCAN_EXECUTOR_API_PASSPHRASE")
	setFloat64(&cfg.Executor.PaperSlippage, "FLASHSCAN_EXECUTOR_PAPER_SLIPPAGE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLASHSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLASHSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLASHSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLASHSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLASHSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLASHSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLASHSCAN_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "FLASHSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "FLASHSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLASHSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLASHSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLASHSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLASHSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLASHSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLASHSCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLASHSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLASHSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLASHSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLASHSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLASHSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLASHSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLASHSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLASHSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLASHSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "FLASHSCAN_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "FLASHSCAN_S3_RETENTION_DAYS")
	setDuration(&cfg.S3.Interval, "FLASHSCAN_S3_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLASHSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLASHSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLASHSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLASHSCAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLASHSCAN_MODE")
	setStr(&cfg.LogLevel, "FLASHSCAN_LOG_LEVEL")
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
