package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/flashscan/internal/blob/s3"
	"github.com/alanyoungcy/flashscan/internal/bus"
	"github.com/alanyoungcy/flashscan/internal/cache/redis"
	"github.com/alanyoungcy/flashscan/internal/config"
	"github.com/alanyoungcy/flashscan/internal/domain"
	"github.com/alanyoungcy/flashscan/internal/executor"
	"github.com/alanyoungcy/flashscan/internal/flash"
	"github.com/alanyoungcy/flashscan/internal/market"
	"github.com/alanyoungcy/flashscan/internal/notify"
	"github.com/alanyoungcy/flashscan/internal/platform/polymarket"
	"github.com/alanyoungcy/flashscan/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. Optional backends
// (Redis, Postgres, S3) stay nil when disabled; the consumers check before
// using them.
type Dependencies struct {
	Bus *bus.Bus

	WS     *polymarket.WSClient
	Poller *polymarket.Poller

	Markets   *market.Store
	ArbEngine *market.Engine

	Flash  *flash.Orchestrator
	Trader domain.TradeExecutor

	PriceCache       domain.PriceCache
	OpportunityCache domain.OpportunityCache
	SignalBus        domain.SignalBus

	FlashStore       domain.FlashRecordStore
	OpportunityStore domain.OpportunityStore
	Archiver         *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency graph from the configuration. The
// returned cleanup function releases backends in reverse order and must be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	eventBus := bus.New(logger)
	closers = append(closers, eventBus.Close)
	deps.Bus = eventBus

	// Postgres persists flash records and opportunities; both stores double
	// as pruners for the archiver.
	var flashPrune, oppPrune s3blob.Pruner
	if cfg.Postgres.Enabled {
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
		flashStore := postgres.NewFlashStore(pool)
		oppStore := postgres.NewOpportunityStore(pool)
		deps.FlashStore = flashStore
		deps.OpportunityStore = oppStore
		flashPrune = flashStore
		oppPrune = oppStore
	}

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

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.OpportunityCache = redis.NewOpportunityCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if deps.FlashStore != nil && deps.OpportunityStore != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				deps.FlashStore, flashPrune,
				deps.OpportunityStore, oppPrune,
				logger,
			)
		} else {
			logger.Warn("s3 enabled without postgres, archiver disabled")
		}
	}

	switch cfg.Executor.Kind {
	case "live":
		deps.Trader = polymarket.NewClobExecutor(
			cfg.Polymarket.ClobHost,
			cfg.Executor.ApiKey,
			cfg.Executor.ApiSecret,
			cfg.Executor.ApiPassphrase,
			logger,
		)
	default:
		deps.Trader = executor.NewPaper(cfg.Executor.PaperSlippage, logger)
	}

	deps.WS = polymarket.NewWSClient(polymarket.WSConfig{
		URL:               cfg.Polymarket.WsHost,
		HeartbeatInterval: cfg.Feed.HeartbeatInterval.Duration,
		ReconnectBase:     cfg.Feed.ReconnectBase.Duration,
		ReconnectMax:      cfg.Feed.ReconnectMax.Duration,
		MaxReconnects:     cfg.Feed.MaxReconnects,
		Logger:            logger,
	})

	deps.Markets = market.NewStore(logger)
	detector := market.NewDetector(market.DetectorConfig{
		MinROIPercent:       cfg.Arbitrage.MinROIPercent,
		MinROIPercentCrypto: cfg.Arbitrage.MinROIPercentCrypto,
		HysteresisPP:        cfg.Arbitrage.HysteresisPP,
		MaxAge:              cfg.Arbitrage.MaxAge.Duration,
	}, eventBus, logger)
	deps.ArbEngine = market.NewEngine(deps.Markets, detector, deps.WS, logger)

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Poller = polymarket.NewPoller(
		gamma,
		cfg.Feed.PollInterval.Duration,
		cfg.Feed.PollBatchSize,
		cfg.Feed.PollBatchDelay.Duration,
		func(m polymarket.APIMarket) {
			deps.ArbEngine.HandleMeta(m.ConditionID, m.Question, m.Slug, m.Image, m.TokenIDs(), m.OutcomeLabels())
		},
		logger,
	)

	if cfg.Flash.Enabled {
		flashDetector := flash.NewDetector(flash.DetectorConfig{
			WindowSize:        cfg.Flash.WindowSize,
			VelocityThreshold: cfg.Flash.VelocityThreshold,
			Cooldown:          cfg.Flash.Cooldown.Duration,
		}, logger)
		engine := flash.NewExecutionEngine(deps.Trader, eventBus, logger)
		riskMgr := flash.NewRiskManager(flash.RiskConfig{
			BasePositionSize:   cfg.Flash.BasePositionSize,
			MinPositionSize:    cfg.Flash.MinPositionSize,
			MaxSlippagePercent: cfg.Flash.MaxSlippagePercent,
			MaxConcurrent:      cfg.Flash.MaxConcurrent,
			VolatilityKill:     cfg.Flash.VolatilityKill,
			PreferredStrategy:  domain.ExecutionStrategy(cfg.Flash.PreferredStrategy),
		}, engine, logger)
		deps.Flash = flash.NewOrchestrator(
			flashDetector, riskMgr, engine,
			deps.Markets, deps.FlashStore, eventBus, logger,
		)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// archiveRetention converts the configured retention in days into a
// duration, defaulting to 30 days.
func archiveRetention(cfg *config.Config) time.Duration {
	days := cfg.S3.RetentionDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
