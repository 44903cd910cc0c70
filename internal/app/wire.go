package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/krxlab/stockcore/internal/blob/s3"
	"github.com/krxlab/stockcore/internal/cache/redis"
	"github.com/krxlab/stockcore/internal/config"
	"github.com/krxlab/stockcore/internal/domain"
	"github.com/krxlab/stockcore/internal/engine"
	"github.com/krxlab/stockcore/internal/history"
	"github.com/krxlab/stockcore/internal/pipeline"
	"github.com/krxlab/stockcore/internal/store/postgres"
)

// Dependencies bundles everything the application lifecycle needs to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	TradeStore domain.TradeStore

	// Caches
	SignalBus  domain.SignalBus
	PriceCache domain.LastPriceCache

	// Blob storage (nil unless archival is enabled)
	BlobWriter domain.BlobWriter
	Archiver   domain.TradeArchiver

	// Core
	Recorder *history.Recorder
	Registry *engine.Registry

	// Background jobs
	Orchestrator *pipeline.Orchestrator
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

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	tradeStore := postgres.NewTradeStore(pgClient.Pool())
	deps.TradeStore = tradeStore

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

	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.PriceCache = redis.NewLastPriceCache(redisClient)

	// --- S3 (only when trade archival is enabled) ---
	if cfg.Archive.Enabled {
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, tradeStore)
	}

	// --- Core ---
	deps.Recorder = history.NewRecorder(deps.TradeStore, deps.SignalBus, deps.PriceCache, history.Config{
		CandleIntervalSeconds: cfg.Market.CandleIntervalSeconds,
		CandleKeep:            cfg.Market.CandleKeep,
		TradeRingSize:         cfg.Market.TradeRingSize,
		DefaultPrice:          cfg.Market.DefaultPrice,
		JournalBuffer:         cfg.Market.JournalBuffer,
	}, logger)

	deps.Registry = engine.NewRegistry(deps.Recorder, deps.SignalBus, cfg.Market.DepthLevels, logger)

	// Seed chart tracking for the configured watchlist so candle series
	// exist before the first order arrives.
	for _, symbol := range cfg.Market.Symbols {
		deps.Recorder.Track(symbol)
	}

	// --- Background jobs ---
	candleInterval := time.Duration(cfg.Market.CandleIntervalSeconds) * time.Second
	candleTicker := pipeline.NewCandleTicker(deps.Recorder, candleInterval, logger)

	var archiveJob *pipeline.Archiver
	if cfg.Archive.Enabled {
		archiveJob = pipeline.NewArchiver(deps.Archiver, cfg.Archive.RetentionDays, logger)
	}

	deps.Orchestrator = pipeline.NewOrchestrator(deps.Recorder, candleTicker, archiveJob, cfg.Archive.Cron, logger)

	return deps, cleanup, nil
}
