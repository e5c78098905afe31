package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/classifier"
	"github.com/crowdpulse/feedback-engine/pkg/config"
	"github.com/crowdpulse/feedback-engine/pkg/database"
	"github.com/crowdpulse/feedback-engine/pkg/handlers"
	"github.com/crowdpulse/feedback-engine/pkg/logging"
	"github.com/crowdpulse/feedback-engine/pkg/middleware"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
	"github.com/crowdpulse/feedback-engine/pkg/retry"
	"github.com/crowdpulse/feedback-engine/pkg/services"
	"github.com/crowdpulse/feedback-engine/pkg/services/pipeline"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.String("classifier", cfg.Classifier.Provider),
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.Bool("stats_cache", cfg.Redis.Host != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Replicas starting together contend for the migrate lock; back off and
	// retry rather than dying on the loser.
	if err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return runMigrations(cfg, logger)
	}); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var statsCache services.StatsCache
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		statsCache = services.NewRedisStatsCache(redisClient, cfg.Redis.StatsTTL, logger)
	}

	clf, err := classifier.New(&cfg.Classifier, logger)
	if err != nil {
		logger.Fatal("failed to create classifier", zap.Error(err))
	}

	entityRepo := repositories.NewEntityRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	feedRepo := repositories.NewFeedRepository(db)

	entityService := services.NewEntityService(entityRepo)
	batchService := services.NewBatchService(batchRepo, feedRepo, taskRepo, entityRepo, statsCache, logger)
	queryService := services.NewQueryService(feedRepo, statsCache, logger)

	pool := pipeline.New(pipeline.Config{
		Workers:         cfg.Pipeline.Workers,
		PollInterval:    cfg.Pipeline.PollInterval,
		ClassifyTimeout: cfg.Classifier.Timeout,
		MaxAttempts:     cfg.Pipeline.MaxAttempts,
		InitialBackoff:  cfg.Pipeline.InitialBackoff,
		MaxBackoff:      cfg.Pipeline.MaxBackoff,
		StalledAfter:    cfg.Pipeline.StalledAfter,
		SweepInterval:   cfg.Pipeline.SweepInterval,
	}, taskRepo, batchRepo, feedRepo, clf, logger)

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		pool.Run(ctx)
	}()
	go func() {
		defer background.Done()
		batchService.RunSweeper(ctx, cfg.Pipeline.SweepInterval)
	}()

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewEntityHandler(entityService, logger).RegisterRoutes(mux)
	handlers.NewUploadHandler(batchService, logger).RegisterRoutes(mux)
	handlers.NewBatchHandler(batchService, logger).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(queryService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting feedback-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Workers drain their in-flight task before exiting; unfinished tasks
	// stay in the queue for the next start.
	background.Wait()
	logger.Info("stopped")
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}
