package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ayush630/clinical-bert-api/internal/adapter/http/router"
	"github.com/ayush630/clinical-bert-api/internal/adapter/model"
	"github.com/ayush630/clinical-bert-api/internal/adapter/repository/postgres"
	"github.com/ayush630/clinical-bert-api/internal/domain/repository"
	"github.com/ayush630/clinical-bert-api/internal/domain/service"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/cache"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/config"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/database"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/logger"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/metrics"
	"github.com/ayush630/clinical-bert-api/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Metrics registry
	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewMetrics(reg)
		gatherer = reg
	}

	// Load the model before accepting traffic
	runtime, err := model.NewRuntimeFromConfig(&cfg.Model, log)
	if err != nil {
		return fmt.Errorf("failed to configure model: %w", err)
	}
	log.Info("Starting up: loading model",
		zap.String("model_id", cfg.Model.ID),
		zap.String("backend", cfg.Model.Backend),
		zap.String("device", cfg.Model.Device),
	)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.Model.LoadTimeout)
	err = runtime.Load(loadCtx)
	cancelLoad()
	if err != nil {
		log.Error("Failed to load model", zap.Error(err))
		return fmt.Errorf("failed to load model: %w", err)
	}
	m.SetModelLoaded(true)
	defer func() {
		if err := runtime.Close(); err != nil {
			log.Warn("Failed to release model", zap.Error(err))
		}
	}()

	// Initialize database (optional)
	var (
		db      *gorm.DB
		records repository.PredictionRepository
	)
	if cfg.Database.Enabled {
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Connected to database")

		if err := database.AutoMigrate(db); err != nil {
			log.Error("Failed to run migrations", zap.Error(err))
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("Database migrations completed")
		records = postgres.NewPredictionRepository(db)
	}

	// Initialize Redis (optional, continue without it)
	var (
		redisClient     *redis.Client
		predictionCache service.PredictionCache
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(context.Background(), &cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			log.Info("Connected to Redis")
			predictionCache = cache.NewPredictionCache(redisClient, cfg.Redis.TTL)
		}
	}

	predictionUC := usecase.NewPredictionUsecase(runtime, predictionCache, records, m, log)

	// Setup router
	r := router.Setup(router.Dependencies{
		PredictionUC: predictionUC,
		DB:           db,
		Redis:        redisClient,
		Metrics:      m,
		Gatherer:     gatherer,
		MetricsPath:  cfg.Metrics.Path,
		Logger:       log,
	})

	// Create HTTP server
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	m.SetModelLoaded(false)

	// Close database connection
	if db != nil {
		_ = database.Close(db)
	}

	// Close Redis connection
	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("Server exited")
	return nil
}
