package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ayush630/clinical-bert-api/internal/adapter/http/handler"
	"github.com/ayush630/clinical-bert-api/internal/adapter/http/middleware"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/metrics"
	"github.com/ayush630/clinical-bert-api/internal/usecase"
)

// Dependencies are the components the router wires into handlers.
// DB, Redis, Metrics and Gatherer are optional.
type Dependencies struct {
	PredictionUC usecase.PredictionUsecase
	DB           *gorm.DB
	Redis        *redis.Client
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	MetricsPath  string
	Logger       *zap.Logger
}

// Setup creates and configures the Gin router
func Setup(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	predictionHandler := handler.NewPredictionHandler(deps.PredictionUC)
	healthHandler := handler.NewHealthHandler(deps.PredictionUC, deps.DB, deps.Redis)

	// General endpoints
	router.GET("/", predictionHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/docs", handler.Docs)
	router.GET("/docs/openapi.yaml", handler.DocsYAML)

	// Prometheus metrics
	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Prediction routes
	router.POST("/predict", predictionHandler.Predict)
	router.POST("/predict/batch", predictionHandler.PredictBatch)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		predictions := v1.Group("/predictions")
		{
			predictions.GET("", predictionHandler.ListPredictions)
			predictions.GET("/:id", predictionHandler.GetPrediction)
		}
	}

	return router
}
