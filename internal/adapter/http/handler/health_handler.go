package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModelStatus reports whether the classifier can serve
type ModelStatus interface {
	IsModelReady() bool
	ModelID() string
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	model ModelStatus
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler creates a new health handler; db and redis may be nil
func NewHealthHandler(model ModelStatus, db *gorm.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{
		model: model,
		db:    db,
		redis: redis,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ReadyStatus represents the readiness response
type ReadyStatus struct {
	Status     string            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	ModelID    string            `json:"model_id"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health. It always answers 200 so callers can read model_loaded.
func (h *HealthHandler) Health(c *gin.Context) {
	loaded := h.model.IsModelReady()
	status := "healthy"
	if !loaded {
		status = "unhealthy"
	}

	c.JSON(http.StatusOK, HealthStatus{
		Status:      status,
		ModelLoaded: loaded,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	reason := ""

	if h.model.IsModelReady() {
		components["model"] = "ok"
	} else {
		components["model"] = "not loaded"
		reason = "model not loaded"
	}

	// Check database
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			components["database"] = "error: " + err.Error()
			reason = firstReason(reason, "database error")
		} else if err := sqlDB.PingContext(ctx); err != nil {
			components["database"] = "error: " + err.Error()
			reason = firstReason(reason, "database unreachable")
		} else {
			components["database"] = "ok"
		}
	} else {
		components["database"] = "not configured"
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			components["redis"] = "error: " + err.Error()
			reason = firstReason(reason, "redis unreachable")
		} else {
			components["redis"] = "ok"
		}
	} else {
		components["redis"] = "not configured"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if reason != "" {
		status = "not ready"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, ReadyStatus{
		Status:     status,
		Reason:     reason,
		ModelID:    h.model.ModelID(),
		Components: components,
	})
}

func firstReason(current, next string) string {
	if current != "" {
		return current
	}
	return next
}
