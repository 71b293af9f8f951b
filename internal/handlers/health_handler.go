package handlers

import (
	"context"
	"net/http"
	"time"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service health plus the resolved operating mode, so
// clients can tell demo output from live analysis.
type HealthHandler struct {
	checker    HealthChecker
	mode       models.OperatingMode
	demoReason string
	startTime  time.Time
	logger     *logger.Logger
}

func NewHealthHandler(checker HealthChecker, mode models.OperatingMode, demoReason string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker:    checker,
		mode:       mode,
		demoReason: demoReason,
		startTime:  time.Now(),
		logger:     log,
	}
}

func (handler *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK

	var healthErr string
	if err := handler.checker.HealthCheck(ctx); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		healthErr = err.Error()
		handler.logger.WithError(err).Warn("Health check reported degraded state")
	}

	body := gin.H{
		"status":         status,
		"mode":           string(handler.mode),
		"uptime_seconds": time.Since(handler.startTime).Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if handler.demoReason != "" {
		body["demo_reason"] = handler.demoReason
	}
	if healthErr != "" {
		body["error"] = healthErr
	}

	c.JSON(httpStatus, body)
}

// Ready is a lightweight liveness probe that skips dependency checks.
func (handler *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
