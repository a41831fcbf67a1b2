// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"terminal-service/internal/config"
	"terminal-service/internal/model"
	"terminal-service/internal/state"
	"terminal-service/internal/transport"
	"terminal-service/internal/utils"
)

// HealthHandler handles health and readiness probes
type HealthHandler struct {
	store      state.Store
	transports *transport.Manager
	config     *config.Config
	logger     *utils.ServiceLogger
	startedAt  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store state.Store, transports *transport.Manager, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:      store,
		transports: transports,
		config:     cfg,
		logger:     utils.NewServiceLogger(logger, "health-handler"),
		startedAt:  time.Now(),
	}
}

// HealthCheck reports overall service health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	storeHealthy := true
	if _, err := h.store.Record(c.Request.Context(), model.SlotPrinter); err != nil {
		h.logger.Error("State store probe failed", zap.Error(err))
		storeHealthy = false
	}

	status := "healthy"
	code := http.StatusOK
	if !storeHealthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	utils.SuccessResponse(c, code, "Health check completed", gin.H{
		"status":               status,
		"version":              h.config.App.Version,
		"environment":          h.config.App.Environment,
		"uptime":               time.Since(h.startedAt).String(),
		"store_healthy":        storeHealthy,
		"available_transports": h.transports.AvailableTransports(),
	})
}

// LivenessCheck reports that the process is alive
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Service is alive", gin.H{
		"status": "alive",
	})
}

// ReadinessCheck reports whether the service can serve requests
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if _, err := h.store.Record(c.Request.Context(), model.SlotPrinter); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "State store is not ready", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Service is ready", gin.H{
		"status": "ready",
	})
}
