// internal/handler/discovery_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"terminal-service/internal/config"
	"terminal-service/internal/model"
	"terminal-service/internal/transport"
	"terminal-service/internal/utils"
)

// DiscoveryHandler handles transport capability and device scan requests
type DiscoveryHandler struct {
	transports *transport.Manager
	discovery  *config.DiscoveryConfig
	logger     *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(transports *transport.Manager, discovery *config.DiscoveryConfig, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		transports: transports,
		discovery:  discovery,
		logger:     utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ListTransports returns every transport and whether it is usable right now
func (h *DiscoveryHandler) ListTransports(c *gin.Context) {
	available := make(map[model.TransportKind]bool)
	for _, kind := range h.transports.AvailableTransports() {
		available[kind] = true
	}

	all := []model.TransportKind{model.TransportUSB, model.TransportBluetoothLE, model.TransportInternalNFC}
	transports := make([]gin.H, 0, len(all))
	for _, kind := range all {
		transports = append(transports, gin.H{
			"kind":      kind,
			"available": available[kind],
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "Transports retrieved", gin.H{
		"transports": transports,
	})
}

// ScanRequest selects the transport to scan
type ScanRequest struct {
	TransportKind model.TransportKind `json:"transport_kind" binding:"required"`
}

func (h *DiscoveryHandler) scanTimeout(kind model.TransportKind) time.Duration {
	switch kind {
	case model.TransportBluetoothLE:
		return h.discovery.BLEScanTimeout
	case model.TransportInternalNFC:
		return h.discovery.NFCScanTimeout
	default:
		return h.discovery.USBScanTimeout
	}
}

// ScanDevices scans one transport for reachable devices
func (h *DiscoveryHandler) ScanDevices(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.TransportKind.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest,
			"Unknown transport kind: "+string(req.TransportKind), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.scanTimeout(req.TransportKind))
	defer cancel()

	devices, err := h.transports.Discover(ctx, req.TransportKind)
	if err != nil {
		h.logger.Error("Device scan failed",
			zap.String("transport", string(req.TransportKind)),
			zap.Error(err))
		respondError(c, "Failed to scan devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device scan completed", gin.H{
		"devices_found": len(devices),
		"devices":       devices,
	})
}
