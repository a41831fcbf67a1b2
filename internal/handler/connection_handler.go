// internal/handler/connection_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"terminal-service/internal/connection"
	"terminal-service/internal/model"
	"terminal-service/internal/utils"
)

// ConnectionHandler handles connect/disconnect requests and slot queries
type ConnectionHandler struct {
	connections *connection.Manager
	logger      *utils.ServiceLogger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connections *connection.Manager, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		logger:      utils.NewServiceLogger(logger, "connection-handler"),
	}
}

// ConnectRequest carries the device descriptor from a previous scan
type ConnectRequest struct {
	DeviceID      string              `json:"device_id" binding:"required"`
	DisplayName   string              `json:"display_name"`
	TransportKind model.TransportKind `json:"transport_kind" binding:"required"`
}

// Connect establishes a connection to a discovered device
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.TransportKind.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest,
			"Unknown transport kind: "+string(req.TransportKind), nil)
		return
	}

	record, err := h.connections.Connect(c.Request.Context(), model.DeviceDescriptor{
		ID:            req.DeviceID,
		DisplayName:   req.DisplayName,
		TransportKind: req.TransportKind,
	})
	if err != nil {
		h.logger.Error("Connect failed",
			zap.String("device_id", req.DeviceID),
			zap.String("transport", string(req.TransportKind)),
			zap.Error(err))
		respondError(c, "Failed to connect device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device connected", record)
}

// DisconnectRequest names the device to disconnect
type DisconnectRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// Disconnect tears down a device connection. Disconnecting an unknown or
// already-disconnected device succeeds.
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	var req DisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.connections.Disconnect(c.Request.Context(), req.DeviceID); err != nil {
		respondError(c, "Failed to disconnect device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device disconnected", nil)
}

// GetSlot returns the connectivity record for one slot
func (h *ConnectionHandler) GetSlot(c *gin.Context) {
	slot := model.Slot(c.Param("slot"))
	if !slot.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown slot: "+c.Param("slot"), nil)
		return
	}

	record, err := h.connections.Record(c.Request.Context(), slot)
	if err != nil {
		respondError(c, "Failed to read slot state", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Slot state retrieved", record)
}

// PaperProfileRequest sets the printer paper width
type PaperProfileRequest struct {
	PaperProfile model.PaperProfile `json:"paper_profile" binding:"required"`
}

// SetPaperProfile persists the printer's paper width
func (h *ConnectionHandler) SetPaperProfile(c *gin.Context) {
	var req PaperProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PaperProfile != model.Paper58mm && req.PaperProfile != model.Paper80mm {
		utils.ErrorResponse(c, http.StatusBadRequest,
			"Unknown paper profile: "+string(req.PaperProfile), nil)
		return
	}

	if err := h.connections.SetPaperProfile(c.Request.Context(), req.PaperProfile); err != nil {
		respondError(c, "Failed to set paper profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Paper profile updated", gin.H{
		"paper_profile": req.PaperProfile,
	})
}
