// internal/handler/print_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"terminal-service/internal/connection"
	"terminal-service/internal/model"
	"terminal-service/internal/printing"
	"terminal-service/internal/utils"
)

// PrintHandler handles receipt print submissions
type PrintHandler struct {
	submitter   *printing.Submitter
	connections *connection.Manager
	logger      *utils.ServiceLogger
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(submitter *printing.Submitter, connections *connection.Manager, logger *zap.Logger) *PrintHandler {
	return &PrintHandler{
		submitter:   submitter,
		connections: connections,
		logger:      utils.NewServiceLogger(logger, "print-handler"),
	}
}

// PrintRequest carries either structured receipt content, which the service
// renders for the connected printer's paper width, or a raw pre-rendered
// payload (base64 in JSON).
type PrintRequest struct {
	TargetDeviceID string                   `json:"target_device_id"`
	Content        *printing.ReceiptContent `json:"content,omitempty"`
	Payload        []byte                   `json:"payload,omitempty"`
}

// Submit pushes one receipt to the connected printer. The outcome is
// reported synchronously; there is no job queue to poll.
func (h *PrintHandler) Submit(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Content == nil && len(req.Payload) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Either content or payload is required", nil)
		return
	}

	payload := req.Payload
	if req.Content != nil {
		record, err := h.connections.Record(c.Request.Context(), model.SlotPrinter)
		if err != nil {
			respondError(c, "Failed to read printer state", err)
			return
		}
		payload = printing.RenderReceipt(*req.Content, record.PaperProfile)
	}

	result, err := h.submitter.Submit(c.Request.Context(), model.ReceiptJob{
		TargetDeviceID: req.TargetDeviceID,
		Payload:        payload,
	})
	if err != nil {
		respondError(c, "Failed to submit print job", err)
		return
	}

	if result.Outcome == model.SubmitRejected {
		h.logger.Warn("Print submission rejected",
			zap.String("failure_kind", string(result.FailureKind)),
			zap.String("message", result.Message))
	}
	utils.SuccessResponse(c, http.StatusOK, "Print submission completed", result)
}
