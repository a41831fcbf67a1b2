// internal/handler/payment_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"terminal-service/internal/payment"
	"terminal-service/internal/utils"
)

// PaymentHandler handles payment collection requests
type PaymentHandler struct {
	orchestrator *payment.Orchestrator
	logger       *utils.ServiceLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orchestrator *payment.Orchestrator, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orchestrator,
		logger:       utils.NewServiceLogger(logger, "payment-handler"),
	}
}

// CollectRequest starts a payment collection attempt
type CollectRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
}

// Collect runs one payment collection attempt to completion. Intermediate
// steps stream over the events websocket; the response carries the settled
// session.
func (h *PaymentHandler) Collect(c *gin.Context) {
	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.Amount.IsPositive() {
		utils.ErrorResponse(c, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	session, err := h.orchestrator.Collect(c.Request.Context(), req.Amount, req.Currency)
	if err != nil {
		h.logger.Error("Payment collection rejected", zap.Error(err))
		respondError(c, "Failed to start payment collection", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Payment session settled", session)
}

// Cancel requests that the current payment session stop. Sessions past the
// point of card interaction settle on their own; the call waits for that.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	session, err := h.orchestrator.Cancel(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to cancel payment session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Payment session settled", session)
}

// GetSession returns the most recent payment session, settled or not
func (h *PaymentHandler) GetSession(c *gin.Context) {
	session, ok := h.orchestrator.Session()
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "No payment session exists", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Payment session retrieved", session)
}

// BackendRequest repoints token fetching at a different backend
type BackendRequest struct {
	BackendURL string `json:"backend_url" binding:"required"`
}

// SetBackend changes the backend URL used for connection tokens. Takes
// effect for the next session.
func (h *PaymentHandler) SetBackend(c *gin.Context) {
	var req BackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.orchestrator.ConfigureBackend(req.BackendURL); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid backend URL", err)
		return
	}

	h.logger.Info("Payment backend reconfigured", zap.String("backend_url", req.BackendURL))
	utils.SuccessResponse(c, http.StatusOK, "Payment backend updated", gin.H{
		"backend_url": h.orchestrator.BackendURL(),
	})
}
