// internal/model/payment.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStep represents the formal step of a payment collection attempt
type PaymentStep string

const (
	StepInitializing   PaymentStep = "INITIALIZING"
	StepPreparingRadio PaymentStep = "PREPARING_RADIO"
	StepConnecting     PaymentStep = "CONNECTING"
	StepProcessing     PaymentStep = "PROCESSING"
	StepSuccess        PaymentStep = "SUCCESS"
	StepError          PaymentStep = "ERROR"
)

// Terminal reports whether the step ends the session
func (s PaymentStep) Terminal() bool {
	return s == StepSuccess || s == StepError
}

// PaymentSession is the state of one payment collection attempt. A retry
// creates a fresh session rather than mutating a failed one.
type PaymentSession struct {
	ID            uuid.UUID       `json:"id"`
	Step          PaymentStep     `json:"step"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	StatusMessage string          `json:"status_message"`
	Simulated     bool            `json:"simulated"`
	FailureKind   FailureKind     `json:"failure_kind,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

// Settled reports whether the session reached a terminal step
func (ps *PaymentSession) Settled() bool {
	return ps.Step.Terminal()
}

// StatusUpdate is one entry of the typed payment status stream: a bounded
// step identifier for logic plus a free-text message for humans.
type StatusUpdate struct {
	SessionID uuid.UUID   `json:"session_id"`
	Step      PaymentStep `json:"step"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// PaymentResult is the terminal outcome of a collection attempt
type PaymentResult struct {
	Authorized    bool            `json:"authorized"`
	Simulated     bool            `json:"simulated"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id,omitempty"`
}
