// internal/payment/reader.go
package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"terminal-service/internal/model"
)

// CollectRequest describes one card collection attempt handed to a reader
type CollectRequest struct {
	SessionID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Token     string
}

// ProgressFunc reports a human-readable sub-status while the reader works,
// e.g. "Waiting for card" then "Processing payment". The step stays
// PROCESSING for the whole collection.
type ProgressFunc func(message string)

// ReaderProvider is the payment SDK surface the orchestrator drives. It also
// satisfies the NFC transport scanner's reader source and the connection
// manager's reader session.
type ReaderProvider interface {
	Supported() bool
	DiscoverReaders(ctx context.Context) ([]model.DeviceDescriptor, error)
	ConnectReader(ctx context.Context, descriptor model.DeviceDescriptor) error
	DisconnectReader(ctx context.Context) error

	// Collect blocks until the card interaction settles or ctx is done.
	// Once called it must not be interrupted mid-authorization; callers
	// cancel by ctx before invoking it, not during.
	Collect(ctx context.Context, req CollectRequest, progress ProgressFunc) (*model.PaymentResult, error)

	Simulated() bool
}

// HardwareReader is selected when simulated mode is off. Driving the real
// NFC reader requires the processor's native SDK, which ships per-platform.
// TODO: bind the processor SDK once its Linux build is published.
type HardwareReader struct{}

func NewHardwareReader() *HardwareReader { return &HardwareReader{} }

func (r *HardwareReader) Supported() bool { return false }

func (r *HardwareReader) Simulated() bool { return false }

func (r *HardwareReader) DiscoverReaders(ctx context.Context) ([]model.DeviceDescriptor, error) {
	return nil, model.NewFailure(model.FailureRadioUnavailable,
		"hardware reader support is not available in this build")
}

func (r *HardwareReader) ConnectReader(ctx context.Context, descriptor model.DeviceDescriptor) error {
	return model.NewFailure(model.FailureRadioUnavailable,
		"hardware reader support is not available in this build")
}

func (r *HardwareReader) DisconnectReader(ctx context.Context) error { return nil }

func (r *HardwareReader) Collect(ctx context.Context, req CollectRequest, progress ProgressFunc) (*model.PaymentResult, error) {
	return nil, model.NewFailure(model.FailureRadioUnavailable,
		"hardware reader support is not available in this build")
}

// SimulatedReader emulates the terminal's built-in tap-to-pay reader for
// development machines without NFC hardware or processor credentials.
type SimulatedReader struct {
	cardDelay    time.Duration
	processDelay time.Duration

	mu        sync.Mutex
	connected bool
}

// NewSimulatedReader creates a simulated reader with realistic pacing
func NewSimulatedReader() *SimulatedReader {
	return &SimulatedReader{
		cardDelay:    2 * time.Second,
		processDelay: 1 * time.Second,
	}
}

func (r *SimulatedReader) Supported() bool { return true }

func (r *SimulatedReader) Simulated() bool { return true }

func (r *SimulatedReader) DiscoverReaders(ctx context.Context) ([]model.DeviceDescriptor, error) {
	return []model.DeviceDescriptor{
		{
			ID:            "simulated-reader",
			DisplayName:   "Simulated tap-to-pay reader",
			TransportKind: model.TransportInternalNFC,
		},
	}, nil
}

func (r *SimulatedReader) ConnectReader(ctx context.Context, descriptor model.DeviceDescriptor) error {
	if descriptor.ID != "simulated-reader" {
		return model.NewFailure(model.FailureDeviceNotFound,
			"unknown reader "+descriptor.ID)
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	return nil
}

func (r *SimulatedReader) DisconnectReader(ctx context.Context) error {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	return nil
}

// Collect runs the simulated card interaction. Amounts whose minor units end
// in .99 are declined so decline handling stays testable end to end.
func (r *SimulatedReader) Collect(ctx context.Context, req CollectRequest, progress ProgressFunc) (*model.PaymentResult, error) {
	r.mu.Lock()
	connected := r.connected
	r.mu.Unlock()
	if !connected {
		return nil, model.NewFailure(model.FailureSlotNotConnected, "reader is not connected")
	}

	progress("Waiting for card")
	select {
	case <-ctx.Done():
		return nil, model.WrapFailure(model.FailureCollectTimeout,
			"card was not presented in time", ctx.Err())
	case <-time.After(r.cardDelay):
	}

	progress("Processing payment")
	select {
	case <-ctx.Done():
		return nil, model.WrapFailure(model.FailureCollectTimeout,
			"processing did not complete in time", ctx.Err())
	case <-time.After(r.processDelay):
	}

	if strings.HasSuffix(req.Amount.StringFixed(2), ".99") {
		return nil, model.NewFailure(model.FailureCardDeclined, "card declined")
	}

	return &model.PaymentResult{
		Authorized:    true,
		Simulated:     true,
		Amount:        req.Amount,
		Currency:      req.Currency,
		TransactionID: "sim_" + uuid.NewString(),
	}, nil
}
