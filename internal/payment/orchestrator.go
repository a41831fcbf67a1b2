// internal/payment/orchestrator.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"terminal-service/internal/model"
	"terminal-service/internal/utils"
)

// UpdateSink receives the typed payment status stream. The websocket hub
// implements it; a nil sink disables broadcasting.
type UpdateSink interface {
	PaymentStatusChanged(update model.StatusUpdate)
}

// ReaderAttacher binds the discovered reader to the terminal slot. The
// connection manager satisfies it.
type ReaderAttacher interface {
	Connect(ctx context.Context, descriptor model.DeviceDescriptor) (*model.ConnectivityRecord, error)
}

type activeSession struct {
	mu         sync.Mutex
	session    model.PaymentSession
	abort      context.CancelFunc
	processing bool
	cancelled  bool
	done       chan struct{}
}

func (as *activeSession) snapshot() *model.PaymentSession {
	as.mu.Lock()
	defer as.mu.Unlock()
	copied := as.session
	return &copied
}

// Orchestrator runs payment collection sessions one at a time. Each attempt
// walks INITIALIZING, PREPARING_RADIO, CONNECTING and PROCESSING before
// settling in SUCCESS or ERROR; retries start a fresh session.
type Orchestrator struct {
	tokens   *TokenClient
	reader   ReaderProvider
	attacher ReaderAttacher
	sink     UpdateSink
	logger   *zap.Logger
	audit    *utils.AuditLogger

	defaultCurrency string
	collectTimeout  time.Duration

	mu      sync.Mutex
	current *activeSession
}

// NewOrchestrator wires the payment flow together
func NewOrchestrator(tokens *TokenClient, reader ReaderProvider, attacher ReaderAttacher, logger *zap.Logger, defaultCurrency string, collectTimeout time.Duration) *Orchestrator {
	if defaultCurrency == "" {
		defaultCurrency = "usd"
	}
	if collectTimeout <= 0 {
		collectTimeout = 90 * time.Second
	}
	return &Orchestrator{
		tokens:          tokens,
		reader:          reader,
		attacher:        attacher,
		logger:          logger.With(zap.String("component", "payment")),
		audit:           utils.NewAuditLogger(logger),
		defaultCurrency: defaultCurrency,
		collectTimeout:  collectTimeout,
	}
}

// SetUpdateSink attaches the broadcast sink. Must be called before the
// first Collect.
func (o *Orchestrator) SetUpdateSink(sink UpdateSink) {
	o.sink = sink
}

// ConfigureBackend repoints token fetching at a different backend URL
func (o *Orchestrator) ConfigureBackend(baseURL string) error {
	return o.tokens.SetBaseURL(baseURL)
}

// BackendURL returns the backend currently used for token fetching
func (o *Orchestrator) BackendURL() string {
	return o.tokens.BaseURL()
}

// Session returns a snapshot of the most recent session, settled or not
func (o *Orchestrator) Session() (*model.PaymentSession, bool) {
	o.mu.Lock()
	as := o.current
	o.mu.Unlock()
	if as == nil {
		return nil, false
	}
	return as.snapshot(), true
}

func (o *Orchestrator) emit(as *activeSession, step model.PaymentStep, message string) {
	as.mu.Lock()
	as.session.Step = step
	as.session.StatusMessage = message
	update := model.StatusUpdate{
		SessionID: as.session.ID,
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
	}
	as.mu.Unlock()

	o.logger.Info("Payment status",
		zap.String("session_id", update.SessionID.String()),
		zap.String("step", string(step)),
		zap.String("message", message))
	if o.sink != nil {
		o.sink.PaymentStatusChanged(update)
	}
}

func (o *Orchestrator) settle(as *activeSession, step model.PaymentStep, kind model.FailureKind, message string) {
	now := time.Now()
	as.mu.Lock()
	as.session.FailureKind = kind
	as.session.SettledAt = &now
	as.mu.Unlock()

	o.emit(as, step, message)
	close(as.done)
}

func (as *activeSession) cancelRequested() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.cancelled
}

// Collect runs one payment collection attempt to completion. It blocks
// until the session settles; intermediate steps stream through the sink.
func (o *Orchestrator) Collect(ctx context.Context, amount decimal.Decimal, currency string) (*model.PaymentSession, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if currency == "" {
		currency = o.defaultCurrency
	}

	phaseCtx, abort := context.WithCancel(ctx)
	as := &activeSession{
		session: model.PaymentSession{
			ID:        uuid.New(),
			Step:      model.StepInitializing,
			Amount:    amount,
			Currency:  currency,
			Simulated: o.reader.Simulated(),
			StartedAt: time.Now(),
		},
		abort: abort,
		done:  make(chan struct{}),
	}

	o.mu.Lock()
	if o.current != nil && !o.current.snapshot().Settled() {
		o.mu.Unlock()
		abort()
		return nil, model.NewFailure(model.FailureSessionInProgress,
			"a payment session is already in progress")
	}
	o.current = as
	o.mu.Unlock()

	op := utils.NewOperationLogger(o.logger, "collect_payment", as.session.ID.String())
	op.Start(zap.String("amount", amount.StringFixed(2)), zap.String("currency", currency))

	defer abort()
	o.run(phaseCtx, as)

	final := as.snapshot()
	if final.Step == model.StepSuccess {
		op.Success()
	} else {
		op.Error(errors.New(final.StatusMessage), zap.String("failure_kind", string(final.FailureKind)))
	}
	o.audit.LogPaymentTransaction(final.ID.String(), "", final.Amount.StringFixed(2),
		final.Currency, string(final.Step), final.Simulated)
	return final, nil
}

func (o *Orchestrator) run(phaseCtx context.Context, as *activeSession) {
	o.emit(as, model.StepInitializing, "Fetching connection token")
	token, err := o.tokens.FetchToken(phaseCtx)
	if err != nil {
		o.settleFromError(as, err, model.FailureBackendUnreachable)
		return
	}
	if o.aborted(phaseCtx, as) {
		return
	}

	o.emit(as, model.StepPreparingRadio, "Preparing card reader")
	if !o.reader.Supported() {
		o.settle(as, model.StepError, model.FailureRadioUnavailable,
			"This device has no usable card reader")
		return
	}
	readers, err := o.reader.DiscoverReaders(phaseCtx)
	if err != nil {
		o.settleFromError(as, err, model.FailureRadioUnavailable)
		return
	}
	if len(readers) == 0 {
		o.settle(as, model.StepError, model.FailureRadioUnavailable,
			"No card reader was found on this device")
		return
	}
	if o.aborted(phaseCtx, as) {
		return
	}

	o.emit(as, model.StepConnecting, "Connecting to card reader")
	if _, err := o.attacher.Connect(phaseCtx, readers[0]); err != nil {
		o.settleFromError(as, err, model.FailureRadioUnavailable)
		return
	}
	if o.aborted(phaseCtx, as) {
		return
	}

	// Past this point cancellation no longer interrupts: the interaction
	// with the card must settle on its own.
	as.mu.Lock()
	as.processing = true
	as.mu.Unlock()
	o.emit(as, model.StepProcessing, "Waiting for card")

	collectCtx, cancel := context.WithTimeout(context.Background(), o.collectTimeout)
	defer cancel()
	result, err := o.reader.Collect(collectCtx, CollectRequest{
		SessionID: as.session.ID,
		Amount:    as.session.Amount,
		Currency:  as.session.Currency,
		Token:     token,
	}, func(message string) {
		o.emit(as, model.StepProcessing, message)
	})
	if err != nil {
		o.settleFromError(as, err, model.FailureCardDeclined)
		return
	}

	o.logger.Info("Payment authorized",
		zap.String("session_id", as.session.ID.String()),
		zap.String("transaction_id", result.TransactionID),
		zap.Bool("simulated", result.Simulated))
	o.settle(as, model.StepSuccess, "", "Payment approved")
}

// aborted settles the session as cancelled when a cancel request or context
// abort arrived between phases
func (o *Orchestrator) aborted(phaseCtx context.Context, as *activeSession) bool {
	if phaseCtx.Err() == nil && !as.cancelRequested() {
		return false
	}
	o.settle(as, model.StepError, model.FailurePaymentCancelled, "Payment was cancelled")
	return true
}

func (o *Orchestrator) settleFromError(as *activeSession, err error, fallback model.FailureKind) {
	if as.cancelRequested() {
		o.settle(as, model.StepError, model.FailurePaymentCancelled, "Payment was cancelled")
		return
	}
	kind := model.KindOf(err)
	if kind == "" {
		kind = fallback
	}
	o.settle(as, model.StepError, kind, err.Error())
}

// Cancel requests that the current session stop. Sessions that have not
// reached PROCESSING abort right away; once the card interaction started,
// Cancel waits for it to settle on its own. The settled session is returned.
func (o *Orchestrator) Cancel(ctx context.Context) (*model.PaymentSession, error) {
	o.mu.Lock()
	as := o.current
	o.mu.Unlock()
	if as == nil {
		return nil, model.NewFailure(model.FailureDeviceNotFound, "no payment session to cancel")
	}

	as.mu.Lock()
	if as.session.Settled() {
		as.mu.Unlock()
		copied := as.snapshot()
		return copied, nil
	}
	as.cancelled = true
	processing := as.processing
	as.mu.Unlock()

	if !processing {
		as.abort()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-as.done:
	}
	return as.snapshot(), nil
}
