// internal/model/errors.go
package model

import "fmt"

// FailureKind classifies a failure so callers can offer a specific
// remediation action instead of a generic error message.
type FailureKind string

const (
	// Capability failures - fatal without different hardware or permissions
	FailureTransportUnsupported FailureKind = "TRANSPORT_UNSUPPORTED"
	FailurePermissionDenied     FailureKind = "PERMISSION_DENIED"

	// Discovery failures - retryable by re-invoking discovery
	FailureScanCancelled FailureKind = "SCAN_CANCELLED"

	// Connection failures - retryable, possibly with a different transport
	FailureHandshakeFailed    FailureKind = "HANDSHAKE_FAILED"
	FailureWrongTransport     FailureKind = "WRONG_TRANSPORT"
	FailureConnectInProgress  FailureKind = "CONNECTION_ALREADY_IN_PROGRESS"
	FailureDeviceNotFound     FailureKind = "DEVICE_NOT_FOUND"
	FailureSlotNotConnected   FailureKind = "SLOT_NOT_CONNECTED"

	// Payment failures - retryable by starting a fresh session
	FailureBackendUnreachable FailureKind = "BACKEND_UNREACHABLE"
	FailureRadioUnavailable   FailureKind = "RADIO_UNAVAILABLE"
	FailureCardDeclined       FailureKind = "CARD_DECLINED"
	FailureCollectTimeout     FailureKind = "COLLECT_TIMEOUT"
	FailureSessionInProgress  FailureKind = "SESSION_ALREADY_IN_PROGRESS"
	FailurePaymentCancelled   FailureKind = "PAYMENT_CANCELLED"

	// Print failures - transmission vs. device-side
	FailurePrinterNotConnected  FailureKind = "PRINTER_NOT_CONNECTED"
	FailureTransmissionFailed   FailureKind = "TRANSMISSION_FAILED"
	FailurePrinterNotResponding FailureKind = "PRINTER_NOT_RESPONDING"
)

// Failure is a classified error. Kind is machine-readable, Message is meant
// for humans. An optional wrapped cause is kept for logging.
type Failure struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// NewFailure creates a classified failure
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure creates a classified failure around an underlying error
func WrapFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Retryable reports whether re-invoking the same operation can succeed
// without different hardware or permissions.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailureTransportUnsupported, FailurePermissionDenied:
		return false
	}
	return true
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// report an empty kind.
func KindOf(err error) FailureKind {
	for err != nil {
		if f, ok := err.(*Failure); ok {
			return f.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ""
}
