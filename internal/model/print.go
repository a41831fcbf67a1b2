// internal/model/print.go
package model

// ReceiptJob is a pre-rendered print payload bound to a target printer.
// The payload is produced by the receipt formatting service; the core treats
// it as opaque bytes. A job has no persisted lifecycle of its own.
type ReceiptJob struct {
	TargetDeviceID string `json:"target_device_id"`
	Payload        []byte `json:"payload"`
}

// SubmitOutcome reports how a print submission ended
type SubmitOutcome string

const (
	SubmitAccepted SubmitOutcome = "ACCEPTED"
	SubmitRejected SubmitOutcome = "REJECTED"
)

// SubmitResult is the outcome of one print submission. On rejection the
// failure kind distinguishes a connection problem (reconnect) from a device
// problem (check paper).
type SubmitResult struct {
	Outcome     SubmitOutcome `json:"outcome"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Message     string        `json:"message,omitempty"`
}
