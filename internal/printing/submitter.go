// internal/printing/submitter.go
package printing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"terminal-service/internal/connection"
	"terminal-service/internal/model"
)

// PrinterSource is the connection manager surface the submitter needs: the
// printer slot's record and its live link.
type PrinterSource interface {
	Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error)
	Link(slot model.Slot) (connection.Link, error)
}

// Submitter pushes receipt payloads to the connected printer. Submission is
// fire-and-forget past acceptance: an accepted job carries no job ID and no
// queryable lifecycle.
type Submitter struct {
	printers   PrinterSource
	logger     *zap.Logger
	ackTimeout time.Duration
}

// NewSubmitter creates a submitter over the connection manager
func NewSubmitter(printers PrinterSource, logger *zap.Logger, ackTimeout time.Duration) *Submitter {
	if ackTimeout <= 0 {
		ackTimeout = 3 * time.Second
	}
	return &Submitter{
		printers:   printers,
		logger:     logger.With(zap.String("component", "printing")),
		ackTimeout: ackTimeout,
	}
}

func rejected(kind model.FailureKind, message string) *model.SubmitResult {
	return &model.SubmitResult{
		Outcome:     model.SubmitRejected,
		FailureKind: kind,
		Message:     message,
	}
}

// Submit sends one receipt job to the printer. The rejection kind separates
// "reconnect the printer" from "check the printer" so the caller can show
// the right remediation:
//
//   - PRINTER_NOT_CONNECTED: nothing was transmitted
//   - TRANSMISSION_FAILED:   the payload did not reach the device
//   - PRINTER_NOT_RESPONDING: the payload was sent but the device never
//     acknowledged the status probe
func (s *Submitter) Submit(ctx context.Context, job model.ReceiptJob) (*model.SubmitResult, error) {
	if len(job.Payload) == 0 {
		return rejected(model.FailureTransmissionFailed, "print payload is empty"), nil
	}

	record, err := s.printers.Record(ctx, model.SlotPrinter)
	if err != nil {
		return nil, err
	}
	if !record.IsConnected() {
		return rejected(model.FailurePrinterNotConnected, "no printer is connected"), nil
	}
	if job.TargetDeviceID != "" && *record.ConnectedDeviceID != job.TargetDeviceID {
		return rejected(model.FailurePrinterNotConnected,
			"printer "+job.TargetDeviceID+" is not the connected printer"), nil
	}

	link, err := s.printers.Link(model.SlotPrinter)
	if err != nil {
		return rejected(model.FailurePrinterNotConnected, "no printer is connected"), nil
	}

	start := time.Now()
	if err := link.Write(ctx, job.Payload); err != nil {
		s.logger.Error("Receipt transmission failed",
			zap.String("device_id", *record.ConnectedDeviceID),
			zap.Int("payload_bytes", len(job.Payload)),
			zap.Error(err))
		return rejected(model.FailureTransmissionFailed,
			"the payload could not be transmitted to the printer"), nil
	}

	if err := s.probe(ctx, link); err != nil {
		s.logger.Warn("Printer did not acknowledge status probe",
			zap.String("device_id", *record.ConnectedDeviceID),
			zap.Error(err))
		return rejected(model.FailurePrinterNotResponding,
			"the printer did not acknowledge the job; check paper and power"), nil
	}

	s.logger.Info("Receipt accepted",
		zap.String("device_id", *record.ConnectedDeviceID),
		zap.Int("payload_bytes", len(job.Payload)),
		zap.Duration("duration", time.Since(start)))
	return &model.SubmitResult{Outcome: model.SubmitAccepted}, nil
}

// probe sends a DLE EOT status request and waits for the one-byte reply
func (s *Submitter) probe(ctx context.Context, link connection.Link) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	defer cancel()

	if err := link.Write(probeCtx, cmdStatusRequest); err != nil {
		return err
	}
	reply, err := link.Read(probeCtx, 1)
	if err != nil {
		return err
	}
	if len(reply) == 0 {
		return model.NewFailure(model.FailurePrinterNotResponding, "empty status reply")
	}
	return nil
}
