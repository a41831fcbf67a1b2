// internal/connection/link.go
package connection

import (
	"context"
	"time"

	"terminal-service/internal/model"
)

// Link is an open byte channel to a connected peripheral
type Link interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Transport() model.TransportKind
	Close() error
}

// Connector dials one transport kind. Dial failures are classified
// (*model.Failure) so callers can suggest an alternative transport instead
// of blindly retrying the same one.
type Connector interface {
	Transport() model.TransportKind
	Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error)
}

// checkTransport rejects descriptors produced by a different transport's
// scan before any dialing happens.
func checkTransport(descriptor model.DeviceDescriptor, want model.TransportKind) error {
	if descriptor.TransportKind != want {
		return model.NewFailure(model.FailureWrongTransport,
			"device "+descriptor.ID+" was discovered over "+string(descriptor.TransportKind)+
				", not reachable via "+string(want))
	}
	return nil
}

func deadlineRemaining(deadline time.Time) time.Duration {
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
