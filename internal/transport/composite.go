// internal/transport/composite.go
package transport

import (
	"context"

	"go.uber.org/zap"

	"terminal-service/internal/model"
)

// Composite combines several discovery sources for one transport kind into
// the single scanner the manager registers. USB printers surface both as
// serial ports and as raw USB devices, so that kind carries two sources.
type Composite struct {
	kind    model.TransportKind
	sources []Scanner
	logger  *zap.Logger
}

// NewComposite wraps the given sources as one scanner for the kind. Every
// source must report the same kind.
func NewComposite(kind model.TransportKind, logger *zap.Logger, sources ...Scanner) *Composite {
	return &Composite{
		kind:    kind,
		sources: sources,
		logger:  logger.With(zap.String("scanner", "composite"), zap.String("transport", string(kind))),
	}
}

func (c *Composite) Kind() model.TransportKind {
	return c.kind
}

// IsAvailable reports true when any source is usable right now
func (c *Composite) IsAvailable() bool {
	for _, source := range c.sources {
		if source.IsAvailable() {
			return true
		}
	}
	return false
}

// Scan merges the results of every available source. A source failing while
// another succeeds is degraded discovery, not a hard failure; the error only
// propagates when no source produced a result set.
func (c *Composite) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	var (
		merged   []model.DeviceDescriptor
		firstErr error
		scanned  int
	)

	seen := make(map[string]bool)
	for _, source := range c.sources {
		if !source.IsAvailable() {
			continue
		}
		devices, err := source.Scan(ctx)
		if err != nil {
			if model.KindOf(err) == model.FailureScanCancelled {
				return nil, err
			}
			c.logger.Warn("Discovery source failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		scanned++
		for _, device := range devices {
			if seen[device.ID] {
				continue
			}
			seen[device.ID] = true
			merged = append(merged, device)
		}
	}

	if scanned == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, model.NewFailure(model.FailureTransportUnsupported,
			"transport currently unavailable: "+string(c.kind))
	}
	return merged, nil
}
