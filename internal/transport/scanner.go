// internal/transport/scanner.go
package transport

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"terminal-service/internal/model"
	"terminal-service/internal/utils"
)

// Scanner performs discovery for one transport kind
type Scanner interface {
	// Scan enumerates reachable peripherals. An empty result is not an
	// error; hard failures are classified (*model.Failure).
	Scan(ctx context.Context) ([]model.DeviceDescriptor, error)
	Kind() model.TransportKind
	// IsAvailable probes the transport capability. It is evaluated on
	// every call because permissions and hardware state can change
	// between calls.
	IsAvailable() bool
}

// Manager routes discovery requests to the registered per-transport scanners
type Manager struct {
	scanners map[model.TransportKind]Scanner
	logger   *zap.Logger
}

// NewManager creates an empty scanner manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		scanners: make(map[model.TransportKind]Scanner),
		logger:   logger.With(zap.String("component", "transport-manager")),
	}
}

// Register registers a transport scanner. Exactly one scanner owns each
// kind; registering a second one for the same kind is rejected so a later
// registration cannot silently shadow an earlier one. Multiple discovery
// sources for one transport are combined with NewComposite before
// registration.
func (m *Manager) Register(scanner Scanner) error {
	kind := scanner.Kind()
	if _, exists := m.scanners[kind]; exists {
		return fmt.Errorf("a scanner for transport %s is already registered", kind)
	}
	m.scanners[kind] = scanner
	m.logger.Info("Transport scanner registered", zap.String("transport", string(kind)))
	return nil
}

// AvailableTransports returns the set of transports usable right now.
// Availability is re-probed on every call, never cached.
func (m *Manager) AvailableTransports() []model.TransportKind {
	var available []model.TransportKind
	for kind, scanner := range m.scanners {
		if scanner.IsAvailable() {
			available = append(available, kind)
		}
	}
	return available
}

// Discover scans one transport and returns the descriptors found
func (m *Manager) Discover(ctx context.Context, kind model.TransportKind) ([]model.DeviceDescriptor, error) {
	scanner, exists := m.scanners[kind]
	if !exists {
		return nil, model.NewFailure(model.FailureTransportUnsupported,
			"transport not supported on this device: "+string(kind))
	}

	if !scanner.IsAvailable() {
		return nil, model.NewFailure(model.FailureTransportUnsupported,
			"transport currently unavailable: "+string(kind))
	}

	op := utils.NewOperationLogger(m.logger, "discovery_scan", string(kind))
	op.Start()

	devices, err := scanner.Scan(ctx)
	if err != nil {
		op.Error(err)
		return nil, err
	}

	op.Success(zap.Int("devices_found", len(devices)))
	return devices, nil
}
