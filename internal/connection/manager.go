// internal/connection/manager.go
package connection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-service/internal/model"
	"terminal-service/internal/state"
	"terminal-service/internal/utils"
)

// EventSink receives connectivity change notifications. The websocket hub
// implements it; a nil sink disables broadcasting.
type EventSink interface {
	ConnectivityChanged(record model.ConnectivityRecord)
}

// SlotForTransport maps a transport to the slot its devices occupy. Printers
// arrive over USB or Bluetooth LE; the internal reader fills the terminal slot.
func SlotForTransport(kind model.TransportKind) (model.Slot, bool) {
	switch kind {
	case model.TransportUSB, model.TransportBluetoothLE:
		return model.SlotPrinter, true
	case model.TransportInternalNFC:
		return model.SlotTerminal, true
	}
	return "", false
}

type slotState struct {
	inFlight bool
	link     Link
	deviceID string
}

// Manager owns the connection lifecycle for every slot. It is the only
// writer of the connectivity store, so a store read immediately after any
// Manager call observes that call's outcome.
type Manager struct {
	store      state.Store
	connectors map[model.TransportKind]Connector
	logger     *zap.Logger
	audit      *utils.AuditLogger
	sink       EventSink

	connectTimeout time.Duration

	mu    sync.Mutex
	slots map[model.Slot]*slotState
}

// NewManager creates a connection manager over the given store. Connectors
// are registered per transport before the manager is used.
func NewManager(store state.Store, logger *zap.Logger, connectTimeout time.Duration) *Manager {
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	return &Manager{
		store:          store,
		connectors:     make(map[model.TransportKind]Connector),
		logger:         logger,
		audit:          utils.NewAuditLogger(logger),
		connectTimeout: connectTimeout,
		slots: map[model.Slot]*slotState{
			model.SlotPrinter:  {},
			model.SlotTerminal: {},
		},
	}
}

// Register adds a connector for its transport kind
func (m *Manager) Register(connector Connector) {
	m.connectors[connector.Transport()] = connector
}

// SetEventSink attaches the broadcast sink. Must be called before the first
// Connect; the manager does not guard the field afterwards.
func (m *Manager) SetEventSink(sink EventSink) {
	m.sink = sink
}

func (m *Manager) broadcast(ctx context.Context, slot model.Slot) {
	if m.sink == nil {
		return
	}
	rec, err := m.store.Record(ctx, slot)
	if err != nil {
		m.logger.Warn("Failed to read slot record for broadcast",
			zap.String("slot", string(slot)), zap.Error(err))
		return
	}
	m.sink.ConnectivityChanged(*rec)
}

// Connect establishes a connection to the described device on its slot.
// A second Connect for the same slot while one is still being established
// is rejected, never queued.
func (m *Manager) Connect(ctx context.Context, descriptor model.DeviceDescriptor) (*model.ConnectivityRecord, error) {
	slot, ok := SlotForTransport(descriptor.TransportKind)
	if !ok {
		return nil, model.NewFailure(model.FailureTransportUnsupported,
			"unknown transport "+string(descriptor.TransportKind))
	}
	connector, ok := m.connectors[descriptor.TransportKind]
	if !ok {
		return nil, model.NewFailure(model.FailureTransportUnsupported,
			"no connector registered for "+string(descriptor.TransportKind))
	}

	deviceLog := utils.NewDeviceLogger(m.logger, descriptor.ID, string(slot))

	// Claim the slot. Everything between here and the release below runs
	// without the lock so a slow dial cannot block the other slot.
	m.mu.Lock()
	st := m.slots[slot]
	if st.inFlight {
		m.mu.Unlock()
		return nil, model.NewFailure(model.FailureConnectInProgress,
			"a connection attempt for slot "+string(slot)+" is already in progress")
	}
	st.inFlight = true
	previous := st.link
	st.link = nil
	st.deviceID = ""
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			deviceLog.Warn("Failed to close previous link", zap.Error(err))
		}
	}

	if err := m.store.SetStatus(ctx, slot, model.StatusConnecting); err != nil {
		m.release(slot, nil, "")
		return nil, err
	}
	m.broadcast(ctx, slot)

	dialCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	link, err := connector.Dial(dialCtx, descriptor)
	cancel()
	if err != nil {
		deviceLog.LogConnection("connect", false, err)
		// clear any previous device first so the ERROR record never
		// names a device that no longer holds a link
		serr := m.store.SetDisconnected(ctx, slot)
		if serr == nil {
			serr = m.store.SetStatus(ctx, slot, model.StatusError)
		}
		if serr != nil {
			m.logger.Error("Failed to record error status",
				zap.String("slot", string(slot)), zap.Error(serr))
		}
		m.release(slot, nil, "")
		m.broadcast(ctx, slot)
		return nil, err
	}

	if err := m.store.SetConnected(ctx, slot, descriptor.ID, descriptor.DisplayName); err != nil {
		link.Close()
		m.release(slot, nil, "")
		return nil, err
	}

	m.release(slot, link, descriptor.ID)
	deviceLog.LogConnection("connect", true, nil)
	m.audit.LogConnectionChange(string(slot), descriptor.ID, string(model.StatusConnected))
	m.broadcast(ctx, slot)

	return m.store.Record(ctx, slot)
}

func (m *Manager) release(slot model.Slot, link Link, deviceID string) {
	m.mu.Lock()
	st := m.slots[slot]
	st.inFlight = false
	st.link = link
	st.deviceID = deviceID
	m.mu.Unlock()
}

// Disconnect tears down the connection holding the given device. Unknown or
// already-disconnected device IDs succeed without touching anything.
func (m *Manager) Disconnect(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	var slot model.Slot
	var st *slotState
	for s, candidate := range m.slots {
		if candidate.deviceID == deviceID && candidate.link != nil {
			slot = s
			st = candidate
			break
		}
	}
	if st == nil {
		m.mu.Unlock()
		return nil
	}
	link := st.link
	st.link = nil
	st.deviceID = ""
	m.mu.Unlock()

	if err := link.Close(); err != nil {
		m.logger.Warn("Error closing link on disconnect",
			zap.String("device_id", deviceID), zap.Error(err))
	}
	if err := m.store.SetDisconnected(ctx, slot); err != nil {
		return err
	}
	m.audit.LogConnectionChange(string(slot), deviceID, string(model.StatusDisconnected))
	m.broadcast(ctx, slot)
	return nil
}

// DisconnectSlot tears down whatever the slot holds, if anything
func (m *Manager) DisconnectSlot(ctx context.Context, slot model.Slot) error {
	m.mu.Lock()
	st := m.slots[slot]
	if st == nil || st.link == nil {
		m.mu.Unlock()
		return nil
	}
	deviceID := st.deviceID
	m.mu.Unlock()
	return m.Disconnect(ctx, deviceID)
}

// Record returns the current connectivity record for a slot
func (m *Manager) Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error) {
	return m.store.Record(ctx, slot)
}

// SetPaperProfile persists the printer's paper width so receipt formatting
// survives restarts
func (m *Manager) SetPaperProfile(ctx context.Context, profile model.PaperProfile) error {
	if err := m.store.SetPaperProfile(ctx, model.SlotPrinter, profile); err != nil {
		return err
	}
	m.broadcast(ctx, model.SlotPrinter)
	return nil
}

// Link returns the live link for a slot, or a classified failure when the
// slot is not connected
func (m *Manager) Link(slot model.Slot) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.slots[slot]
	if st == nil || st.link == nil {
		return nil, model.NewFailure(model.FailureSlotNotConnected,
			"slot "+string(slot)+" has no connected device")
	}
	return st.link, nil
}

// printerStatusProbe is the ESC/POS DLE EOT status request
var printerStatusProbe = []byte{0x10, 0x04, 0x01}

// CheckPrinter probes the connected printer and drops the connection when
// the device stopped answering, so the store reflects reality before the
// next print attempt. A disconnected slot is fine and reports nil.
func (m *Manager) CheckPrinter(ctx context.Context) error {
	m.mu.Lock()
	st := m.slots[model.SlotPrinter]
	link := st.link
	deviceID := st.deviceID
	m.mu.Unlock()
	if link == nil {
		return nil
	}

	err := link.Write(ctx, printerStatusProbe)
	if err == nil {
		_, err = link.Read(ctx, 1)
	}
	if err == nil {
		return nil
	}

	// a detected drop ends at DISCONNECTED, the same resting state an
	// explicit disconnect produces; ERROR is reserved for failed connects
	m.logger.Warn("Printer stopped responding, dropping connection",
		zap.String("device_id", deviceID), zap.Error(err))
	if derr := m.Disconnect(ctx, deviceID); derr != nil {
		return derr
	}
	return err
}

// Shutdown closes every open link
func (m *Manager) Shutdown(ctx context.Context) {
	for _, slot := range []model.Slot{model.SlotPrinter, model.SlotTerminal} {
		if err := m.DisconnectSlot(ctx, slot); err != nil {
			m.logger.Warn("Error disconnecting slot during shutdown",
				zap.String("slot", string(slot)), zap.Error(err))
		}
	}
}
