// internal/model/device.go
package model

// TransportKind represents a physical/logical channel for reaching a peripheral
type TransportKind string

const (
	TransportUSB         TransportKind = "USB"
	TransportBluetoothLE TransportKind = "BLUETOOTH_LE"
	TransportInternalNFC TransportKind = "INTERNAL_NFC"
)

// Valid reports whether the transport kind is one of the known transports
func (t TransportKind) Valid() bool {
	switch t {
	case TransportUSB, TransportBluetoothLE, TransportInternalNFC:
		return true
	}
	return false
}

// Slot represents a logical connection role. Each slot holds at most one
// connected device at a time.
type Slot string

const (
	SlotPrinter  Slot = "PRINTER"
	SlotTerminal Slot = "TERMINAL"
)

// Valid reports whether the slot is a known connection role
func (s Slot) Valid() bool {
	return s == SlotPrinter || s == SlotTerminal
}

// ConnectionStatus represents the current status of a connection slot
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusSearching    ConnectionStatus = "SEARCHING"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusError        ConnectionStatus = "ERROR"
)

// PaperProfile represents the receipt paper width of a printer
type PaperProfile string

const (
	Paper58mm PaperProfile = "58mm"
	Paper80mm PaperProfile = "80mm"
)

// DeviceDescriptor is an identity snapshot of one discoverable peripheral,
// scoped to the transport that found it. It is produced by a discovery scan
// and carries no live handle to the device.
type DeviceDescriptor struct {
	ID            string        `json:"id"`
	DisplayName   string        `json:"display_name"`
	TransportKind TransportKind `json:"transport_kind"`
}

// ConnectivityRecord is the persisted view of one connection slot. It is
// owned by the state store and mutated only through the connection manager.
type ConnectivityRecord struct {
	Slot                Slot             `json:"slot"`
	ConnectedDeviceID   *string          `json:"connected_device_id"`
	ConnectedDeviceName *string          `json:"connected_device_name"`
	Status              ConnectionStatus `json:"status"`
	PaperProfile        PaperProfile     `json:"paper_profile,omitempty"`
}

// IsConnected reports whether the slot currently holds a connected device
func (r *ConnectivityRecord) IsConnected() bool {
	return r.Status == StatusConnected && r.ConnectedDeviceID != nil
}
