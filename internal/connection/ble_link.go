// internal/connection/ble_link.go
package connection

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"terminal-service/internal/model"
)

// Bluetooth printers expose the serial-port-emulation service. Devices that
// advertise but lack this service are classic-Bluetooth-only and cannot be
// driven over LE.
var (
	blePrinterService   = bluetooth.New16BitUUID(0x18F0)
	blePrinterWriteChar = bluetooth.New16BitUUID(0x2AF1)
	blePrinterReadChar  = bluetooth.New16BitUUID(0x2AF0)
)

// BLEConnector dials printers over Bluetooth Low Energy. The descriptor ID
// is the peripheral's MAC address as reported during scanning.
type BLEConnector struct {
	adapter *bluetooth.Adapter
}

func NewBLEConnector(adapter *bluetooth.Adapter) *BLEConnector {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	return &BLEConnector{adapter: adapter}
}

func (c *BLEConnector) Transport() model.TransportKind {
	return model.TransportBluetoothLE
}

func (c *BLEConnector) Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	if err := checkTransport(descriptor, model.TransportBluetoothLE); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(descriptor.ID)
	if err != nil {
		return nil, model.WrapFailure(model.FailureDeviceNotFound,
			"invalid bluetooth address "+descriptor.ID, err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(deadlineRemaining(deadline))
	}

	device, err := c.adapter.Connect(addr, params)
	if err != nil {
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			"failed to connect to "+descriptor.ID, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{blePrinterService})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, model.WrapFailure(model.FailureWrongTransport,
			descriptor.ID+" does not expose the LE printer service; it likely requires classic Bluetooth", err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{blePrinterWriteChar, blePrinterReadChar})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			"printer characteristics missing on "+descriptor.ID, err)
	}

	link := &bleLink{device: device, address: descriptor.ID}
	for _, ch := range chars {
		switch ch.UUID() {
		case blePrinterWriteChar:
			w := ch
			link.writeChar = &w
		case blePrinterReadChar:
			r := ch
			link.readChar = &r
		}
	}
	if link.writeChar == nil {
		device.Disconnect()
		return nil, model.NewFailure(model.FailureHandshakeFailed,
			"printer write characteristic missing on "+descriptor.ID)
	}
	return link, nil
}

type bleLink struct {
	mu        sync.Mutex
	device    bluetooth.Device
	address   string
	writeChar *bluetooth.DeviceCharacteristic
	readChar  *bluetooth.DeviceCharacteristic
	closed    bool
}

// bleChunkSize stays under the minimum ATT MTU payload
const bleChunkSize = 20

func (l *bleLink) Transport() model.TransportKind {
	return model.TransportBluetoothLE
}

func (l *bleLink) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return model.NewFailure(model.FailureTransmissionFailed, "link to "+l.address+" is closed")
	}

	for offset := 0; offset < len(data); offset += bleChunkSize {
		if err := ctx.Err(); err != nil {
			return model.WrapFailure(model.FailureTransmissionFailed,
				"write to "+l.address+" cancelled", err)
		}
		end := offset + bleChunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := l.writeChar.WriteWithoutResponse(data[offset:end]); err != nil {
			return model.WrapFailure(model.FailureTransmissionFailed,
				"write to "+l.address+" failed", err)
		}
	}
	return nil
}

func (l *bleLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("link to %s is closed", l.address)
	}
	if l.readChar == nil {
		return nil, fmt.Errorf("printer at %s has no readable characteristic", l.address)
	}

	buf := make([]byte, maxBytes)
	n, err := l.readChar.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", l.address, err)
	}
	return buf[:n], nil
}

func (l *bleLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.device.Disconnect()
}
