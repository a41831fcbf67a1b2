// internal/connection/usb_link.go
package connection

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"

	"terminal-service/internal/model"
)

// usbIDPrefix marks descriptor IDs produced by raw USB discovery. Everything
// else on the USB transport is a serial port path.
const usbIDPrefix = "usb:"

// USBConnector dials every descriptor the USB transport can produce: raw USB
// devices (usb:vvvv:pppp:... IDs) through their bulk endpoints, serial port
// paths through the wrapped serial connector.
type USBConnector struct {
	serial *SerialConnector
}

func NewUSBConnector(serial *SerialConnector) *USBConnector {
	return &USBConnector{serial: serial}
}

func (c *USBConnector) Transport() model.TransportKind {
	return model.TransportUSB
}

func (c *USBConnector) Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	if err := checkTransport(descriptor, model.TransportUSB); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(descriptor.ID, usbIDPrefix) {
		return c.serial.Dial(ctx, descriptor)
	}
	return c.dialRaw(ctx, descriptor)
}

// usbAddress is a parsed raw-USB descriptor ID. Either the serial number or
// the bus/address pair identifies the concrete device.
type usbAddress struct {
	vendor  gousb.ID
	product gousb.ID
	serial  string
	bus     int
	address int
}

// parseUSBAddress parses "usb:vvvv:pppp:SERIAL" and "usb:vvvv:pppp:busB-addrA"
func parseUSBAddress(id string) (*usbAddress, error) {
	parts := strings.SplitN(id, ":", 4)
	if len(parts) != 4 || parts[0] != "usb" || parts[3] == "" {
		return nil, fmt.Errorf("malformed USB device id %q", id)
	}
	vendor, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("malformed vendor id in %q: %w", id, err)
	}
	product, err := strconv.ParseUint(parts[2], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("malformed product id in %q: %w", id, err)
	}

	addr := &usbAddress{
		vendor:  gousb.ID(vendor),
		product: gousb.ID(product),
		bus:     -1,
		address: -1,
	}
	var bus, address int
	if n, _ := fmt.Sscanf(parts[3], "bus%d-addr%d", &bus, &address); n == 2 {
		addr.bus = bus
		addr.address = address
	} else {
		addr.serial = parts[3]
	}
	return addr, nil
}

func (c *USBConnector) dialRaw(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	addr, err := parseUSBAddress(descriptor.ID)
	if err != nil {
		return nil, model.WrapFailure(model.FailureDeviceNotFound,
			"unrecognized USB device id", err)
	}

	usbCtx := gousb.NewContext()
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != addr.vendor || desc.Product != addr.product {
			return false
		}
		if addr.bus >= 0 {
			return desc.Bus == addr.bus && desc.Address == addr.address
		}
		return true
	})
	if err != nil {
		closeDevices(devices)
		usbCtx.Close()
		return nil, model.WrapFailure(model.FailurePermissionDenied,
			"failed to open USB device "+descriptor.ID, err)
	}

	device := c.selectDevice(devices, addr)
	if device == nil {
		closeDevices(devices)
		usbCtx.Close()
		return nil, model.NewFailure(model.FailureDeviceNotFound,
			"USB device "+descriptor.ID+" is no longer attached")
	}

	link, err := newUSBLink(usbCtx, device, descriptor.ID)
	if err != nil {
		device.Close()
		usbCtx.Close()
		return nil, err
	}
	return link, nil
}

// selectDevice picks the device matching the address and closes the rest
func (c *USBConnector) selectDevice(devices []*gousb.Device, addr *usbAddress) *gousb.Device {
	var selected *gousb.Device
	for _, device := range devices {
		if device == nil {
			continue
		}
		if selected == nil && c.matches(device, addr) {
			selected = device
			continue
		}
		device.Close()
	}
	return selected
}

func (c *USBConnector) matches(device *gousb.Device, addr *usbAddress) bool {
	if addr.serial == "" {
		return true // bus/address already matched in the open filter
	}
	serial, err := device.SerialNumber()
	return err == nil && serial == addr.serial
}

func closeDevices(devices []*gousb.Device) {
	for _, device := range devices {
		if device != nil {
			device.Close()
		}
	}
}

type usbLink struct {
	mu     sync.Mutex
	usbCtx *gousb.Context
	device *gousb.Device
	done   func()
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
	id     string
	closed bool
}

// newUSBLink claims the device's default interface and binds its bulk
// endpoints. A device without a bulk OUT endpoint cannot take print data.
func newUSBLink(usbCtx *gousb.Context, device *gousb.Device, id string) (*usbLink, error) {
	if err := device.SetAutoDetach(true); err != nil {
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			"failed to detach kernel driver from "+id, err)
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			"failed to claim interface on "+id, err)
	}

	link := &usbLink{usbCtx: usbCtx, device: device, done: done, id: id}
	for _, endpoint := range intf.Setting.Endpoints {
		if endpoint.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch endpoint.Direction {
		case gousb.EndpointDirectionOut:
			if link.out == nil {
				link.out, err = intf.OutEndpoint(endpoint.Number)
			}
		case gousb.EndpointDirectionIn:
			if link.in == nil {
				link.in, _ = intf.InEndpoint(endpoint.Number)
			}
		}
		if err != nil {
			done()
			return nil, model.WrapFailure(model.FailureHandshakeFailed,
				"failed to open endpoint on "+id, err)
		}
	}
	if link.out == nil {
		done()
		return nil, model.NewFailure(model.FailureHandshakeFailed,
			"device "+id+" exposes no bulk OUT endpoint")
	}
	return link, nil
}

func (l *usbLink) Transport() model.TransportKind {
	return model.TransportUSB
}

func (l *usbLink) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return model.NewFailure(model.FailureTransmissionFailed, "device "+l.id+" is closed")
	}

	written := 0
	for written < len(data) {
		n, err := l.out.WriteContext(ctx, data[written:])
		if err != nil {
			return model.WrapFailure(model.FailureTransmissionFailed,
				"write to "+l.id+" failed", err)
		}
		written += n
	}
	return nil
}

func (l *usbLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("device %s is closed", l.id)
	}
	if l.in == nil {
		return nil, fmt.Errorf("device %s exposes no bulk IN endpoint", l.id)
	}

	buf := make([]byte, maxBytes)
	n, err := l.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", l.id, err)
	}
	return buf[:n], nil
}

func (l *usbLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.done()
	err := l.device.Close()
	if cerr := l.usbCtx.Close(); err == nil {
		err = cerr
	}
	return err
}
