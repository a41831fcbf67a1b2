// internal/transport/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"terminal-service/internal/model"
)

const usbClassPrinter = 7

// Scanner discovers receipt printers on the USB bus
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	config       *Config
}

// Config for the USB scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	FilterByClass bool          `json:"filter_by_class"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:   10 * time.Second,
			FilterByClass: true,
		}
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewDeviceDatabase(),
		config:       config,
	}
}

// Kind returns the transport this scanner covers
func (s *Scanner) Kind() model.TransportKind {
	return model.TransportUSB
}

// IsAvailable checks if the USB subsystem is accessible
func (s *Scanner) IsAvailable() bool {
	testCtx := gousb.NewContext()
	defer testCtx.Close()

	_, err := testCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return false // access probe only, open nothing
	})
	return err == nil
}

// Scan enumerates USB devices that look like receipt printers
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB device scan")

	scanCtx := ctx
	if s.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.config.ScanTimeout)
		defer cancel()
	}

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := usbCtx.OpenDevices(s.deviceFilter())
	if err != nil {
		return nil, model.WrapFailure(model.FailurePermissionDenied,
			"failed to enumerate USB devices", err)
	}
	defer s.closeAllDevices(devices)

	discovered := make([]model.DeviceDescriptor, 0, len(devices))
	for _, device := range devices {
		select {
		case <-scanCtx.Done():
			if ctx.Err() != nil {
				return nil, model.WrapFailure(model.FailureScanCancelled, "USB scan cancelled", ctx.Err())
			}
			return discovered, nil
		default:
		}

		discovered = append(discovered, s.describe(device))
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

// deviceFilter selects known printer vendors and printer-class devices
func (s *Scanner) deviceFilter() func(*gousb.DeviceDesc) bool {
	return func(desc *gousb.DeviceDesc) bool {
		if s.knownDevices.IsKnownVendor(desc.Vendor) {
			return true
		}
		if s.config.FilterByClass && desc.Class == usbClassPrinter {
			return true
		}
		return false
	}
}

// describe builds a descriptor for an opened device
func (s *Scanner) describe(device *gousb.Device) model.DeviceDescriptor {
	desc := device.Desc

	name := s.knownDevices.ProductName(desc.Vendor, desc.Product)
	if name == "" {
		if product, err := device.Product(); err == nil && product != "" {
			name = product
		} else {
			name = fmt.Sprintf("USB printer %04x:%04x", uint16(desc.Vendor), uint16(desc.Product))
		}
	}

	id := fmt.Sprintf("usb:%04x:%04x:bus%d-addr%d",
		uint16(desc.Vendor), uint16(desc.Product), desc.Bus, desc.Address)
	if serial, err := device.SerialNumber(); err == nil && serial != "" {
		id = fmt.Sprintf("usb:%04x:%04x:%s", uint16(desc.Vendor), uint16(desc.Product), serial)
	}

	return model.DeviceDescriptor{
		ID:            id,
		DisplayName:   name,
		TransportKind: model.TransportUSB,
	}
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device",
				zap.Int("device_index", i),
				zap.Error(err),
			)
		}
	}
}
