// internal/transport/ble/scanner.go
package ble

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"terminal-service/internal/model"
)

// radio is the adapter surface the scanner needs. *bluetooth.Adapter
// satisfies it; tests inject a fake.
type radio interface {
	Enable() error
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// Scanner discovers printers advertising over Bluetooth Low Energy
type Scanner struct {
	adapter radio
	logger  *zap.Logger
	config  *Config
}

// Config for the BLE scanner
type Config struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
}

// NewScanner creates a new BLE scanner on the host's default adapter
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	return newScanner(bluetooth.DefaultAdapter, logger, config)
}

func newScanner(adapter radio, logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{ScanTimeout: 30 * time.Second}
	}

	return &Scanner{
		adapter: adapter,
		logger:  logger.With(zap.String("scanner", "ble")),
		config:  config,
	}
}

// Kind returns the transport this scanner covers
func (s *Scanner) Kind() model.TransportKind {
	return model.TransportBluetoothLE
}

// IsAvailable probes the BLE adapter on every call; the radio can be
// switched off between calls, so the result is never cached. Enabling an
// already-enabled adapter is a no-op, which makes Enable the live probe.
func (s *Scanner) IsAvailable() bool {
	return s.adapter.Enable() == nil
}

// Scan runs an advertisement scan until the timeout elapses or the context
// is cancelled. The scan session is always stopped before returning so no
// radio resource outlives a cancelled discovery. An adapter error surfaces
// immediately instead of waiting out the timeout.
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	if err := s.adapter.Enable(); err != nil {
		return nil, model.WrapFailure(model.FailureTransportUnsupported,
			"bluetooth adapter unavailable", err)
	}

	s.logger.Info("Starting BLE scan", zap.Duration("timeout", s.config.ScanTimeout))

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		seen       = make(map[string]bool)
		discovered []model.DeviceDescriptor
	)

	done := make(chan error, 1)
	go func() {
		done <- s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if name == "" {
				// Nameless advertisements are almost never printers
				return
			}

			addr := result.Address.String()
			mu.Lock()
			defer mu.Unlock()
			if seen[addr] {
				return
			}
			seen[addr] = true
			discovered = append(discovered, model.DeviceDescriptor{
				ID:            addr,
				DisplayName:   name,
				TransportKind: model.TransportBluetoothLE,
			})
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, model.WrapFailure(model.FailureTransportUnsupported, "BLE scan failed", err)
		}
	case <-scanCtx.Done():
		if err := s.adapter.StopScan(); err != nil {
			s.logger.Warn("Failed to stop BLE scan", zap.Error(err))
		}
		if err := <-done; err != nil {
			return nil, model.WrapFailure(model.FailureTransportUnsupported, "BLE scan failed", err)
		}
	}

	if ctx.Err() != nil {
		return nil, model.WrapFailure(model.FailureScanCancelled, "BLE scan cancelled", ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	s.logger.Info("BLE scan completed", zap.Int("devices_found", len(discovered)))
	return discovered, nil
}
