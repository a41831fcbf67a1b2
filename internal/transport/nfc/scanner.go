// internal/transport/nfc/scanner.go
package nfc

import (
	"context"

	"go.uber.org/zap"

	"terminal-service/internal/model"
)

// ReaderSource is the card-reader SDK surface the scanner needs: it can say
// whether the internal NFC radio exists and enumerate its readers. The
// payment reader provider implements it.
type ReaderSource interface {
	Supported() bool
	DiscoverReaders(ctx context.Context) ([]model.DeviceDescriptor, error)
}

// Scanner exposes the internal NFC radio through the common discovery
// contract. Unlike USB and BLE this transport is not driven by a user
// "search" action; the payment flow triggers it automatically.
type Scanner struct {
	source ReaderSource
	logger *zap.Logger
}

// NewScanner creates a scanner backed by a reader source
func NewScanner(source ReaderSource, logger *zap.Logger) *Scanner {
	return &Scanner{
		source: source,
		logger: logger.With(zap.String("scanner", "nfc")),
	}
}

// Kind returns the transport this scanner covers
func (s *Scanner) Kind() model.TransportKind {
	return model.TransportInternalNFC
}

// IsAvailable reports whether the device has a usable NFC radio
func (s *Scanner) IsAvailable() bool {
	return s.source.Supported()
}

// Scan enumerates tap-to-pay readers on the internal radio
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	readers, err := s.source.DiscoverReaders(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("NFC reader scan completed", zap.Int("readers_found", len(readers)))
	return readers, nil
}
