// internal/transport/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"terminal-service/internal/model"
)

// Scanner discovers printers attached over USB/serial ports
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for the serial scanner
type Config struct {
	ScanTimeout  time.Duration `json:"scan_timeout"`
	PortPatterns []string      `json:"port_patterns"`
}

// NewScanner creates a new serial port scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:  10 * time.Second,
			PortPatterns: defaultPortPatterns(),
		}
	}
	if len(config.PortPatterns) == 0 {
		config.PortPatterns = defaultPortPatterns()
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		config: config,
	}
}

// Kind returns the transport this scanner covers
func (s *Scanner) Kind() model.TransportKind {
	return model.TransportUSB
}

// IsAvailable checks if serial port enumeration works on this host
func (s *Scanner) IsAvailable() bool {
	_, err := serial.GetPortsList()
	return err == nil
}

// Scan enumerates serial ports matching the configured patterns
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	s.logger.Info("Starting serial port scan")

	scanCtx := ctx
	if s.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.config.ScanTimeout)
		defer cancel()
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, model.WrapFailure(model.FailureTransportUnsupported,
			"failed to enumerate serial ports", err)
	}

	discovered := make([]model.DeviceDescriptor, 0, len(ports))
	for _, port := range ports {
		select {
		case <-scanCtx.Done():
			if ctx.Err() != nil {
				return nil, model.WrapFailure(model.FailureScanCancelled, "serial scan cancelled", ctx.Err())
			}
			return discovered, nil
		default:
		}

		if !s.matchesPatterns(port) && !IsLikelyPrinterPort(port) {
			continue
		}

		discovered = append(discovered, model.DeviceDescriptor{
			ID:            port,
			DisplayName:   displayNameFor(port),
			TransportKind: model.TransportUSB,
		})
	}

	s.logger.Info("Serial scan completed", zap.Int("devices_found", len(discovered)))
	return discovered, nil
}

// matchesPatterns filters ports to ones plausibly backed by a printer
func (s *Scanner) matchesPatterns(port string) bool {
	for _, pattern := range s.config.PortPatterns {
		if ok, _ := filepath.Match(pattern, port); ok {
			return true
		}
	}
	return false
}

func displayNameFor(port string) string {
	base := filepath.Base(port)
	return fmt.Sprintf("Serial printer (%s)", base)
}

// defaultPortPatterns returns the port name patterns for the host OS
func defaultPortPatterns() []string {
	switch runtime.GOOS {
	case "windows":
		patterns := make([]string, 0, 16)
		for i := 1; i <= 16; i++ {
			patterns = append(patterns, fmt.Sprintf("COM%d", i))
		}
		return patterns
	case "darwin":
		return []string{"/dev/tty.usbserial*", "/dev/tty.usbmodem*", "/dev/cu.usbserial*"}
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*"}
	}
}

// IsLikelyPrinterPort reports whether a port name looks like a USB-attached
// device rather than a built-in UART.
func IsLikelyPrinterPort(port string) bool {
	lower := strings.ToLower(port)
	return strings.Contains(lower, "usb") || strings.Contains(lower, "acm") || strings.HasPrefix(lower, "com")
}
