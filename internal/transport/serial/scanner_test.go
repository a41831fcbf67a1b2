// internal/transport/serial/scanner_test.go
package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsLikelyPrinterPort(t *testing.T) {
	likely := []string{"/dev/ttyUSB0", "/dev/ttyACM1", "COM3", "/dev/cu.usbserial-1420"}
	for _, port := range likely {
		assert.True(t, IsLikelyPrinterPort(port), port)
	}

	unlikely := []string{"/dev/ttyS0", "/dev/tty1", "/dev/null"}
	for _, port := range unlikely {
		assert.False(t, IsLikelyPrinterPort(port), port)
	}
}

func TestMatchesConfiguredPatterns(t *testing.T) {
	scanner := NewScanner(zap.NewNop(), &Config{
		PortPatterns: []string{"/dev/ttyUSB*", "/dev/ttyACM*"},
	})

	assert.True(t, scanner.matchesPatterns("/dev/ttyUSB0"))
	assert.True(t, scanner.matchesPatterns("/dev/ttyACM2"))
	assert.False(t, scanner.matchesPatterns("/dev/ttyS0"))
	assert.False(t, scanner.matchesPatterns("/dev/video0"))
}

func TestDefaultPatternsApplied(t *testing.T) {
	scanner := NewScanner(zap.NewNop(), &Config{})
	assert.NotEmpty(t, scanner.config.PortPatterns)
}
