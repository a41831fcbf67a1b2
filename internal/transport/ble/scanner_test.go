// internal/transport/ble/scanner_test.go
package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"terminal-service/internal/model"
)

type fakeRadio struct {
	mu          sync.Mutex
	enableErr   error
	enableCalls int
	scanErr     error
	stopCalls   int
	stop        chan struct{}
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{stop: make(chan struct{})}
}

func (r *fakeRadio) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enableCalls++
	return r.enableErr
}

func (r *fakeRadio) Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	r.mu.Lock()
	err := r.scanErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	<-r.stop
	return nil
}

func (r *fakeRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls++
	if r.stopCalls == 1 {
		close(r.stop)
	}
	return nil
}

func (r *fakeRadio) setEnableErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enableErr = err
}

func newTestScanner(radio *fakeRadio, timeout time.Duration) *Scanner {
	return newScanner(radio, zap.NewNop(), &Config{ScanTimeout: timeout})
}

func TestIsAvailableReprobesAdapter(t *testing.T) {
	radio := newFakeRadio()
	scanner := newTestScanner(radio, time.Second)

	assert.True(t, scanner.IsAvailable())

	// the radio going away after a successful probe must show up on the
	// very next call
	radio.setEnableErr(errors.New("adapter powered off"))
	assert.False(t, scanner.IsAvailable())

	radio.setEnableErr(nil)
	assert.True(t, scanner.IsAvailable())
	assert.Equal(t, 3, radio.enableCalls)
}

func TestScanSurfacesAdapterErrorImmediately(t *testing.T) {
	radio := newFakeRadio()
	radio.scanErr = errors.New("hci busy")
	scanner := newTestScanner(radio, 30*time.Second)

	start := time.Now()
	_, err := scanner.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScanStopsAtTimeout(t *testing.T) {
	radio := newFakeRadio()
	scanner := newTestScanner(radio, 50*time.Millisecond)

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, 1, radio.stopCalls)
}

func TestScanCancelledClassified(t *testing.T) {
	radio := newFakeRadio()
	scanner := newTestScanner(radio, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := scanner.Scan(ctx)
	require.Error(t, err)
	assert.Equal(t, model.FailureScanCancelled, model.KindOf(err))
}

func TestScanEnableFailureClassified(t *testing.T) {
	radio := newFakeRadio()
	radio.setEnableErr(errors.New("no adapter"))
	scanner := newTestScanner(radio, time.Second)

	_, err := scanner.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
}
