// internal/transport/scanner_test.go
package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terminal-service/internal/model"
)

type fakeScanner struct {
	kind      model.TransportKind
	available bool
	devices   []model.DeviceDescriptor
	scanErr   error
	scans     int
}

func (s *fakeScanner) Kind() model.TransportKind { return s.kind }
func (s *fakeScanner) IsAvailable() bool         { return s.available }

func (s *fakeScanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	s.scans++
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.devices, nil
}

func TestAvailableTransportsReprobed(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	usb := &fakeScanner{kind: model.TransportUSB, available: true}
	ble := &fakeScanner{kind: model.TransportBluetoothLE, available: false}
	mgr.Register(usb)
	mgr.Register(ble)

	assert.ElementsMatch(t, []model.TransportKind{model.TransportUSB}, mgr.AvailableTransports())

	// availability changes between calls, e.g. the user toggled bluetooth
	ble.available = true
	assert.ElementsMatch(t,
		[]model.TransportKind{model.TransportUSB, model.TransportBluetoothLE},
		mgr.AvailableTransports())
}

func TestDiscoverReturnsDescriptors(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	mgr.Register(&fakeScanner{
		kind:      model.TransportUSB,
		available: true,
		devices: []model.DeviceDescriptor{
			{ID: "/dev/ttyUSB0", DisplayName: "TM-T88V", TransportKind: model.TransportUSB},
		},
	})

	devices, err := mgr.Discover(context.Background(), model.TransportUSB)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].ID)
}

func TestDiscoverEmptyResultIsNotAnError(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	mgr.Register(&fakeScanner{kind: model.TransportUSB, available: true})

	devices, err := mgr.Discover(context.Background(), model.TransportUSB)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDiscoverUnregisteredTransport(t *testing.T) {
	mgr := NewManager(zap.NewNop())

	_, err := mgr.Discover(context.Background(), model.TransportBluetoothLE)
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
}

func TestDiscoverUnavailableTransport(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	scanner := &fakeScanner{kind: model.TransportUSB, available: false}
	mgr.Register(scanner)

	_, err := mgr.Discover(context.Background(), model.TransportUSB)
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
	assert.Zero(t, scanner.scans, "unavailable transport must not be scanned")
}

func TestDiscoverPropagatesClassifiedFailure(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	mgr.Register(&fakeScanner{
		kind:      model.TransportBluetoothLE,
		available: true,
		scanErr:   model.NewFailure(model.FailurePermissionDenied, "bluetooth permission missing"),
	})

	_, err := mgr.Discover(context.Background(), model.TransportBluetoothLE)
	require.Error(t, err)
	assert.Equal(t, model.FailurePermissionDenied, model.KindOf(err))
}

func TestRegisterRejectsDuplicateKind(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	first := &fakeScanner{kind: model.TransportUSB, available: true, devices: []model.DeviceDescriptor{
		{ID: "/dev/ttyUSB0", DisplayName: "TM-T88V", TransportKind: model.TransportUSB},
	}}
	require.NoError(t, mgr.Register(first))
	require.Error(t, mgr.Register(&fakeScanner{kind: model.TransportUSB, available: true}))

	// the first registration keeps owning the kind
	devices, err := mgr.Discover(context.Background(), model.TransportUSB)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 1, first.scans)
}

func TestCompositeMergesSources(t *testing.T) {
	serial := &fakeScanner{kind: model.TransportUSB, available: true, devices: []model.DeviceDescriptor{
		{ID: "/dev/ttyUSB0", DisplayName: "TM-T88V", TransportKind: model.TransportUSB},
	}}
	raw := &fakeScanner{kind: model.TransportUSB, available: true, devices: []model.DeviceDescriptor{
		{ID: "usb:04b8:0203:bus1-addr4", DisplayName: "Epson TM-T88V", TransportKind: model.TransportUSB},
	}}
	composite := NewComposite(model.TransportUSB, zap.NewNop(), serial, raw)

	assert.Equal(t, model.TransportUSB, composite.Kind())
	assert.True(t, composite.IsAvailable())

	devices, err := composite.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, 1, serial.scans)
	assert.Equal(t, 1, raw.scans)
}

func TestCompositeSkipsUnavailableSource(t *testing.T) {
	up := &fakeScanner{kind: model.TransportUSB, available: true, devices: []model.DeviceDescriptor{
		{ID: "/dev/ttyUSB0", DisplayName: "TM-T88V", TransportKind: model.TransportUSB},
	}}
	down := &fakeScanner{kind: model.TransportUSB, available: false}
	composite := NewComposite(model.TransportUSB, zap.NewNop(), up, down)

	devices, err := composite.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Zero(t, down.scans)
}

func TestCompositeOneFailingSourceDegrades(t *testing.T) {
	healthy := &fakeScanner{kind: model.TransportUSB, available: true, devices: []model.DeviceDescriptor{
		{ID: "/dev/ttyUSB0", DisplayName: "TM-T88V", TransportKind: model.TransportUSB},
	}}
	broken := &fakeScanner{
		kind:      model.TransportUSB,
		available: true,
		scanErr:   model.NewFailure(model.FailurePermissionDenied, "usbfs access denied"),
	}
	composite := NewComposite(model.TransportUSB, zap.NewNop(), broken, healthy)

	devices, err := composite.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
}

func TestCompositeAllSourcesFailing(t *testing.T) {
	broken := &fakeScanner{
		kind:      model.TransportUSB,
		available: true,
		scanErr:   model.NewFailure(model.FailurePermissionDenied, "usbfs access denied"),
	}
	composite := NewComposite(model.TransportUSB, zap.NewNop(), broken)

	_, err := composite.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.FailurePermissionDenied, model.KindOf(err))
}

func TestCompositeCancelledScanPropagates(t *testing.T) {
	cancelled := &fakeScanner{
		kind:      model.TransportUSB,
		available: true,
		scanErr:   model.NewFailure(model.FailureScanCancelled, "scan cancelled"),
	}
	untouched := &fakeScanner{kind: model.TransportUSB, available: true}
	composite := NewComposite(model.TransportUSB, zap.NewNop(), cancelled, untouched)

	_, err := composite.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.FailureScanCancelled, model.KindOf(err))
	assert.Zero(t, untouched.scans)
}
