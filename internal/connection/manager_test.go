// internal/connection/manager_test.go
package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terminal-service/internal/model"
	"terminal-service/internal/state"
)

type fakeLink struct {
	mu        sync.Mutex
	kind      model.TransportKind
	written   [][]byte
	readQueue [][]byte
	readErr   error
	writeErr  error
	closed    bool
}

func (l *fakeLink) Transport() model.TransportKind { return l.kind }

func (l *fakeLink) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.written = append(l.written, append([]byte(nil), data...))
	return nil
}

func (l *fakeLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	if len(l.readQueue) == 0 {
		return nil, errors.New("no data")
	}
	next := l.readQueue[0]
	l.readQueue = l.readQueue[1:]
	return next, nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type fakeConnector struct {
	kind    model.TransportKind
	dialErr error
	delay   time.Duration
	link    *fakeLink

	mu    sync.Mutex
	dials int
}

func (c *fakeConnector) Transport() model.TransportKind { return c.kind }

func (c *fakeConnector) Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	c.mu.Lock()
	c.dials++
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, model.WrapFailure(model.FailureHandshakeFailed, "dial cancelled", ctx.Err())
		}
	}
	if c.dialErr != nil {
		return nil, c.dialErr
	}
	link := c.link
	if link == nil {
		link = &fakeLink{kind: c.kind}
	}
	return link, nil
}

type recordingSink struct {
	mu      sync.Mutex
	records []model.ConnectivityRecord
}

func (s *recordingSink) ConnectivityChanged(record model.ConnectivityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) statuses(slot model.Slot) []model.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ConnectionStatus
	for _, r := range s.records {
		if r.Slot == slot {
			out = append(out, r.Status)
		}
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	return NewManager(store, zap.NewNop(), 5*time.Second), store
}

func printerDescriptor() model.DeviceDescriptor {
	return model.DeviceDescriptor{
		ID:            "/dev/ttyUSB0",
		DisplayName:   "TM-T88V",
		TransportKind: model.TransportUSB,
	}
}

func TestConnectSuccess(t *testing.T) {
	mgr, store := newTestManager(t)
	mgr.Register(&fakeConnector{kind: model.TransportUSB})

	rec, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)
	assert.True(t, rec.IsConnected())
	require.NotNil(t, rec.ConnectedDeviceID)
	assert.Equal(t, "/dev/ttyUSB0", *rec.ConnectedDeviceID)
	require.NotNil(t, rec.ConnectedDeviceName)
	assert.Equal(t, "TM-T88V", *rec.ConnectedDeviceName)

	// store observes the result immediately after Connect returns
	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)
}

func TestConnectStatusSequence(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Register(&fakeConnector{kind: model.TransportUSB})
	sink := &recordingSink{}
	mgr.SetEventSink(sink)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	assert.Equal(t,
		[]model.ConnectionStatus{model.StatusConnecting, model.StatusConnected},
		sink.statuses(model.SlotPrinter))
}

func TestConnectFailureEndsInError(t *testing.T) {
	mgr, store := newTestManager(t)
	mgr.Register(&fakeConnector{
		kind:    model.TransportUSB,
		dialErr: model.NewFailure(model.FailureHandshakeFailed, "device did not respond"),
	})
	sink := &recordingSink{}
	mgr.SetEventSink(sink)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.Error(t, err)
	assert.Equal(t, model.FailureHandshakeFailed, model.KindOf(err))

	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, stored.Status)
	assert.Equal(t,
		[]model.ConnectionStatus{model.StatusConnecting, model.StatusError},
		sink.statuses(model.SlotPrinter))
}

func TestConcurrentConnectRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	connector := &fakeConnector{kind: model.TransportUSB, delay: 200 * time.Millisecond}
	mgr.Register(connector)

	firstDone := make(chan error, 1)
	go func() {
		_, err := mgr.Connect(context.Background(), printerDescriptor())
		firstDone <- err
	}()

	// let the first attempt claim the slot
	time.Sleep(50 * time.Millisecond)

	second := printerDescriptor()
	second.ID = "/dev/ttyUSB1"
	_, err := mgr.Connect(context.Background(), second)
	require.Error(t, err)
	assert.Equal(t, model.FailureConnectInProgress, model.KindOf(err))

	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, connector.dials)

	// the slot is free again once the first attempt settled
	_, err = mgr.Connect(context.Background(), second)
	require.NoError(t, err)
}

func TestConnectReplacesExistingDevice(t *testing.T) {
	mgr, store := newTestManager(t)
	first := &fakeLink{kind: model.TransportUSB}
	connector := &fakeConnector{kind: model.TransportUSB, link: first}
	mgr.Register(connector)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	connector.link = &fakeLink{kind: model.TransportUSB}
	second := printerDescriptor()
	second.ID = "/dev/ttyUSB1"
	second.DisplayName = "TSP143"
	rec, err := mgr.Connect(context.Background(), second)
	require.NoError(t, err)

	assert.True(t, first.closed, "previous link should be closed before redialing")
	assert.Equal(t, "/dev/ttyUSB1", *rec.ConnectedDeviceID)

	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", *stored.ConnectedDeviceID)
}

func TestDisconnectIdempotent(t *testing.T) {
	mgr, store := newTestManager(t)
	link := &fakeLink{kind: model.TransportUSB}
	mgr.Register(&fakeConnector{kind: model.TransportUSB, link: link})

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	require.NoError(t, mgr.Disconnect(context.Background(), "/dev/ttyUSB0"))
	assert.True(t, link.closed)

	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, stored.Status)
	assert.Nil(t, stored.ConnectedDeviceID)

	// repeating is a no-op, as is disconnecting an unknown device
	require.NoError(t, mgr.Disconnect(context.Background(), "/dev/ttyUSB0"))
	require.NoError(t, mgr.Disconnect(context.Background(), "never-seen"))
}

func TestConnectUnknownTransport(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Connect(context.Background(), model.DeviceDescriptor{
		ID:            "x",
		TransportKind: model.TransportKind("INFRARED"),
	})
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
}

func TestConnectNoConnectorRegistered(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.Error(t, err)
	assert.Equal(t, model.FailureTransportUnsupported, model.KindOf(err))
}

func TestSlotsIndependent(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Register(&fakeConnector{kind: model.TransportUSB, delay: 200 * time.Millisecond})
	mgr.Register(&fakeConnector{kind: model.TransportInternalNFC})

	printerDone := make(chan error, 1)
	go func() {
		_, err := mgr.Connect(context.Background(), printerDescriptor())
		printerDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// a busy printer slot does not block the terminal slot
	rec, err := mgr.Connect(context.Background(), model.DeviceDescriptor{
		ID:            "internal-reader",
		DisplayName:   "Built-in reader",
		TransportKind: model.TransportInternalNFC,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SlotTerminal, rec.Slot)

	require.NoError(t, <-printerDone)
}

func TestLinkRequiresConnection(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Link(model.SlotPrinter)
	require.Error(t, err)
	assert.Equal(t, model.FailureSlotNotConnected, model.KindOf(err))

	mgr.Register(&fakeConnector{kind: model.TransportUSB})
	_, err = mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	link, err := mgr.Link(model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.TransportUSB, link.Transport())
}

func TestSetPaperProfilePersists(t *testing.T) {
	mgr, store := newTestManager(t)

	require.NoError(t, mgr.SetPaperProfile(context.Background(), model.Paper80mm))

	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.Paper80mm, stored.PaperProfile)
}

func TestCheckPrinterDropsDeadDeviceToDisconnected(t *testing.T) {
	mgr, store := newTestManager(t)
	link := &fakeLink{kind: model.TransportUSB, readErr: errors.New("no answer")}
	mgr.Register(&fakeConnector{kind: model.TransportUSB, link: link})
	sink := &recordingSink{}
	mgr.SetEventSink(sink)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	require.Error(t, mgr.CheckPrinter(context.Background()))

	// a detected drop rests at DISCONNECTED with no device, exactly like
	// an explicit disconnect; ERROR never appears after CONNECTED
	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, stored.Status)
	assert.Nil(t, stored.ConnectedDeviceID)
	assert.Equal(t,
		[]model.ConnectionStatus{model.StatusConnecting, model.StatusConnected, model.StatusDisconnected},
		sink.statuses(model.SlotPrinter))
}

func TestCheckPrinterHealthyDeviceUntouched(t *testing.T) {
	mgr, store := newTestManager(t)
	link := &fakeLink{kind: model.TransportUSB, readQueue: [][]byte{{0x16}}}
	mgr.Register(&fakeConnector{kind: model.TransportUSB, link: link})

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	require.NoError(t, mgr.CheckPrinter(context.Background()))

	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)
}

func TestConnectFailureClearsPreviousDevice(t *testing.T) {
	mgr, store := newTestManager(t)
	connector := &fakeConnector{kind: model.TransportUSB}
	mgr.Register(connector)

	_, err := mgr.Connect(context.Background(), printerDescriptor())
	require.NoError(t, err)

	connector.dialErr = model.NewFailure(model.FailureHandshakeFailed, "device did not respond")
	next := printerDescriptor()
	next.ID = "/dev/ttyUSB1"
	_, err = mgr.Connect(context.Background(), next)
	require.Error(t, err)

	// the failed attempt must not leave the previous device's identity
	// behind: the old link is closed, so the record names nothing
	stored, err := store.Record(context.Background(), model.SlotPrinter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, stored.Status)
	assert.Nil(t, stored.ConnectedDeviceID)
	assert.Nil(t, stored.ConnectedDeviceName)
}
