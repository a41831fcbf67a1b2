// internal/state/store_test.go
package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terminal-service/internal/model"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "connectivity.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestRecordDefaultsToDisconnected(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := store.Record(context.Background(), model.SlotPrinter)
			require.NoError(t, err)
			assert.Equal(t, model.SlotPrinter, rec.Slot)
			assert.Equal(t, model.StatusDisconnected, rec.Status)
			assert.Nil(t, rec.ConnectedDeviceID)
			assert.False(t, rec.IsConnected())
		})
	}
}

func TestSetConnectedVisibleImmediately(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))

			rec, err := store.Record(ctx, model.SlotPrinter)
			require.NoError(t, err)
			assert.True(t, rec.IsConnected())
			assert.Equal(t, "/dev/ttyUSB0", *rec.ConnectedDeviceID)
			assert.Equal(t, "TM-T88V", *rec.ConnectedDeviceName)
		})
	}
}

func TestSetDisconnectedClearsDevice(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))
			require.NoError(t, store.SetDisconnected(ctx, model.SlotPrinter))

			rec, err := store.Record(ctx, model.SlotPrinter)
			require.NoError(t, err)
			assert.Equal(t, model.StatusDisconnected, rec.Status)
			assert.Nil(t, rec.ConnectedDeviceID)
			assert.Nil(t, rec.ConnectedDeviceName)
		})
	}
}

func TestSetStatusDoesNotTouchDevice(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))
			require.NoError(t, store.SetStatus(ctx, model.SlotPrinter, model.StatusError))

			rec, err := store.Record(ctx, model.SlotPrinter)
			require.NoError(t, err)
			assert.Equal(t, model.StatusError, rec.Status)
			require.NotNil(t, rec.ConnectedDeviceID)
			assert.Equal(t, "/dev/ttyUSB0", *rec.ConnectedDeviceID)
		})
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))
			require.NoError(t, store.SetConnected(ctx, model.SlotTerminal, "reader-1", "Built-in reader"))
			require.NoError(t, store.SetDisconnected(ctx, model.SlotPrinter))

			terminal, err := store.Record(ctx, model.SlotTerminal)
			require.NoError(t, err)
			assert.True(t, terminal.IsConnected())
		})
	}
}

func TestPaperProfileSurvivesReconnect(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetPaperProfile(ctx, model.SlotPrinter, model.Paper58mm))
			require.NoError(t, store.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))
			require.NoError(t, store.SetDisconnected(ctx, model.SlotPrinter))

			rec, err := store.Record(ctx, model.SlotPrinter)
			require.NoError(t, err)
			assert.Equal(t, model.Paper58mm, rec.PaperProfile)
		})
	}
}

func TestSQLiteStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.SetConnected(ctx, model.SlotPrinter, "/dev/ttyUSB0", "TM-T88V"))
	require.NoError(t, first.SetPaperProfile(ctx, model.SlotPrinter, model.Paper58mm))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	rec, err := second.Record(ctx, model.SlotPrinter)
	require.NoError(t, err)
	assert.True(t, rec.IsConnected())
	assert.Equal(t, model.Paper58mm, rec.PaperProfile)
}
