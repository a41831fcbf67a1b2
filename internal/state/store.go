// internal/state/store.go
package state

import (
	"context"
	"sync"

	"terminal-service/internal/model"
)

// Store is the connectivity state store: the single source of truth for what
// is currently connected per slot. It is mutated only by the connection
// manager; writes are visible to any reader as soon as the call returns.
type Store interface {
	Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error)
	SetConnected(ctx context.Context, slot model.Slot, deviceID, deviceName string) error
	SetDisconnected(ctx context.Context, slot model.Slot) error
	SetStatus(ctx context.Context, slot model.Slot, status model.ConnectionStatus) error
	SetPaperProfile(ctx context.Context, slot model.Slot, profile model.PaperProfile) error
	Close() error
}

// MemoryStore is an in-process Store. It backs tests and environments where
// persistence across restarts is not needed.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[model.Slot]*model.ConnectivityRecord
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[model.Slot]*model.ConnectivityRecord),
	}
}

func (s *MemoryStore) record(slot model.Slot) *model.ConnectivityRecord {
	rec, ok := s.records[slot]
	if !ok {
		rec = &model.ConnectivityRecord{Slot: slot, Status: model.StatusDisconnected}
		s.records[slot] = rec
	}
	return rec
}

// Record returns the current record for a slot. Slots start out disconnected.
func (s *MemoryStore) Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[slot]
	if !ok {
		return &model.ConnectivityRecord{Slot: slot, Status: model.StatusDisconnected}, nil
	}
	copied := *rec
	return &copied, nil
}

// SetConnected marks a slot as connected to a device
func (s *MemoryStore) SetConnected(ctx context.Context, slot model.Slot, deviceID, deviceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(slot)
	rec.ConnectedDeviceID = &deviceID
	rec.ConnectedDeviceName = &deviceName
	rec.Status = model.StatusConnected
	return nil
}

// SetDisconnected clears a slot back to its disconnected state
func (s *MemoryStore) SetDisconnected(ctx context.Context, slot model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(slot)
	rec.ConnectedDeviceID = nil
	rec.ConnectedDeviceName = nil
	rec.Status = model.StatusDisconnected
	return nil
}

// SetStatus updates only the status of a slot
func (s *MemoryStore) SetStatus(ctx context.Context, slot model.Slot, status model.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(slot).Status = status
	return nil
}

// SetPaperProfile records the paper width of the printer slot
func (s *MemoryStore) SetPaperProfile(ctx context.Context, slot model.Slot, profile model.PaperProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(slot).PaperProfile = profile
	return nil
}

// Close is a no-op for the in-process store
func (s *MemoryStore) Close() error {
	return nil
}
