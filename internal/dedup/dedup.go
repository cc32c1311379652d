package dedup

import (
	"context"
	"sync"
)

// Tracker remembers which couriers have already been offered an order, so a
// courier who declined or ignored an offer is not pinged again while the
// order stays offerable. Reset wipes an order's record when it returns to an
// offerable status, giving previously-skipped couriers a fresh shot.
type Tracker interface {
	HasBeenNotified(ctx context.Context, orderID, driverID string) (bool, error)
	MarkNotified(ctx context.Context, orderID, driverID string) error
	Reset(ctx context.Context, orderID string) error
}

// Memory is the in-process tracker used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	offered map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{offered: make(map[string]map[string]struct{})}
}

func (m *Memory) HasBeenNotified(_ context.Context, orderID, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.offered[orderID][driverID]
	return ok, nil
}

func (m *Memory) MarkNotified(_ context.Context, orderID, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.offered[orderID]
	if !ok {
		set = make(map[string]struct{})
		m.offered[orderID] = set
	}
	set[driverID] = struct{}{}
	return nil
}

func (m *Memory) Reset(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.offered, orderID)
	return nil
}
