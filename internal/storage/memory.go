package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

// MemoryStore keeps orders in a mutex-guarded map. It carries the same race
// semantics as the Postgres store: AcceptOrder admits exactly one winner.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.Order)}
}

func (m *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = *o
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *MemoryStore) AcceptOrder(_ context.Context, orderID, driverID string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if o.Status != models.StatusPending {
		return models.Order{}, ErrOrderAlreadyTaken
	}
	o.Status = models.StatusAssigned
	o.AssignedDriverID = &driverID
	m.orders[orderID] = o
	return o, nil
}

func (m *MemoryStore) ReleaseOrder(_ context.Context, orderID string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if o.Status != models.StatusAssigned {
		return models.Order{}, ErrInvalidTransition
	}
	o.Status = models.StatusPending
	o.AssignedDriverID = nil
	m.orders[orderID] = o
	return o, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, orderID string, next models.OrderStatus) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if !o.Status.CanTransition(next) {
		return models.Order{}, ErrInvalidTransition
	}
	o.Status = next
	if next == models.StatusPending {
		o.AssignedDriverID = nil
	}
	m.orders[orderID] = o
	return o, nil
}

// MemoryDirectory is a seedable DriverDirectory for tests and local runs.
type MemoryDirectory struct {
	mu      sync.Mutex
	drivers map[string]models.Driver
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{drivers: make(map[string]models.Driver)}
}

func (m *MemoryDirectory) Put(d models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
}

func (m *MemoryDirectory) GetDriver(_ context.Context, id string) (models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, ErrDriverNotFound
	}
	return d, nil
}

func (m *MemoryStore) PendingWithFuturePickup(_ context.Context, now time.Time) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.Status == models.StatusPending && o.ScheduledPickupAt.After(now) {
			out = append(out, o)
		}
	}
	return out, nil
}
