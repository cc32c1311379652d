package presence

import (
	"sync"
	"time"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/observability"
)

// Entry is the live-connection fact for one courier. It exists exactly as
// long as the courier holds a live connection.
type Entry struct {
	DriverID     string
	VehicleClass models.VehicleClass
	Location     models.Coord
	Conn         broker.Conn
	LastSeen     time.Time
}

// Registry tracks currently-connected couriers. The live map is never exposed:
// callers get value snapshots, so a courier disconnecting mid-match cannot be
// observed through a stale reference.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry), now: time.Now}
}

// Register adds or replaces the entry for a courier. Replacing handles
// reconnects: the stale connection handle is dropped rather than leaked.
func (r *Registry) Register(driverID string, class models.VehicleClass, loc models.Coord, conn broker.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[driverID]; !exists {
		observability.DriversConnected.Inc()
	}
	r.entries[driverID] = Entry{
		DriverID:     driverID,
		VehicleClass: class,
		Location:     loc,
		Conn:         conn,
		LastSeen:     r.now(),
	}
}

// UpdateLocation records a new position. A late or duplicate event for a
// courier that already disconnected must not resurrect the entry, so this is
// a no-op (false) when the courier is absent.
func (r *Registry) UpdateLocation(driverID string, loc models.Coord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[driverID]
	if !ok {
		return false
	}
	e.Location = loc
	e.LastSeen = r.now()
	r.entries[driverID] = e
	return true
}

// Remove deletes the entry. Safe to call more than once per disconnect.
func (r *Registry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[driverID]; ok {
		delete(r.entries, driverID)
		observability.DriversConnected.Dec()
	}
}

// Get returns the current entry for one courier. Matching uses this to
// re-validate a candidate after an awaited distance lookup.
func (r *Registry) Get(driverID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[driverID]
	return e, ok
}

// Snapshot returns value copies of all current entries.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
