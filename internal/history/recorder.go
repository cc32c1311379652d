package history

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

// Recorder is the append-only audit trail of order-status transitions. Every
// status-changing operation appends exactly one entry; entries are never
// updated or deleted.
type Recorder interface {
	Append(ctx context.Context, e models.StatusHistoryEntry) error
}

// MemoryRecorder keeps entries in creation order. Used in tests and when no
// database is configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []models.StatusHistoryEntry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Append(_ context.Context, e models.StatusHistoryEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the log in creation order.
func (m *MemoryRecorder) Entries() []models.StatusHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StatusHistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ForOrder returns the entries for one order, in creation order.
func (m *MemoryRecorder) ForOrder(orderID string) []models.StatusHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StatusHistoryEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}
