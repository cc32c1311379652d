package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

func pendingOrder(id string) *models.Order {
	return &models.Order{
		ID:                id,
		Status:            models.StatusPending,
		VehicleClass:      models.ClassSedan,
		ScheduledPickupAt: time.Now().Add(time.Hour),
		CreatedAt:         time.Now(),
	}
}

func TestConcurrentAcceptAdmitsExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateOrder(ctx, pendingOrder("o1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.AcceptOrder(ctx, "o1", driverName(n))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrOrderAlreadyTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Fatalf("expected %d conflicts, got %d", racers-1, conflicts)
	}

	o, err := store.GetOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Status != models.StatusAssigned || o.AssignedDriverID == nil {
		t.Fatalf("winner not recorded: %+v", o)
	}
}

func driverName(n int) string {
	return "driver-" + string(rune('a'+n%26))
}

func TestAcceptUnknownOrder(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.AcceptOrder(context.Background(), "nope", "d1"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestReleaseReturnsOrderToPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateOrder(ctx, pendingOrder("o1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.AcceptOrder(ctx, "o1", "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	o, err := store.ReleaseOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if o.Status != models.StatusPending || o.AssignedDriverID != nil {
		t.Fatalf("release did not clear assignment: %+v", o)
	}
}

func TestReleaseRequiresAssigned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateOrder(ctx, pendingOrder("o1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.ReleaseOrder(ctx, "o1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetStatusRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateOrder(ctx, pendingOrder("o1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.SetStatus(ctx, "o1", models.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending → completed must be rejected, got %v", err)
	}
}

func TestPendingWithFuturePickup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	future := pendingOrder("future")
	future.ScheduledPickupAt = now.Add(time.Hour)
	past := pendingOrder("past")
	past.ScheduledPickupAt = now.Add(-time.Hour)
	taken := pendingOrder("taken")
	taken.ScheduledPickupAt = now.Add(time.Hour)

	for _, o := range []*models.Order{future, past, taken} {
		if err := store.CreateOrder(ctx, o); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := store.AcceptOrder(ctx, "taken", "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, err := store.PendingWithFuturePickup(ctx, now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "future" {
		t.Fatalf("expected only the pending future order, got %+v", got)
	}
}
