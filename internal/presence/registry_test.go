package presence

import (
	"testing"

	"github.com/example/order-dispatch/internal/models"
)

type fakeConn struct{ id string }

func (f *fakeConn) Send(v any) error { return nil }

func TestRegisterReplacesOnReconnect(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{id: "old"}
	r.Register("d1", models.ClassSedan, models.Coord{Lat: 1, Lon: 1}, old)
	fresh := &fakeConn{id: "fresh"}
	r.Register("d1", models.ClassVan, models.Coord{Lat: 2, Lon: 2}, fresh)

	if r.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", r.Len())
	}
	e, ok := r.Get("d1")
	if !ok {
		t.Fatal("entry missing after re-register")
	}
	if e.Conn != fresh {
		t.Fatal("stale connection handle kept after reconnect")
	}
	if e.VehicleClass != models.ClassVan {
		t.Fatalf("expected class van, got %s", e.VehicleClass)
	}
}

func TestUpdateLocationIgnoresAbsentDriver(t *testing.T) {
	r := NewRegistry()
	if r.UpdateLocation("ghost", models.Coord{Lat: 5, Lon: 5}) {
		t.Fatal("update for absent driver must be a no-op")
	}
	if r.Len() != 0 {
		t.Fatal("late location event resurrected a removed entry")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("d1", models.ClassSedan, models.Coord{}, &fakeConn{})
	r.Remove("d1")
	r.Remove("d1")
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	r.Register("d1", models.ClassSedan, models.Coord{Lat: 1, Lon: 1}, &fakeConn{})
	snap := r.Snapshot()
	r.Remove("d1")

	if len(snap) != 1 {
		t.Fatalf("expected snapshot of 1, got %d", len(snap))
	}
	// The snapshot survives the disconnect; only a Get re-check reflects it.
	if _, ok := r.Get("d1"); ok {
		t.Fatal("entry should be gone from the live registry")
	}
}

func TestUpdateLocationMovesDriver(t *testing.T) {
	r := NewRegistry()
	r.Register("d1", models.ClassSedan, models.Coord{Lat: 1, Lon: 1}, &fakeConn{})
	if !r.UpdateLocation("d1", models.Coord{Lat: 9, Lon: 9}) {
		t.Fatal("expected update to apply")
	}
	e, _ := r.Get("d1")
	if e.Location.Lat != 9 || e.Location.Lon != 9 {
		t.Fatalf("location not updated: %+v", e.Location)
	}
}
