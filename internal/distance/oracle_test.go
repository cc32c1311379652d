package distance

import (
	"context"
	"testing"

	"github.com/example/order-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	if d := Haversine(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude is roughly 111 km.
	d := Haversine(0, 0, 1, 0)
	if d < 110e3 || d > 112e3 {
		t.Fatalf("expected ~111km, got %f", d)
	}
}

func TestEstimatorUsesConfiguredSpeed(t *testing.T) {
	e := &Estimator{SpeedMps: 10}
	res, err := e.Distance(context.Background(), models.Coord{}, models.Coord{Lat: 1})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	wantMin := res.Meters / 10 / 60
	if res.DurationMinutes != wantMin {
		t.Fatalf("duration %f does not match distance/speed %f", res.DurationMinutes, wantMin)
	}
}

func TestEstimatorDefaultsSpeed(t *testing.T) {
	e := &Estimator{}
	res, err := e.Distance(context.Background(), models.Coord{}, models.Coord{Lat: 1})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.DurationMinutes <= 0 {
		t.Fatalf("expected positive duration, got %f", res.DurationMinutes)
	}
}
