package distance

import (
	"context"
	"math"

	"github.com/example/order-dispatch/internal/models"
)

// Oracle answers driving distance/duration queries between two points.
// Implementations are expected to fail loudly: a caller that cannot get a
// result for a candidate drops that candidate, it never guesses.
type Oracle interface {
	Distance(ctx context.Context, from, to models.Coord) (models.DistanceResult, error)
}

// Estimator is a straight-line oracle for local runs and tests: haversine
// distance at a fixed average speed. In production OSRM is used instead.
type Estimator struct {
	SpeedMps float64
}

func (e *Estimator) Distance(_ context.Context, from, to models.Coord) (models.DistanceResult, error) {
	speed := e.SpeedMps
	if speed <= 0 {
		speed = 8.0 // ~28.8 km/h default city speed
	}
	m := Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
	return models.DistanceResult{
		Meters:          m,
		DurationMinutes: m / speed / 60,
	}, nil
}

// Haversine distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
