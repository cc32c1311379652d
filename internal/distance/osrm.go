package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

// OSRMClient performs route lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Distance queries OSRM /route between points and returns driving distance
// and duration.
func (o *OSRMClient) Distance(ctx context.Context, from, to models.Coord) (models.DistanceResult, error) {
	// OSRM route query: /route/v1/driving/{lon1},{lat1};{lon2},{lat2}?overview=false
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.DistanceResult{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return models.DistanceResult{}, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.DistanceResult{}, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return models.DistanceResult{}, fmt.Errorf("osrm no route: %v", out.Code)
	}
	return models.DistanceResult{
		Meters:          out.Routes[0].Distance,
		DurationMinutes: out.Routes[0].Duration / 60,
	}, nil
}
