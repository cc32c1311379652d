package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/config"
	"github.com/example/order-dispatch/internal/dedup"
	"github.com/example/order-dispatch/internal/dispatch"
	"github.com/example/order-dispatch/internal/history"
	"github.com/example/order-dispatch/internal/match"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/presence"
	"github.com/example/order-dispatch/internal/sched"
	"github.com/example/order-dispatch/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.Default()
	profiles := map[models.VehicleClass]config.ClassProfile{
		models.ClassSedan: {RadiusKm: 15, LeadTime: 10 * time.Minute, Lookahead: 15 * time.Minute},
	}
	registry := presence.NewRegistry()
	tracker := dedup.NewMemory()
	router := broker.NewRouter(log)
	store := storage.NewMemoryStore()

	svc := &dispatch.Service{
		Store:    store,
		History:  history.NewMemoryRecorder(),
		Dedup:    tracker,
		Presence: registry,
		Router:   router,
		Log:      log,
	}
	svc.Engine = &match.Engine{
		Profiles: profiles,
		Presence: registry,
		Dedup:    tracker,
		Oracle:   &staticOracle{},
		Offers:   svc,
		Log:      log,
	}
	svc.Bind(sched.New(profiles, store, svc, sched.RealClock{}, log))
	return NewServer(svc, router, log)
}

type staticOracle struct{}

func (staticOracle) Distance(_ context.Context, _, _ models.Coord) (models.DistanceResult, error) {
	return models.DistanceResult{Meters: 1000, DurationMinutes: 3}, nil
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func createOrder(t *testing.T, srv *Server) models.Order {
	t.Helper()
	w := postJSON(t, srv, "/api/v1/orders", map[string]any{
		"vehicle_class":       "sedan",
		"pickup":              map[string]float64{"lat": 1, "lon": 2},
		"scheduled_pickup_at": time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var order models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return order
}

func TestCreateOrderRejectsUnknownClass(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv, "/api/v1/orders", map[string]any{
		"vehicle_class":       "hovercraft",
		"scheduled_pickup_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAcceptThenConflict(t *testing.T) {
	srv := newTestServer(t)
	order := createOrder(t, srv)

	w := postJSON(t, srv, fmt.Sprintf("/api/v1/orders/%s/accept", order.ID), map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", w.Code, w.Body.String())
	}

	w = postJSON(t, srv, fmt.Sprintf("/api/v1/orders/%s/accept", order.ID), map[string]string{"driver_id": "d2"})
	if w.Code != http.StatusConflict {
		t.Fatalf("loser must see 409, got %d", w.Code)
	}
}

func TestAcceptUnknownOrderIs404(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv, "/api/v1/orders/ghost/accept", map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatusEndpointRejectsIllegalTransition(t *testing.T) {
	srv := newTestServer(t)
	order := createOrder(t, srv)

	// Pending → completed is not a legal step.
	w := postJSON(t, srv, fmt.Sprintf("/api/v1/orders/%s/status", order.ID), map[string]string{"status": "completed"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body %s", w.Code, w.Body.String())
	}
}

func TestCancelEndpoint(t *testing.T) {
	srv := newTestServer(t)
	order := createOrder(t, srv)

	w := postJSON(t, srv, fmt.Sprintf("/api/v1/orders/%s/cancel", order.ID), map[string]string{"reason": "no longer needed"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var got models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != models.StatusCanceled {
		t.Fatalf("expected canceled, got %s", got.Status)
	}
}

func TestFailedUpgradeWritesSingleResponse(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/ws/driver/d1", "/ws/observer"} {
		// A plain GET is not a websocket handshake, so Upgrade rejects it
		// and writes its own error response. The handler must not add a
		// second one on top.
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		if lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n"); len(lines) != 1 {
			t.Fatalf("%s: expected a single error line, got %q", path, w.Body.String())
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
