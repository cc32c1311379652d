package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/dispatch"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/storage"
)

// Server exposes the dispatch subsystem: a REST surface for the order
// platform and admin console, and the websocket surface for couriers and
// observers.
type Server struct {
	svc    *dispatch.Service
	router *broker.Router
	logger *slog.Logger
	mux    *mux.Router

	upgrader websocket.Upgrader
}

func NewServer(svc *dispatch.Service, router *broker.Router, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		router: router,
		logger: logger.With("component", "http"),
		mux:    mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/orders", s.handleCreateOrder).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}", s.handleGetOrder).Methods("GET")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/decline", s.handleDecline).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/reassign", s.handleReassign).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/status", s.handleStatus).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{order_id}/events", s.handleStopEvent).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/driver/{driver_id}", s.handleDriverWS)
	s.mux.HandleFunc("/ws/observer", s.handleObserverWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in dispatch.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, err := s.svc.CreateOrder(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Store.GetOrder(r.Context(), mux.Vars(r)["order_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id is required", http.StatusBadRequest)
		return
	}
	order, err := s.svc.Accept(r.Context(), mux.Vars(r)["order_id"], body.DriverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID string `json:"driver_id"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id is required", http.StatusBadRequest)
		return
	}
	order, err := s.svc.Decline(r.Context(), mux.Vars(r)["order_id"], body.DriverID, body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	order, err := s.svc.Reassign(r.Context(), mux.Vars(r)["order_id"], body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor  models.Actor `json:"actor"`
		Reason string       `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Actor == "" {
		body.Actor = models.ActorAdmin
	}
	order, err := s.svc.Cancel(r.Context(), mux.Vars(r)["order_id"], body.Actor, body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.OrderStatus `json:"status"`
		Actor  models.Actor       `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Actor == "" {
		body.Actor = models.ActorDriver
	}
	orderID := mux.Vars(r)["order_id"]
	var (
		order models.Order
		err   error
	)
	switch body.Status {
	case models.StatusEnRouteToPickup:
		order, err = s.svc.MarkEnRoute(r.Context(), orderID, body.Actor)
	case models.StatusActive:
		order, err = s.svc.MarkActive(r.Context(), orderID, body.Actor)
	case models.StatusCompleted:
		order, err = s.svc.Complete(r.Context(), orderID, body.Actor)
	default:
		http.Error(w, "unsupported status", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleStopEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event models.HistoryEvent `json:"event"`
		Actor models.Actor        `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch body.Event {
	case models.EventArrived, models.EventStopStarted, models.EventStopCompleted:
	default:
		http.Error(w, "unsupported event", http.StatusBadRequest)
		return
	}
	if body.Actor == "" {
		body.Actor = models.ActorDriver
	}
	if err := s.svc.RecordStopEvent(r.Context(), mux.Vars(r)["order_id"], body.Actor, body.Event); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrOrderAlreadyTaken):
		http.Error(w, "order already taken", http.StatusConflict)
	case errors.Is(err, storage.ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidTransition):
		http.Error(w, "invalid status transition", http.StatusConflict)
	case errors.Is(err, dispatch.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
