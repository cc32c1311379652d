package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/storage"
)

// handleDriverWS is the courier socket. Inbound frames: driver-online,
// location-update, accept-order, driver-offline. Offers and accept results
// arrive on the same connection. Malformed frames are dropped and logged,
// never fatal to the connection.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client on failure.
		s.logger.Warn("driver socket upgrade failed", "driver_id", driverID, "error", err)
		return
	}
	session := broker.NewSession(conn)
	log := s.logger.With("driver_id", driverID)

	defer func() {
		// Exactly one presence removal per disconnect; a duplicate is
		// harmless, a missed one leaks a stale online courier.
		s.svc.DriverOffline(driverID)
		s.router.UnsubscribeAll(session)
		session.Close()
	}()

	for {
		var ev models.InboundEvent
		if err := conn.ReadJSON(&ev); err != nil {
			log.Debug("driver socket closed", "error", err)
			return
		}
		ctx := r.Context()
		switch ev.Type {
		case models.EvDriverOnline:
			if ev.Location == nil || !ev.VehicleClass.Valid() {
				log.Warn("malformed driver-online dropped")
				continue
			}
			if err := s.svc.DriverOnline(ctx, driverID, ev.VehicleClass, *ev.Location, session); err != nil {
				log.Warn("driver-online refused", "error", err)
			}
		case models.EvLocationUpdate:
			if ev.Location == nil {
				log.Warn("malformed location-update dropped")
				continue
			}
			s.svc.HandleLocation(ctx, driverID, *ev.Location, ev.OrderID)
		case models.EvAcceptOrder:
			if ev.OrderID == "" {
				log.Warn("malformed accept-order dropped")
				continue
			}
			s.answerAccept(ctx, session, driverID, ev.OrderID)
		case models.EvDriverOffline:
			s.svc.DriverOffline(driverID)
		default:
			log.Warn("unknown driver event dropped", "type", ev.Type)
		}
	}
}

func (s *Server) answerAccept(ctx context.Context, session *broker.Session, driverID, orderID string) {
	result := models.AcceptResultEvent{Type: models.EvAcceptResult, OrderID: orderID, OK: true}
	if _, err := s.svc.Accept(ctx, orderID, driverID); err != nil {
		result.OK = false
		switch {
		case errors.Is(err, storage.ErrOrderAlreadyTaken):
			result.Error = "order already taken"
		case errors.Is(err, storage.ErrOrderNotFound):
			result.Error = "order not found"
		default:
			s.logger.Error("accept failed", "order_id", orderID, "driver_id", driverID, "error", err)
			result.Error = "internal error"
		}
	}
	if err := session.Send(result); err != nil {
		s.logger.Warn("accept result write failed", "driver_id", driverID, "error", err)
	}
}

// handleObserverWS is the tracking socket for senders and dispatchers.
// Inbound frames: track-order, track-driver, stop-tracking-order. Location
// and lifecycle events for subscribed topics stream back on this connection.
func (s *Server) handleObserverWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client on failure.
		s.logger.Warn("observer socket upgrade failed", "error", err)
		return
	}
	session := broker.NewSession(conn)

	defer func() {
		s.router.UnsubscribeAll(session)
		session.Close()
	}()

	for {
		var ev models.InboundEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case models.EvTrackOrder:
			if ev.OrderID != "" {
				s.router.Subscribe(session, broker.OrderTopic(ev.OrderID))
			}
		case models.EvTrackDriver:
			if ev.DriverID != "" {
				s.router.Subscribe(session, broker.DriverTopic(ev.DriverID))
			}
		case models.EvStopTrackingOrder:
			if ev.OrderID != "" {
				s.router.Unsubscribe(session, broker.OrderTopic(ev.OrderID))
			}
		default:
			s.logger.Warn("unknown observer event dropped", "type", ev.Type)
		}
	}
}
