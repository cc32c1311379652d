package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/order-dispatch/internal/broker"
	"github.com/example/order-dispatch/internal/dedup"
	"github.com/example/order-dispatch/internal/history"
	"github.com/example/order-dispatch/internal/ingest"
	"github.com/example/order-dispatch/internal/match"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/observability"
	"github.com/example/order-dispatch/internal/presence"
	"github.com/example/order-dispatch/internal/sched"
	"github.com/example/order-dispatch/internal/storage"
)

var ErrValidation = errors.New("validation")

// Service glues the dispatch components together: it owns the order lifecycle
// operations and is both the scheduler's emitter and the matcher's offer sink.
type Service struct {
	Store    storage.OrderStore
	Drivers  storage.DriverDirectory // optional signup-approval gate
	History  history.Recorder
	Dedup    dedup.Tracker
	Presence *presence.Registry
	Router   *broker.Router
	Engine   *match.Engine
	Producer *ingest.KafkaProducer // optional status tee
	Log      *slog.Logger

	scheduler *sched.Scheduler
}

// Bind attaches the scheduler once both sides exist; the scheduler needs the
// service as its emitter, the service needs the scheduler for cancellation.
func (s *Service) Bind(scheduler *sched.Scheduler) { s.scheduler = scheduler }

// CreateOrderInput is the intake payload from the order platform.
type CreateOrderInput struct {
	VehicleClass      models.VehicleClass `json:"vehicle_class"`
	Pickup            models.Coord        `json:"pickup"`
	ScheduledPickupAt time.Time           `json:"scheduled_pickup_at"`
	Stops             []models.Stop       `json:"stops,omitempty"`
}

func (in CreateOrderInput) validate() error {
	if !in.VehicleClass.Valid() {
		return fmt.Errorf("%w: unknown vehicle class %q", ErrValidation, in.VehicleClass)
	}
	if in.ScheduledPickupAt.IsZero() {
		return fmt.Errorf("%w: scheduled_pickup_at is required", ErrValidation)
	}
	return nil
}

// CreateOrder persists a new Pending order, records its first history entry
// and hands it to the scheduler. If the emission time has already passed the
// match/broadcast step runs synchronously inside this call.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (models.Order, error) {
	if err := in.validate(); err != nil {
		return models.Order{}, err
	}
	order := models.Order{
		ID:                uuid.NewString(),
		Status:            models.StatusPending,
		VehicleClass:      in.VehicleClass,
		Pickup:            in.Pickup,
		ScheduledPickupAt: in.ScheduledPickupAt,
		Stops:             in.Stops,
		CreatedAt:         time.Now(),
	}
	if err := s.Store.CreateOrder(ctx, &order); err != nil {
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.record(ctx, order.ID, models.StatusPending, models.ActorSystem, "created", "")
	s.scheduler.Schedule(ctx, order)
	return order, nil
}

// Emit runs one match/broadcast step. Implements sched.Emitter.
func (s *Service) Emit(ctx context.Context, order models.Order) {
	if _, err := s.Engine.Run(ctx, order); err != nil {
		s.Log.Error("match run failed", "order_id", order.ID, "error", err)
	}
}

// Offer implements match.OfferSink over the courier's live connection.
func (s *Service) Offer(entry presence.Entry, order models.Order, d models.DistanceResult) error {
	return entry.Conn.Send(models.OfferEvent{
		Type:            models.EvNewOrder,
		Order:           order,
		DistanceMeters:  d.Meters,
		DurationMinutes: d.DurationMinutes,
	})
}

// Accept arbitrates one courier's attempt to take an order. Exactly one
// concurrent caller wins; every loser gets storage.ErrOrderAlreadyTaken and
// must not retry.
func (s *Service) Accept(ctx context.Context, orderID, driverID string) (models.Order, error) {
	order, err := s.Store.AcceptOrder(ctx, orderID, driverID)
	if errors.Is(err, storage.ErrOrderAlreadyTaken) {
		observability.AcceptConflictsTotal.Inc()
		return models.Order{}, err
	}
	if err != nil {
		return models.Order{}, err
	}
	s.scheduler.Cancel(orderID)
	s.record(ctx, orderID, models.StatusAssigned, models.ActorDriver, "", "")
	return order, nil
}

// Decline returns an accepted order to the offerable pool: Assigned →
// Pending, notification record cleared so previously-skipped couriers get a
// fresh shot, then an immediate re-broadcast. Only the assigned courier may
// decline; anyone else is refused without touching the order.
func (s *Service) Decline(ctx context.Context, orderID, driverID, reason string) (models.Order, error) {
	current, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if current.AssignedDriverID == nil || *current.AssignedDriverID != driverID {
		return models.Order{}, fmt.Errorf("%w: order %s is not assigned to driver %s", ErrValidation, orderID, driverID)
	}
	order, err := s.Store.ReleaseOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	why := "declined by " + driverID
	if reason != "" {
		why += ": " + reason
	}
	s.record(ctx, orderID, models.StatusPending, models.ActorDriver, why, "")
	s.rebroadcast(ctx, order)
	return order, nil
}

// Reassign is the admin flavour of Decline.
func (s *Service) Reassign(ctx context.Context, orderID, reason string) (models.Order, error) {
	order, err := s.Store.ReleaseOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, orderID, models.StatusPending, models.ActorAdmin, reason, "")
	s.rebroadcast(ctx, order)
	return order, nil
}

func (s *Service) rebroadcast(ctx context.Context, order models.Order) {
	if err := s.Dedup.Reset(ctx, order.ID); err != nil {
		s.Log.Warn("dedup reset failed", "order_id", order.ID, "error", err)
	}
	s.Emit(ctx, order)
}

// Cancel terminates an order early. The pending emission timer is stopped so
// a cancelled order can never broadcast afterwards, and subscribers on the
// order topic are told.
func (s *Service) Cancel(ctx context.Context, orderID string, actor models.Actor, reason string) (models.Order, error) {
	order, err := s.Store.SetStatus(ctx, orderID, models.StatusCanceled)
	if err != nil {
		return models.Order{}, err
	}
	s.scheduler.Cancel(orderID)
	if err := s.Dedup.Reset(ctx, orderID); err != nil {
		s.Log.Warn("dedup reset failed", "order_id", orderID, "error", err)
	}
	s.record(ctx, orderID, models.StatusCanceled, actor, reason, "")
	s.Router.Publish(broker.OrderTopic(orderID), models.OrderUpdateEvent{
		Type: models.EvOrderCancellation, OrderID: orderID, Reason: reason,
	})
	return order, nil
}

// MarkEnRoute records that the courier started toward the pickup.
func (s *Service) MarkEnRoute(ctx context.Context, orderID string, actor models.Actor) (models.Order, error) {
	order, err := s.Store.SetStatus(ctx, orderID, models.StatusEnRouteToPickup)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, orderID, order.Status, actor, "", "")
	return order, nil
}

// MarkActive records the pickup: the delivery is now underway.
func (s *Service) MarkActive(ctx context.Context, orderID string, actor models.Actor) (models.Order, error) {
	order, err := s.Store.SetStatus(ctx, orderID, models.StatusActive)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, orderID, order.Status, actor, "", "")
	return order, nil
}

// Complete finishes the order and notifies order-topic subscribers.
func (s *Service) Complete(ctx context.Context, orderID string, actor models.Actor) (models.Order, error) {
	order, err := s.Store.SetStatus(ctx, orderID, models.StatusCompleted)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, orderID, order.Status, actor, "", "")
	s.Router.Publish(broker.OrderTopic(orderID), models.OrderUpdateEvent{
		Type: models.EvOrderCompletion, OrderID: orderID,
	})
	return order, nil
}

// RecordStopEvent appends a stop-level waypoint event (arrived, stop-started,
// stop-completed) without changing the order status.
func (s *Service) RecordStopEvent(ctx context.Context, orderID string, actor models.Actor, event models.HistoryEvent) error {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	s.record(ctx, orderID, order.Status, actor, "", event)
	return nil
}

// DriverOnline registers the courier's live connection. When a driver
// directory is configured, couriers without an approved signup are refused;
// without one the transport is trusted.
func (s *Service) DriverOnline(ctx context.Context, driverID string, class models.VehicleClass, loc models.Coord, conn broker.Conn) error {
	if s.Drivers != nil {
		d, err := s.Drivers.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if !d.Approved {
			return fmt.Errorf("%w: driver %s not approved", ErrValidation, driverID)
		}
	}
	s.Presence.Register(driverID, class, loc, conn)
	s.Log.Info("driver online", "driver_id", driverID, "vehicle_class", class)
	return nil
}

// DriverOffline drops the courier's presence entry.
func (s *Service) DriverOffline(driverID string) {
	s.Presence.Remove(driverID)
	s.Log.Info("driver offline", "driver_id", driverID)
}

// HandleLocation processes one courier position report: presence update,
// live streaming to driver-topic subscribers, and, when the courier is
// serving an order, to that order's topic too. A report from a courier with
// no presence entry is dropped: a late event must not resurrect a removed
// entry.
func (s *Service) HandleLocation(ctx context.Context, driverID string, loc models.Coord, orderID string) {
	if !s.Presence.UpdateLocation(driverID, loc) {
		s.Log.Debug("location for absent driver dropped", "driver_id", driverID)
		return
	}
	s.Router.Publish(broker.DriverTopic(driverID), models.LocationEvent{
		Type: models.EvDriverLocation, DriverID: driverID, Location: loc,
	})
	if orderID != "" {
		s.Router.Publish(broker.OrderTopic(orderID), models.LocationEvent{
			Type: models.EvOrderLocation, OrderID: orderID, Location: loc,
		})
	}
	if s.Producer != nil {
		if err := s.Producer.PublishLocation(driverID, loc); err != nil {
			s.Log.Warn("location publish failed", "driver_id", driverID, "error", err)
		}
	}
}

// record appends to the audit trail and tees the entry onto Kafka when a
// producer is configured. Failures here are logged, never propagated: the
// status write that triggered the entry has already committed.
func (s *Service) record(ctx context.Context, orderID string, status models.OrderStatus, actor models.Actor, reason string, event models.HistoryEvent) {
	entry := models.StatusHistoryEntry{
		OrderID: orderID,
		Status:  status,
		Actor:   actor,
		Reason:  reason,
		Event:   event,
		At:      time.Now(),
	}
	if err := s.History.Append(ctx, entry); err != nil {
		s.Log.Error("history append failed", "order_id", orderID, "error", err)
	}
	if s.Producer != nil {
		if err := s.Producer.PublishStatus(entry); err != nil {
			s.Log.Warn("status publish failed", "order_id", orderID, "error", err)
		}
	}
}
