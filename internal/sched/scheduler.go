package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/order-dispatch/internal/config"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/observability"
	"github.com/example/order-dispatch/internal/storage"
)

// Emitter runs the match/broadcast step for one order. Implemented by the
// dispatch service.
type Emitter interface {
	Emit(ctx context.Context, order models.Order)
}

// Scheduler decides when an order's match/broadcast step runs, relative to
// its pickup time: emission = pickup − lead time for the order's vehicle
// class. Each deferred emission carries a cancellation handle so an early
// terminal transition can stop a stale broadcast.
type Scheduler struct {
	profiles map[models.VehicleClass]config.ClassProfile
	store    storage.OrderStore
	emitter  Emitter
	clock    Clock
	log      *slog.Logger

	mu     sync.Mutex
	gen    uint64
	timers map[string]timerEntry
}

// timerEntry tags each timer with a generation so a fired callback can tell
// whether the map still holds its own timer or a replacement scheduled later.
type timerEntry struct {
	t   Timer
	gen uint64
}

func New(profiles map[models.VehicleClass]config.ClassProfile, store storage.OrderStore, emitter Emitter, clock Clock, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		profiles: profiles,
		store:    store,
		emitter:  emitter,
		clock:    clock,
		log:      log.With("component", "scheduler"),
		timers:   make(map[string]timerEntry),
	}
}

// Schedule registers the emission step for a freshly created order.
// Stale orders (pickup already elapsed) are logged and skipped. An emission
// time already in the past runs synchronously within the creation flow.
func (s *Scheduler) Schedule(ctx context.Context, order models.Order) {
	profile, ok := s.profiles[order.VehicleClass]
	if !ok {
		s.log.Error("no profile for vehicle class, not scheduling", "order_id", order.ID, "vehicle_class", order.VehicleClass)
		return
	}
	now := s.clock.Now()
	if !now.Before(order.ScheduledPickupAt) {
		s.log.Warn("pickup time already elapsed, not scheduling", "order_id", order.ID, "pickup_at", order.ScheduledPickupAt)
		return
	}
	emission := order.ScheduledPickupAt.Add(-profile.LeadTime)
	if !emission.After(now) {
		s.emit(ctx, order.ID)
		return
	}
	s.defer_(order.ID, emission.Sub(now))
}

func (s *Scheduler) defer_(orderID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[orderID]; ok {
		old.t.Stop()
		observability.SchedulerPendingTimers.Dec()
	}
	s.gen++
	gen := s.gen
	timer := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.timers[orderID]
		if !ok || cur.gen != gen {
			// Cancel or a reschedule won the race against this firing
			// timer; the map entry, if any, is not ours to remove.
			s.mu.Unlock()
			return
		}
		delete(s.timers, orderID)
		s.mu.Unlock()
		observability.SchedulerPendingTimers.Dec()
		s.emit(context.Background(), orderID)
	})
	s.timers[orderID] = timerEntry{t: timer, gen: gen}
	observability.SchedulerPendingTimers.Inc()
	s.log.Info("emission deferred", "order_id", orderID, "in", d)
}

// Cancel stops an outstanding emission timer, if any. Called on every early
// terminal transition so a cancelled order cannot broadcast later.
func (s *Scheduler) Cancel(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[orderID]; ok {
		t.t.Stop()
		delete(s.timers, orderID)
		observability.SchedulerPendingTimers.Dec()
		s.log.Info("emission canceled", "order_id", orderID)
	}
}

// Pending reports the number of outstanding timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Restore re-derives emission timers after a restart: in-memory timers do
// not survive the process, persisted Pending orders do.
func (s *Scheduler) Restore(ctx context.Context) error {
	orders, err := s.store.PendingWithFuturePickup(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	for _, o := range orders {
		s.Schedule(ctx, o)
	}
	s.log.Info("schedules restored", "count", len(orders))
	return nil
}

// emit re-reads the order and hands it to the emitter. A panic or error in
// the emission path is contained here: the scheduler loop never dies and the
// order stays Pending for a later attempt.
func (s *Scheduler) emit(ctx context.Context, orderID string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic during emission", "order_id", orderID, "panic", rec)
		}
	}()
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		s.log.Error("emission load failed", "order_id", orderID, "error", err)
		return
	}
	s.emitter.Emit(ctx, order)
}
