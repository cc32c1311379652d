package broker

import (
	"log/slog"
	"sync"

	"github.com/example/order-dispatch/internal/observability"
)

// Conn is the narrow transport surface the router fans out to. Implemented
// by websocket sessions in production and by fakes in tests.
type Conn interface {
	Send(v any) error
}

// OrderTopic is the topic a sender subscribes to for one delivery.
func OrderTopic(orderID string) string { return "order:" + orderID }

// DriverTopic is the topic a dispatcher subscribes to for one courier.
func DriverTopic(driverID string) string { return "driver:" + driverID }

// Router is a topic-based publish/subscribe fan-out decoupled from the
// transport. Delivery is at-most-once and non-persistent: a late subscriber
// misses prior events.
type Router struct {
	mu     sync.RWMutex
	topics map[string]map[Conn]struct{}
	log    *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{
		topics: make(map[string]map[Conn]struct{}),
		log:    log.With("component", "broker"),
	}
}

func (r *Router) Subscribe(c Conn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[Conn]struct{})
		r.topics[topic] = subs
	}
	subs[c] = struct{}{}
}

func (r *Router) Unsubscribe(c Conn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
}

// UnsubscribeAll removes a connection from every topic. Called by the
// transport's disconnect handler.
func (r *Router) UnsubscribeAll(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, subs := range r.topics {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
}

// Publish fans payload out to every current subscriber of topic. A write
// failure on one connection is logged and counted; the remaining subscribers
// still receive the payload. Publish never blocks on subscriber delivery
// beyond the individual write itself.
func (r *Router) Publish(topic string, payload any) {
	r.mu.RLock()
	subs := make([]Conn, 0, len(r.topics[topic]))
	for c := range r.topics[topic] {
		subs = append(subs, c)
	}
	r.mu.RUnlock()

	for _, c := range subs {
		if err := c.Send(payload); err != nil {
			observability.BroadcastDroppedTotal.Inc()
			r.log.Warn("publish write failed", "topic", topic, "error", err)
		}
	}
}

// Subscribers reports the current fan-out size of a topic.
func (r *Router) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
