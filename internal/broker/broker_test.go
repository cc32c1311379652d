package broker

import (
	"errors"
	"log/slog"
	"testing"
)

type recordConn struct {
	got  []any
	fail bool
}

func (c *recordConn) Send(v any) error {
	if c.fail {
		return errors.New("write failed")
	}
	c.got = append(c.got, v)
	return nil
}

func testRouter() *Router {
	return NewRouter(slog.Default())
}

func TestPublishFansOutToSubscribers(t *testing.T) {
	r := testRouter()
	a, b := &recordConn{}, &recordConn{}
	r.Subscribe(a, OrderTopic("o1"))
	r.Subscribe(b, OrderTopic("o1"))

	r.Publish(OrderTopic("o1"), "hello")

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected both subscribers to receive, got %d and %d", len(a.got), len(b.got))
	}
}

func TestLateSubscriberMissesPriorEvents(t *testing.T) {
	r := testRouter()
	r.Publish(OrderTopic("o1"), "early")

	late := &recordConn{}
	r.Subscribe(late, OrderTopic("o1"))
	if len(late.got) != 0 {
		t.Fatal("delivery must be non-persistent")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := testRouter()
	c := &recordConn{}
	r.Subscribe(c, DriverTopic("d1"))
	r.Unsubscribe(c, DriverTopic("d1"))

	r.Publish(DriverTopic("d1"), "x")
	if len(c.got) != 0 {
		t.Fatal("unsubscribed connection still received an event")
	}
}

func TestFailedWriteDoesNotAbortFanOut(t *testing.T) {
	r := testRouter()
	bad := &recordConn{fail: true}
	good := &recordConn{}
	r.Subscribe(bad, OrderTopic("o1"))
	r.Subscribe(good, OrderTopic("o1"))

	r.Publish(OrderTopic("o1"), "x")

	if len(good.got) != 1 {
		t.Fatal("healthy subscriber starved by a failing one")
	}
}

func TestUnsubscribeAllRemovesEveryTopic(t *testing.T) {
	r := testRouter()
	c := &recordConn{}
	r.Subscribe(c, OrderTopic("o1"))
	r.Subscribe(c, DriverTopic("d1"))

	r.UnsubscribeAll(c)

	if n := r.Subscribers(OrderTopic("o1")); n != 0 {
		t.Fatalf("order topic still has %d subscribers", n)
	}
	if n := r.Subscribers(DriverTopic("d1")); n != 0 {
		t.Fatalf("driver topic still has %d subscribers", n)
	}
}
