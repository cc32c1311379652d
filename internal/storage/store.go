package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

var (
	// ErrOrderAlreadyTaken is the expected outcome for every loser of an
	// accept race. Callers surface it to the courier and never auto-retry.
	ErrOrderAlreadyTaken = errors.New("order already taken")

	ErrOrderNotFound     = errors.New("order not found")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// OrderStore defines the persistence operations dispatch needs. The dispatch
// subsystem only reads orders and conditionally writes status/assignment;
// everything else about an order is owned by the wider platform.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)

	// AcceptOrder serializes concurrent accepts on one order: exactly one
	// caller wins, every other caller gets ErrOrderAlreadyTaken.
	AcceptOrder(ctx context.Context, orderID, driverID string) (models.Order, error)

	// ReleaseOrder returns an Assigned order to Pending, clearing the
	// assignment (courier declined after accepting, or admin reassignment).
	ReleaseOrder(ctx context.Context, orderID string) (models.Order, error)

	// SetStatus applies one lifecycle transition, rejecting illegal ones.
	SetStatus(ctx context.Context, orderID string, next models.OrderStatus) (models.Order, error)

	// PendingWithFuturePickup lists Pending orders whose scheduled pickup is
	// after now. Used to re-derive emission timers after a restart.
	PendingWithFuturePickup(ctx context.Context, now time.Time) ([]models.Order, error)
}

// DriverDirectory reads courier records owned by the wider platform. Only
// approved couriers may register presence.
type DriverDirectory interface {
	GetDriver(ctx context.Context, id string) (models.Driver, error)
}
