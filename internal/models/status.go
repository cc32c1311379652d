package models

// OrderStatus is the order lifecycle state as seen by dispatch.
//
// Transitions:
//
//	Pending → Assigned → EnRouteToPickup → Active → Completed
//	Pending → Canceled
//	Assigned → Pending   (courier declines after accepting)
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusAssigned        OrderStatus = "assigned"
	StatusEnRouteToPickup OrderStatus = "en_route_to_pickup"
	StatusActive          OrderStatus = "active"
	StatusCompleted       OrderStatus = "completed"
	StatusCanceled        OrderStatus = "canceled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:         {StatusAssigned, StatusCanceled},
	StatusAssigned:        {StatusEnRouteToPickup, StatusPending, StatusCanceled},
	StatusEnRouteToPickup: {StatusActive, StatusCanceled},
	StatusActive:          {StatusCompleted, StatusCanceled},
}

// CanTransition reports whether s → next is a legal lifecycle step.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Offerable reports whether the order may be broadcast to couriers.
func (s OrderStatus) Offerable() bool {
	return s == StatusPending
}
