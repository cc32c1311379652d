package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// VehicleClass governs both the matching radius/lookahead and pricing.
type VehicleClass string

const (
	ClassSedan        VehicleClass = "sedan"
	ClassVan          VehicleClass = "van"
	ClassTruck        VehicleClass = "truck"
	ClassRefrigerated VehicleClass = "refrigerated"
)

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassSedan, ClassVan, ClassTruck, ClassRefrigerated:
		return true
	}
	return false
}

// Stop is one point on an order's route after pickup.
type Stop struct {
	Seq      int    `json:"seq"`
	Location Coord  `json:"location"`
	Address  string `json:"address,omitempty"`
}

type Order struct {
	ID                string       `json:"id"`
	Status            OrderStatus  `json:"status"`
	VehicleClass      VehicleClass `json:"vehicle_class"`
	Pickup            Coord        `json:"pickup"`
	ScheduledPickupAt time.Time    `json:"scheduled_pickup_at"`
	AssignedDriverID  *string      `json:"assigned_driver_id,omitempty"`
	Stops             []Stop       `json:"stops,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// DistanceResult is what the external distance oracle returns for one
// origin/destination pair. Never cached across candidates: each candidate
// gets a fresh lookup.
type DistanceResult struct {
	Meters          float64 `json:"distance_meters"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Driver is the courier record as the wider platform owns it. Dispatch only
// reads it, to refuse presence from couriers whose signup was never approved.
type Driver struct {
	ID           string       `json:"id"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Approved     bool         `json:"approved"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Actor identifies who caused a status transition.
type Actor string

const (
	ActorDriver Actor = "driver"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// HistoryEvent is an optional fine-grained tag on a history entry.
type HistoryEvent string

const (
	EventStopStarted   HistoryEvent = "stop-started"
	EventStopCompleted HistoryEvent = "stop-completed"
	EventArrived       HistoryEvent = "arrived"
)

// StatusHistoryEntry is one append-only row of the order audit trail.
// Entries are immutable once written; the full lifecycle of an order is
// reconstructable from them in creation order.
type StatusHistoryEntry struct {
	OrderID string       `json:"order_id"`
	Status  OrderStatus  `json:"status"`
	Actor   Actor        `json:"actor"`
	Reason  string       `json:"reason,omitempty"`
	Event   HistoryEvent `json:"event,omitempty"`
	At      time.Time    `json:"at"`
}
