package models

// Wire payloads exchanged over the real-time transport. Every frame carries a
// "type" discriminator so one socket can multiplex all event kinds.

const (
	// Inbound (client → server).
	EvDriverOnline      = "driver-online"
	EvDriverOffline     = "driver-offline"
	EvLocationUpdate    = "location-update"
	EvTrackOrder        = "track-order"
	EvTrackDriver       = "track-driver"
	EvStopTrackingOrder = "stop-tracking-order"
	EvAcceptOrder       = "accept-order"

	// Outbound (server → client).
	EvNewOrder          = "new-order"
	EvOrderLocation     = "order-location"
	EvDriverLocation    = "driver-location"
	EvOrderCancellation = "order-cancellation-update"
	EvOrderCompletion   = "order-completion-update"
	EvAcceptResult      = "accept-result"
)

// InboundEvent is the envelope decoded off a client socket. Only the fields
// relevant to the named type are populated.
type InboundEvent struct {
	Type         string       `json:"type"`
	DriverID     string       `json:"driver_id,omitempty"`
	OrderID      string       `json:"order_id,omitempty"`
	VehicleClass VehicleClass `json:"vehicle_class,omitempty"`
	Location     *Coord       `json:"location,omitempty"`
}

// OfferEvent is one order offered to one courier.
type OfferEvent struct {
	Type            string  `json:"type"`
	Order           Order   `json:"order"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// LocationEvent streams a live position to topic subscribers.
type LocationEvent struct {
	Type     string `json:"type"`
	OrderID  string `json:"order_id,omitempty"`
	DriverID string `json:"driver_id,omitempty"`
	Location Coord  `json:"location"`
}

// OrderUpdateEvent announces a cancellation or completion on an order topic.
type OrderUpdateEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// AcceptResultEvent answers an accept-order frame on the driver socket.
type AcceptResultEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}
