package entities

// OrderLineID represents a unique order line identifier
type OrderLineID string

// OrderID identifies the order an order line belongs to
type OrderID string

// ProductKey identifies the product demanded by a line and stocked in a lot
type ProductKey string

// LotID represents a unique inventory lot identifier
type LotID string

// WarehouseID identifies the warehouse holding a lot
type WarehouseID string

// ReservationID identifies a server-side reservation record
type ReservationID string
