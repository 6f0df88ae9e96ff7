package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationKind distinguishes temporary from confirmed reservations
type ReservationKind int

const (
	// SoftReservation is recorded but not yet confirmed
	SoftReservation ReservationKind = iota
	// HardReservation is confirmed and committed
	HardReservation
)

// String method for ReservationKind enum
func (k ReservationKind) String() string {
	switch k {
	case SoftReservation:
		return "soft"
	case HardReservation:
		return "hard"
	default:
		return "unknown"
	}
}

// ParseReservationKind parses "soft" or "hard"
func ParseReservationKind(s string) (ReservationKind, error) {
	switch s {
	case "soft":
		return SoftReservation, nil
	case "hard":
		return HardReservation, nil
	default:
		return 0, fmt.Errorf("unknown reservation kind %q", s)
	}
}

// MarshalText encodes the kind by name
func (k ReservationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *ReservationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseReservationKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ReservationStatus tracks whether a reservation record still holds stock
type ReservationStatus int

const (
	ReservationActive ReservationStatus = iota
	ReservationCancelled
)

// String method for ReservationStatus enum
func (s ReservationStatus) String() string {
	switch s {
	case ReservationActive:
		return "active"
	case ReservationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseReservationStatus parses "active" or "cancelled"
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch s {
	case "active":
		return ReservationActive, nil
	case "cancelled":
		return ReservationCancelled, nil
	default:
		return 0, fmt.Errorf("unknown reservation status %q", s)
	}
}

// MarshalText encodes the status by name
func (s ReservationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *ReservationStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseReservationStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Reservation is a server-side reservation record for one lot and one order line.
// Cancelled records are kept; a cancellation is recorded as a Reversal.
type Reservation struct {
	ID          ReservationID     `json:"id"`
	OrderLineID OrderLineID       `json:"order_line_id"`
	LotID       LotID             `json:"lot_id"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Kind        ReservationKind   `json:"kind"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsActive reports whether the reservation still holds stock
func (r Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// Reversal is the compensating entry recorded when a hard reservation is cancelled
type Reversal struct {
	ID            string          `json:"id"`
	ReservationID ReservationID   `json:"reservation_id"`
	OrderLineID   OrderLineID     `json:"order_line_id"`
	LotID         LotID           `json:"lot_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        CancelReason    `json:"reason"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReservationState is derived from the reservation records of one line
type ReservationState int

const (
	// ReservationNone means no active reservation records
	ReservationNone ReservationState = iota
	// ReservationSoft means only temporary reservations are active
	ReservationSoft
	// ReservationHard means only confirmed reservations are active
	ReservationHard
	// ReservationMixed means both kinds are active
	ReservationMixed
)

// String method for ReservationState enum
func (s ReservationState) String() string {
	switch s {
	case ReservationNone:
		return "none"
	case ReservationSoft:
		return "soft"
	case ReservationHard:
		return "hard"
	case ReservationMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s ReservationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasHard reports whether at least one confirmed reservation is active
func (s ReservationState) HasHard() bool {
	return s == ReservationHard || s == ReservationMixed
}
