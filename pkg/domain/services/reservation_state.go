package services

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// DeriveReservationState computes the reservation state of a line from its records.
// Cancelled records are ignored.
func DeriveReservationState(records []entities.Reservation) entities.ReservationState {
	var soft, hard bool
	for _, r := range records {
		if !r.IsActive() {
			continue
		}
		switch r.Kind {
		case entities.SoftReservation:
			soft = true
		case entities.HardReservation:
			hard = true
		}
	}

	switch {
	case soft && hard:
		return entities.ReservationMixed
	case hard:
		return entities.ReservationHard
	case soft:
		return entities.ReservationSoft
	default:
		return entities.ReservationNone
	}
}

// ActiveReservedQuantity sums the active records of the given kind
func ActiveReservedQuantity(records []entities.Reservation, kind entities.ReservationKind) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.IsActive() && r.Kind == kind {
			total = total.Add(r.Quantity)
		}
	}
	return total
}

// FindReservation returns the record with the given ID
func FindReservation(records []entities.Reservation, id entities.ReservationID) (entities.Reservation, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return entities.Reservation{}, false
}
