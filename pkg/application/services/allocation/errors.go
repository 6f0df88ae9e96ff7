package allocation

import "errors"

var (
	ErrUnknownLine         = errors.New("order line is not loaded in this session")
	ErrUnknownLot          = errors.New("lot is not a candidate for this order line")
	ErrLineBusy            = errors.New("order line has a save in progress")
	ErrCandidatesNotLoaded = errors.New("candidate lots are not loaded for this order line")
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrOverAllocated       = errors.New("allocation exceeds the required quantity")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationNotHard  = errors.New("only active hard reservations can be cancelled")
	ErrInvalidCancelReason = errors.New("invalid cancel reason")
	ErrNotConfigured       = errors.New("collaborator not configured")
)
