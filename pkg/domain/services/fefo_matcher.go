package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// StrategyFEFO is the only candidate ordering strategy the engine understands
const StrategyFEFO = "fefo"

// SortByExpiry returns a copy of lots ordered First-Expiry-First-Out.
//
// Lots with an expiry date come first in ascending date order, lots without
// one come last. Ties are broken by lot ID so the order is total.
func SortByExpiry(lots []entities.CandidateLot) []entities.CandidateLot {
	sorted := make([]entities.CandidateLot, len(lots))
	copy(sorted, lots)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.HasExpiry() && !b.HasExpiry():
			return true
		case !a.HasExpiry() && b.HasExpiry():
			return false
		case a.HasExpiry() && b.HasExpiry() && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		default:
			return a.LotID < b.LotID
		}
	})

	return sorted
}

// AllocateFEFO greedily assigns the quantity still required to candidate lots.
//
// The matcher sorts lots itself, so callers may pass them in any order. It does
// not look at expiry against the current date: expired lots must already have
// been removed with ExcludeExpired. A lot listed twice is only used once.
//
// The result never holds more than a lot's free quantity for that lot and its
// total never exceeds required - alreadyAllocated.
func AllocateFEFO(required, alreadyAllocated decimal.Decimal, lots []entities.CandidateLot) entities.LotQuantities {
	result := entities.NewLotQuantities()

	remaining := required.Sub(alreadyAllocated)
	if !remaining.IsPositive() {
		return result
	}

	seen := make(map[entities.LotID]bool, len(lots))
	for _, lot := range SortByExpiry(lots) {
		if !remaining.IsPositive() {
			break
		}
		if seen[lot.LotID] {
			continue
		}
		seen[lot.LotID] = true

		free := FreeQuantity(lot)
		if !free.IsPositive() {
			continue
		}

		take := decimal.Min(remaining, free)
		result.Set(lot.LotID, take)
		remaining = remaining.Sub(take)
	}

	return result
}

// ExcludeExpired drops lots whose expiry date lies before the calendar day of today.
// A lot expiring today is still allocatable; lots without an expiry date are kept.
func ExcludeExpired(lots []entities.CandidateLot, today time.Time) []entities.CandidateLot {
	out := make([]entities.CandidateLot, 0, len(lots))
	for _, lot := range lots {
		if IsExpired(lot, today) {
			continue
		}
		out = append(out, lot)
	}
	return out
}

// IsExpired reports whether the lot's expiry date is before today's date.
// A lot expiring today is still usable; a lot without expiry never expires.
func IsExpired(lot entities.CandidateLot, today time.Time) bool {
	return lot.HasExpiry() && dateOnly(*lot.ExpiryDate).Before(dateOnly(today))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DeductDrafted returns a copy of lots with the quantities already drafted
// against them taken off their free stock. Lots with nothing left are dropped.
func DeductDrafted(lots []entities.CandidateLot, drafted entities.LotQuantities) []entities.CandidateLot {
	out := make([]entities.CandidateLot, 0, len(lots))
	for _, lot := range lots {
		taken := drafted.Get(lot.LotID)
		if taken.IsZero() {
			out = append(out, lot)
			continue
		}
		free := FreeQuantity(lot).Sub(taken)
		if !free.IsPositive() {
			continue
		}
		lot.FreeQuantity = free
		lot.AvailableQuantity = nil
		out = append(out, lot)
	}
	return out
}
