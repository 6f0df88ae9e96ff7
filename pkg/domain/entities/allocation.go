package entities

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// LotAllocation represents a quantity taken from one lot for one order line
type LotAllocation struct {
	LotID    LotID           `json:"lot_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// LotQuantities maps lot IDs to proposed quantities for a single order line.
//
// Only positive quantities are stored; setting a lot to zero or below removes it.
type LotQuantities map[LotID]decimal.Decimal

// NewLotQuantities creates a new empty lot quantity map
func NewLotQuantities() LotQuantities {
	return make(LotQuantities)
}

// Set stores qty for a lot, removing the entry when qty is not positive
func (lq LotQuantities) Set(lotID LotID, qty decimal.Decimal) {
	if !qty.IsPositive() {
		delete(lq, lotID)
		return
	}
	lq[lotID] = qty
}

// Get returns the quantity proposed for a lot, zero when absent
func (lq LotQuantities) Get(lotID LotID) decimal.Decimal {
	if qty, ok := lq[lotID]; ok {
		return qty
	}
	return decimal.Zero
}

// Total returns the sum of all proposed quantities
func (lq LotQuantities) Total() decimal.Decimal {
	total := decimal.Zero
	for _, qty := range lq {
		total = total.Add(qty)
	}
	return total
}

// Clear removes all entries
func (lq LotQuantities) Clear() {
	for lotID := range lq {
		delete(lq, lotID)
	}
}

// Clone returns an independent copy
func (lq LotQuantities) Clone() LotQuantities {
	out := make(LotQuantities, len(lq))
	for lotID, qty := range lq {
		out[lotID] = qty
	}
	return out
}

// Equal reports whether both maps hold the same lots with equal quantities
func (lq LotQuantities) Equal(other LotQuantities) bool {
	if len(lq) != len(other) {
		return false
	}
	for lotID, qty := range lq {
		o, ok := other[lotID]
		if !ok || !o.Equal(qty) {
			return false
		}
	}
	return true
}

// Allocations returns the map as a slice ordered by lot ID
func (lq LotQuantities) Allocations() []LotAllocation {
	out := make([]LotAllocation, 0, len(lq))
	for lotID, qty := range lq {
		out = append(out, LotAllocation{LotID: lotID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LotID < out[j].LotID
	})
	return out
}

// String returns a compact representation for logs and test failures
func (lq LotQuantities) String() string {
	if len(lq) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(lq))
	for _, alloc := range lq.Allocations() {
		parts = append(parts, fmt.Sprintf("%s:%s", alloc.LotID, alloc.Quantity.String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
