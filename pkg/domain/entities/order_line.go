package entities

import "fmt"

// OrderLine is the read model of a single demand as supplied by order entry.
//
// The quantity fields arrive from several generations of the order API and
// may hold numbers, numeric strings or nothing at all. They are kept raw and
// must only be read through the quantity normalizer in domain/services.
type OrderLine struct {
	ID         OrderLineID `json:"id"`
	OrderID    OrderID     `json:"order_id"`
	ProductKey ProductKey  `json:"product_key"`

	// ConvertedQuantity is the demand already expressed in the internal unit.
	ConvertedQuantity any `json:"converted_quantity,omitempty"`
	// OrderQuantity is the current name of the raw demand field.
	OrderQuantity any `json:"order_quantity,omitempty"`
	// Quantity is the legacy name of the raw demand field.
	Quantity any `json:"quantity,omitempty"`

	// AllocatedQuantity is the current name of the server-confirmed allocation.
	AllocatedQuantity any `json:"allocated_quantity,omitempty"`
	// AllocatedQty is the legacy name of the server-confirmed allocation.
	AllocatedQty any `json:"allocated_qty,omitempty"`

	Unit               string `json:"unit"`
	InternalUnit       string `json:"internal_unit"`
	QtyPerInternalUnit any    `json:"qty_per_internal_unit,omitempty"`

	// LockedBy names another actor currently editing the line. Advisory only.
	LockedBy string `json:"locked_by,omitempty"`
}

// NewOrderLine creates a validated OrderLine carrying the current field names
func NewOrderLine(id OrderLineID, orderID OrderID, product ProductKey, orderQuantity any, unit string) (*OrderLine, error) {
	if id == "" {
		return nil, fmt.Errorf("order line id cannot be empty")
	}
	if product == "" {
		return nil, fmt.Errorf("product key cannot be empty for order line %s", id)
	}

	return &OrderLine{
		ID:            id,
		OrderID:       orderID,
		ProductKey:    product,
		OrderQuantity: orderQuantity,
		Unit:          unit,
		InternalUnit:  unit,
	}, nil
}

// NeedsUnitConversion reports whether the order unit differs from the stocking unit
func (l OrderLine) NeedsUnitConversion() bool {
	return l.Unit != "" && l.InternalUnit != "" && l.Unit != l.InternalUnit
}
