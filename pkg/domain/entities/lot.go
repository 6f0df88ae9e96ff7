package entities

import (
	"fmt"
	"time"
)

// CandidateLot represents a lot offered as supply for one order line.
//
// A slice of candidate lots is a snapshot returned by the lot query; the
// engine never owns or mutates it.
type CandidateLot struct {
	LotID       LotID       `json:"lot_id"`
	ProductKey  ProductKey  `json:"product_key,omitempty"`
	WarehouseID WarehouseID `json:"warehouse_id"`
	ExpiryDate  *time.Time  `json:"expiry_date,omitempty"`

	// FreeQuantity is the current name of the quantity available to allocate.
	FreeQuantity any `json:"free_quantity,omitempty"`
	// AvailableQuantity is the legacy name of FreeQuantity.
	AvailableQuantity any `json:"available_quantity,omitempty"`
}

// NewCandidateLot creates a validated CandidateLot
func NewCandidateLot(lotID LotID, warehouseID WarehouseID, freeQuantity any, expiry *time.Time) (*CandidateLot, error) {
	if lotID == "" {
		return nil, fmt.Errorf("lot id cannot be empty")
	}
	if warehouseID == "" {
		return nil, fmt.Errorf("warehouse id cannot be empty for lot %s", lotID)
	}

	return &CandidateLot{
		LotID:        lotID,
		WarehouseID:  warehouseID,
		ExpiryDate:   expiry,
		FreeQuantity: freeQuantity,
	}, nil
}

// HasExpiry reports whether the lot carries an expiry date
func (l CandidateLot) HasExpiry() bool {
	return l.ExpiryDate != nil && !l.ExpiryDate.IsZero()
}
