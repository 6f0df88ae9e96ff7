package services

import "github.com/shopspring/decimal"

// IsOverAllocated reports whether committed plus in-progress quantity exceeds what the line requires.
// An exact match is not over-allocation.
func IsOverAllocated(required, dbAllocated, uiAllocated decimal.Decimal) bool {
	return dbAllocated.Add(uiAllocated).GreaterThan(required)
}
