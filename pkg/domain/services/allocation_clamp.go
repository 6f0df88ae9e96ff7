package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ClampWarning explains why a proposed lot quantity was changed
type ClampWarning int

const (
	// ClampNone means the value was accepted as entered
	ClampNone ClampWarning = iota
	// ClampInvalidInput means the entry was negative or not a number and became zero
	ClampInvalidInput
	// ClampStockCeiling means the entry exceeded the lot's free quantity
	ClampStockCeiling
	// ClampNeedCeiling means the entry exceeded what the line still needs
	ClampNeedCeiling
)

// String method for ClampWarning enum
func (w ClampWarning) String() string {
	switch w {
	case ClampNone:
		return "none"
	case ClampInvalidInput:
		return "invalid_input"
	case ClampStockCeiling:
		return "stock_ceiling"
	case ClampNeedCeiling:
		return "need_ceiling"
	default:
		return "unknown"
	}
}

// MarshalText encodes the warning by name
func (w ClampWarning) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// ClampResult is the outcome of a single lot edit
type ClampResult struct {
	Value      decimal.Decimal `json:"value"`
	MaxAllowed decimal.Decimal `json:"max_allowed"`
	Warning    ClampWarning    `json:"warning"`
	Message    string          `json:"message,omitempty"`
}

// Clamped reports whether the entered value was changed
func (r ClampResult) Clamped() bool {
	return r.Warning != ClampNone
}

// Clamp bounds value to [0, maxAllowed]. Negative values become zero.
// A negative maxAllowed is treated as zero.
func Clamp(value, maxAllowed decimal.Decimal) decimal.Decimal {
	if maxAllowed.IsNegative() {
		maxAllowed = decimal.Zero
	}
	if value.IsNegative() {
		return decimal.Zero
	}
	if value.GreaterThan(maxAllowed) {
		return maxAllowed
	}
	return value
}

// MaxAllowedForLot is the ceiling for one lot entry: the lot's own free stock,
// or what still satisfies the line counting this lot's current entry,
// whichever is smaller.
func MaxAllowedForLot(lotFree, remainingNeeded, currentValue decimal.Decimal) decimal.Decimal {
	return decimal.Min(lotFree, remainingNeeded.Add(currentValue))
}

// ClampLotEdit validates a raw user entry for one lot.
//
// remainingNeeded is required - committed - all draft entries of the line,
// including currentValue for this lot.
func ClampLotEdit(input any, lotFree, remainingNeeded, currentValue decimal.Decimal) ClampResult {
	stockCeiling := lotFree
	if stockCeiling.IsNegative() {
		stockCeiling = decimal.Zero
	}
	needCeiling := remainingNeeded.Add(currentValue)
	if needCeiling.IsNegative() {
		needCeiling = decimal.Zero
	}
	maxAllowed := decimal.Min(stockCeiling, needCeiling)

	value, ok := ParseQuantity(input)
	if !ok || value.IsNegative() {
		return ClampResult{
			Value:      decimal.Zero,
			MaxAllowed: maxAllowed,
			Warning:    ClampInvalidInput,
			Message:    fmt.Sprintf("%v is not a valid quantity; it was set to 0", input),
		}
	}

	if !value.GreaterThan(maxAllowed) {
		return ClampResult{Value: value, MaxAllowed: maxAllowed, Warning: ClampNone}
	}

	// The smaller ceiling is the one that binds; the lot's stock wins a tie.
	if stockCeiling.LessThanOrEqual(needCeiling) {
		return ClampResult{
			Value:      maxAllowed,
			MaxAllowed: maxAllowed,
			Warning:    ClampStockCeiling,
			Message:    fmt.Sprintf("only %s is free in this lot", stockCeiling.String()),
		}
	}
	return ClampResult{
		Value:      maxAllowed,
		MaxAllowed: maxAllowed,
		Warning:    ClampNeedCeiling,
		Message:    fmt.Sprintf("the line only needs %s more from this lot", needCeiling.String()),
	}
}
