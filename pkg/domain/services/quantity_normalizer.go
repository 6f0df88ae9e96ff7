package services

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// RequiredQuantity resolves the quantity an order line needs, in the product's internal unit.
//
// Resolution order:
//  1. the pre-converted quantity, when present and finite
//  2. the raw order quantity (current field, then legacy field)
//  3. raw / QtyPerInternalUnit when the units differ and the factor is usable
//  4. the raw quantity unconverted when conversion inputs are missing
func RequiredQuantity(line entities.OrderLine) decimal.Decimal {
	if converted, ok := ParseQuantity(line.ConvertedQuantity); ok {
		return converted
	}

	raw := OrderedQuantity(line)

	if line.NeedsUnitConversion() {
		if factor, ok := ParseQuantity(line.QtyPerInternalUnit); ok && !factor.IsZero() {
			return raw.Div(factor)
		}
	}

	return raw
}

// OrderedQuantity resolves the raw order quantity in the unit the customer ordered in
func OrderedQuantity(line entities.OrderLine) decimal.Decimal {
	return firstQuantity(line.OrderQuantity, line.Quantity)
}

// AllocatedQuantity resolves the server-confirmed allocated quantity of an order line
func AllocatedQuantity(line entities.OrderLine) decimal.Decimal {
	return firstQuantity(line.AllocatedQuantity, line.AllocatedQty)
}

// FreeQuantity resolves the quantity of a lot still available to allocate
func FreeQuantity(lot entities.CandidateLot) decimal.Decimal {
	return firstQuantity(lot.FreeQuantity, lot.AvailableQuantity)
}

// RemainingQuantity is what a line still needs beyond its committed allocation, never negative
func RemainingQuantity(line entities.OrderLine) decimal.Decimal {
	remaining := RequiredQuantity(line).Sub(AllocatedQuantity(line))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ParseQuantity converts a raw field value into a decimal.
//
// Accepted: decimal.Decimal, decimal.NullDecimal, every signed and unsigned
// integer kind, float32/float64 (NaN and infinities rejected), numeric strings
// (trimmed, empty rejected), json.Number, and pointers to any of these. The
// second result is false for anything else, including nil pointers.
func ParseQuantity(v any) (decimal.Decimal, bool) {
	switch q := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return q, true
	case *decimal.Decimal:
		if q == nil {
			return decimal.Zero, false
		}
		return *q, true
	case decimal.NullDecimal:
		return q.Decimal, q.Valid
	case int:
		return decimal.NewFromInt(int64(q)), true
	case int8:
		return decimal.NewFromInt(int64(q)), true
	case int16:
		return decimal.NewFromInt(int64(q)), true
	case int32:
		return decimal.NewFromInt32(q), true
	case int64:
		return decimal.NewFromInt(q), true
	case uint:
		return fromUint(uint64(q)), true
	case uint8:
		return fromUint(uint64(q)), true
	case uint16:
		return fromUint(uint64(q)), true
	case uint32:
		return fromUint(uint64(q)), true
	case uint64:
		return fromUint(q), true
	case float32:
		return parseFloat(float64(q))
	case float64:
		return parseFloat(q)
	case *float64:
		if q == nil {
			return decimal.Zero, false
		}
		return parseFloat(*q)
	case json.Number:
		return parseString(string(q))
	case string:
		return parseString(q)
	case *string:
		if q == nil {
			return decimal.Zero, false
		}
		return parseString(*q)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return decimal.Zero, false
		}
		return ParseQuantity(rv.Elem().Interface())
	}
}

func firstQuantity(current, legacy any) decimal.Decimal {
	if qty, ok := ParseQuantity(current); ok {
		return qty
	}
	if qty, ok := ParseQuantity(legacy); ok {
		return qty
	}
	return decimal.Zero
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func parseFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
