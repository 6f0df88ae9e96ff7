package services

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseQuantity(t *testing.T) {
	five := 5.0
	str := " 7.5 "
	d := dec("3")
	six := 6
	num := json.Number("2.5")
	var nilInt *int

	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"nil", nil, "0", false},
		{"int", 12, "12", true},
		{"int64", int64(-4), "-4", true},
		{"uint64", uint64(9), "9", true},
		{"int8", int8(-3), "-3", true},
		{"int16", int16(300), "300", true},
		{"uint8", uint8(7), "7", true},
		{"uint16", uint16(65000), "65000", true},
		{"int pointer", &six, "6", true},
		{"nil int pointer", nilInt, "0", false},
		{"json number pointer", &num, "2.5", true},
		{"float", 2.25, "2.25", true},
		{"float pointer", &five, "5", true},
		{"nan", math.NaN(), "0", false},
		{"inf", math.Inf(1), "0", false},
		{"numeric string", "40", "40", true},
		{"padded string pointer", &str, "7.5", true},
		{"empty string", "   ", "0", false},
		{"garbage string", "ten", "0", false},
		{"json number", json.Number("1.5"), "1.5", true},
		{"decimal", d, "3", true},
		{"decimal pointer", &d, "3", true},
		{"null decimal", decimal.NullDecimal{}, "0", false},
		{"unsupported type", []int{1}, "0", false},
		{"pointer to unsupported type", &[]int{1}, "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseQuantity(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestRequiredQuantity(t *testing.T) {
	tests := []struct {
		name string
		line entities.OrderLine
		want string
	}{
		{
			name: "pre-converted wins",
			line: entities.OrderLine{ConvertedQuantity: "24", OrderQuantity: 2, Unit: "CS", InternalUnit: "EA", QtyPerInternalUnit: 12},
			want: "24",
		},
		{
			name: "unparseable pre-converted falls through",
			line: entities.OrderLine{ConvertedQuantity: "n/a", OrderQuantity: 10, Unit: "EA", InternalUnit: "EA"},
			want: "10",
		},
		{
			name: "current field preferred over legacy",
			line: entities.OrderLine{OrderQuantity: 8, Quantity: 3},
			want: "8",
		},
		{
			name: "legacy field used when current missing",
			line: entities.OrderLine{Quantity: "3"},
			want: "3",
		},
		{
			name: "unit conversion divides by factor",
			line: entities.OrderLine{OrderQuantity: 120, Unit: "EA", InternalUnit: "CS", QtyPerInternalUnit: 12},
			want: "10",
		},
		{
			name: "zero factor leaves raw quantity",
			line: entities.OrderLine{OrderQuantity: 120, Unit: "EA", InternalUnit: "CS", QtyPerInternalUnit: 0},
			want: "120",
		},
		{
			name: "missing factor leaves raw quantity",
			line: entities.OrderLine{OrderQuantity: 120, Unit: "EA", InternalUnit: "CS"},
			want: "120",
		},
		{
			name: "missing internal unit leaves raw quantity",
			line: entities.OrderLine{OrderQuantity: 120, Unit: "EA", QtyPerInternalUnit: 12},
			want: "120",
		},
		{
			name: "nothing present defaults to zero",
			line: entities.OrderLine{},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequiredQuantity(tt.line)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestAllocatedAndFreeQuantity(t *testing.T) {
	assert.True(t, dec("30").Equal(AllocatedQuantity(entities.OrderLine{AllocatedQuantity: 30, AllocatedQty: 5})))
	assert.True(t, dec("5").Equal(AllocatedQuantity(entities.OrderLine{AllocatedQty: "5"})))
	assert.True(t, AllocatedQuantity(entities.OrderLine{}).IsZero())

	assert.True(t, dec("50").Equal(FreeQuantity(entities.CandidateLot{FreeQuantity: "50", AvailableQuantity: 1})))
	assert.True(t, dec("1").Equal(FreeQuantity(entities.CandidateLot{AvailableQuantity: 1})))
	assert.True(t, FreeQuantity(entities.CandidateLot{FreeQuantity: math.NaN()}).IsZero())
}

func TestRemainingQuantity(t *testing.T) {
	assert.True(t, dec("20").Equal(RemainingQuantity(entities.OrderLine{OrderQuantity: 50, AllocatedQuantity: 30})))
	assert.True(t, RemainingQuantity(entities.OrderLine{OrderQuantity: 50, AllocatedQuantity: 70}).IsZero())
}

func TestOrderedQuantity(t *testing.T) {
	line := entities.OrderLine{OrderQuantity: 120, Unit: "EA", InternalUnit: "CS", QtyPerInternalUnit: 12}
	assert.True(t, dec("120").Equal(OrderedQuantity(line)))
	assert.True(t, dec("10").Equal(RequiredQuantity(line)))
	assert.True(t, dec("4").Equal(OrderedQuantity(entities.OrderLine{Quantity: "4"})))
}
