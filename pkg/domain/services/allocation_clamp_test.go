package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		value string
		max   string
		want  string
	}{
		{"within range", "5", "10", "5"},
		{"at ceiling", "10", "10", "10"},
		{"above ceiling", "11", "10", "10"},
		{"negative", "-1", "10", "0"},
		{"negative ceiling", "3", "-2", "0"},
		{"zero", "0", "10", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(dec(tt.value), dec(tt.max))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMaxAllowedForLot(t *testing.T) {
	// stock is the smaller ceiling
	assert.True(t, dec("20").Equal(MaxAllowedForLot(dec("20"), dec("50"), dec("0"))))
	// need is the smaller ceiling; the lot's own entry counts towards it
	assert.True(t, dec("35").Equal(MaxAllowedForLot(dec("100"), dec("25"), dec("10"))))
}

func TestClampLotEdit(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		lotFree   string
		remaining string
		current   string
		want      string
		warning   ClampWarning
	}{
		{"accepted", "15", "50", "30", "0", "15", ClampNone},
		{"lowering is unrestricted", 2, "50", "0", "20", "2", ClampNone},
		{"stock ceiling", 60, "50", "100", "0", "50", ClampStockCeiling},
		{"need ceiling", 60, "100", "30", "10", "40", ClampNeedCeiling},
		{"tie reports stock", 60, "40", "40", "0", "40", ClampStockCeiling},
		{"negative input", -5, "50", "30", "0", "0", ClampInvalidInput},
		{"non numeric input", "abc", "50", "30", "0", "0", ClampInvalidInput},
		{"not finite input", math.Inf(1), "50", "30", "0", "0", ClampInvalidInput},
		{"line already over-allocated", 5, "50", "-10", "0", "0", ClampNeedCeiling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampLotEdit(tt.input, dec(tt.lotFree), dec(tt.remaining), dec(tt.current))
			assert.True(t, dec(tt.want).Equal(got.Value), "want %s, got %s", tt.want, got.Value)
			assert.Equal(t, tt.warning, got.Warning)
			assert.Equal(t, tt.warning != ClampNone, got.Clamped())
			if got.Clamped() {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestIsOverAllocated(t *testing.T) {
	assert.False(t, IsOverAllocated(dec("100"), dec("60"), dec("40")))
	assert.True(t, IsOverAllocated(dec("100"), dec("60"), dec("41")))
	assert.False(t, IsOverAllocated(dec("100"), dec("0"), dec("0")))
	assert.True(t, IsOverAllocated(dec("0"), dec("0"), dec("0.001")))
}
