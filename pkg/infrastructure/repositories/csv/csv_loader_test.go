package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/services"
)

func TestLoader_ReadOrderLines(t *testing.T) {
	content := `id,order_id,product_key,order_quantity,quantity,allocated_quantity,allocated_qty,unit,internal_unit,qty_per_internal_unit
L1,SO1,SKU-1,80,,,,EA,EA,
L2,SO1,SKU-2,,50,,30,EA,,
L3,SO2,SKU-3,2400,,,,G,KG,1000
`
	lines, err := NewLoader().ReadOrderLines(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to read order lines: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	tests := []struct {
		index     int
		required  string
		allocated string
	}{
		{0, "80", "0"},
		{1, "50", "30"},
		{2, "2.4", "0"},
	}
	for _, tt := range tests {
		line := lines[tt.index]
		if got := services.RequiredQuantity(*line); !got.Equal(decimal.RequireFromString(tt.required)) {
			t.Errorf("Line %s: expected required %s, got %s", line.ID, tt.required, got)
		}
		if got := services.AllocatedQuantity(*line); !got.Equal(decimal.RequireFromString(tt.allocated)) {
			t.Errorf("Line %s: expected allocated %s, got %s", line.ID, tt.allocated, got)
		}
	}

	if lines[1].InternalUnit != "EA" {
		t.Errorf("Expected internal unit to default to the order unit, got %q", lines[1].InternalUnit)
	}
	if lines[0].OrderQuantity != "80" || lines[0].Quantity != nil {
		t.Errorf("Expected raw cells to be kept, got %#v / %#v", lines[0].OrderQuantity, lines[0].Quantity)
	}
}

func TestLoader_ReadLots(t *testing.T) {
	content := `lot_id,product_key,warehouse_id,expiry_date,available_quantity
A,SKU-1,WH1,2030-06-01,50
Z,SKU-1,WH1,,100
`
	lots, err := NewLoader().ReadLots(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to read lots: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("Expected 2 lots, got %d", len(lots))
	}
	if !lots[0].HasExpiry() || !lots[0].ExpiryDate.Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected lot A to expire 2030-06-01, got %v", lots[0].ExpiryDate)
	}
	if lots[1].HasExpiry() {
		t.Errorf("Expected lot Z without expiry")
	}
	if got := services.FreeQuantity(lots[0]); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected legacy available_quantity 50, got %s", got)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		lots    bool
		content string
		wantErr string
	}{
		{"empty", false, "id,product_key,order_quantity\n", "at least one data row"},
		{"missing column", false, "id,order_quantity\nL1,5\n", "missing column product_key"},
		{"no quantity column", false, "id,product_key\nL1,SKU\n", "needs one of"},
		{"duplicate id", false, "id,product_key,order_quantity\nL1,SKU,1\nL1,SKU,2\n", "duplicate id L1"},
		{"empty product", false, "id,product_key,order_quantity\nL1,,1\n", "product_key cannot be empty"},
		{"bad expiry", true, "lot_id,product_key,warehouse_id,free_quantity,expiry_date\nA,SKU,WH,5,01/06/2030\n", "invalid expiry_date"},
		{"no free column", true, "lot_id,product_key,warehouse_id\nA,SKU,WH\n", "needs one of"},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.lots {
				_, err = loader.ReadLots(strings.NewReader(tt.content))
			} else {
				_, err = loader.ReadOrderLines(strings.NewReader(tt.content))
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoader_LoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	linesPath := filepath.Join(dir, "order_lines.csv")
	lotsPath := filepath.Join(dir, "lots.csv")
	if err := os.WriteFile(linesPath, []byte("id,order_id,product_key,order_quantity\nL1,SO1,SKU-1,5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lotsPath, []byte("lot_id,product_key,warehouse_id,free_quantity\nA,SKU-1,WH1,7.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	lines, err := loader.LoadOrderLines(linesPath)
	if err != nil || len(lines) != 1 {
		t.Fatalf("Expected one line, got %v (%v)", lines, err)
	}
	lots, err := loader.LoadLots(lotsPath)
	if err != nil || len(lots) != 1 {
		t.Fatalf("Expected one lot, got %v (%v)", lots, err)
	}

	if _, err := loader.LoadLots(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}
