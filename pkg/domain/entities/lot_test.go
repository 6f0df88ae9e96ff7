package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCandidateLot_Validation(t *testing.T) {
	expiry := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	validLot, err := NewCandidateLot("LOT001", "WH1", 50, &expiry)
	if err != nil {
		t.Fatalf("Expected valid lot creation to succeed: %v", err)
	}
	if !validLot.HasExpiry() {
		t.Errorf("Expected lot to carry an expiry date")
	}

	testCases := []struct {
		name        string
		lotID       LotID
		warehouseID WarehouseID
		expectError string
	}{
		{"empty lot id", "", "WH1", "lot id cannot be empty"},
		{"empty warehouse", "LOT001", "", "warehouse id cannot be empty for lot LOT001"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCandidateLot(tc.lotID, tc.warehouseID, 10, nil)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestOrderLine_Validation(t *testing.T) {
	line, err := NewOrderLine("L1", "O1", "SKU-1", "12", "EA")
	if err != nil {
		t.Fatalf("Expected valid order line creation to succeed: %v", err)
	}
	if line.NeedsUnitConversion() {
		t.Errorf("Expected no unit conversion when unit equals internal unit")
	}

	line.Unit = "CS"
	if !line.NeedsUnitConversion() {
		t.Errorf("Expected unit conversion for CS -> EA")
	}

	if _, err := NewOrderLine("", "O1", "SKU-1", 1, "EA"); err == nil {
		t.Errorf("Expected error for empty order line id")
	}
	if _, err := NewOrderLine("L1", "O1", "", 1, "EA"); err == nil {
		t.Errorf("Expected error for empty product key")
	}
}

func TestLotQuantities_SetRemovesNonPositive(t *testing.T) {
	lq := NewLotQuantities()
	lq.Set("A", decimal.NewFromInt(10))
	lq.Set("B", decimal.NewFromInt(5))
	lq.Set("A", decimal.Zero)
	lq.Set("C", decimal.NewFromInt(-3))

	if len(lq) != 1 {
		t.Fatalf("Expected 1 entry, got %d: %s", len(lq), lq)
	}
	if !lq.Get("B").Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected B=5, got %s", lq.Get("B"))
	}
	if !lq.Get("A").IsZero() {
		t.Errorf("Expected missing lot to read as zero, got %s", lq.Get("A"))
	}
	if !lq.Total().Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected total 5, got %s", lq.Total())
	}
}

func TestLotQuantities_CloneIsIndependent(t *testing.T) {
	lq := LotQuantities{"A": decimal.NewFromInt(1), "B": decimal.NewFromInt(2)}
	clone := lq.Clone()
	clone.Set("A", decimal.NewFromInt(9))

	if !lq.Get("A").Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected original to keep A=1, got %s", lq.Get("A"))
	}
	if lq.Equal(clone) {
		t.Errorf("Expected maps to differ after editing the clone")
	}

	allocs := lq.Allocations()
	if len(allocs) != 2 || allocs[0].LotID != "A" || allocs[1].LotID != "B" {
		t.Errorf("Expected allocations ordered by lot id, got %+v", allocs)
	}
	if lq.String() != "{A:1, B:2}" {
		t.Errorf("Expected {A:1, B:2}, got %s", lq.String())
	}
}

func TestCancelReason_Parse(t *testing.T) {
	for _, reason := range CancelReasons {
		parsed, err := ParseCancelReason(string(reason))
		if err != nil {
			t.Errorf("Expected %s to parse: %v", reason, err)
		}
		if parsed != reason {
			t.Errorf("Expected %s, got %s", reason, parsed)
		}
	}

	if _, err := ParseCancelReason("changed_my_mind"); err == nil {
		t.Errorf("Expected unknown reason to be rejected")
	}
	if CancelReason("").Valid() {
		t.Errorf("Expected empty reason to be invalid")
	}
}

func TestEnumStrings(t *testing.T) {
	if LineDraft.String() != "draft" || LineCommitted.String() != "committed" || LineClean.String() != "clean" {
		t.Errorf("Unexpected line status names")
	}
	if ReservationMixed.String() != "mixed" || !ReservationMixed.HasHard() || ReservationSoft.HasHard() {
		t.Errorf("Unexpected reservation state behaviour")
	}

	var status LineStatus
	if err := status.UnmarshalText([]byte("committed")); err != nil || status != LineCommitted {
		t.Errorf("Expected committed, got %v (%v)", status, err)
	}

	var kind ReservationKind
	if err := kind.UnmarshalText([]byte("hard")); err != nil || kind != HardReservation {
		t.Errorf("Expected hard, got %v (%v)", kind, err)
	}
}
