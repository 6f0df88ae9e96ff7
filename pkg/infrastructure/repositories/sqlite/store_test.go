package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := ApplyMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	seq := 0
	store := NewStore(openTestDB(t)).WithClock(func() time.Time {
		return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	})
	store.newID = func() string {
		seq++
		return fmt.Sprintf("R%03d", seq)
	}

	ctx := context.Background()
	lines := []*entities.OrderLine{
		{ID: "L1", OrderID: "SO1", ProductKey: "SKU-1", OrderQuantity: 80, Unit: "EA", InternalUnit: "EA"},
		{ID: "L2", OrderID: "SO1", ProductKey: "SKU-2", OrderQuantity: "10"},
		{ID: "L3", OrderID: "SO2", ProductKey: "SKU-1", Quantity: 5, AllocatedQty: 2},
	}
	if err := store.LoadOrderLines(ctx, lines); err != nil {
		t.Fatalf("load order lines: %v", err)
	}
	lots := []entities.CandidateLot{
		{LotID: "B", ProductKey: "SKU-1", WarehouseID: "WH1", FreeQuantity: 100, ExpiryDate: day(2030, 12, 31)},
		{LotID: "A", ProductKey: "SKU-1", WarehouseID: "WH1", FreeQuantity: "50", ExpiryDate: day(2030, 6, 1)},
		{LotID: "N", ProductKey: "SKU-1", WarehouseID: "WH1", FreeQuantity: 7},
		{LotID: "EMPTY", ProductKey: "SKU-1", WarehouseID: "WH1", FreeQuantity: 0},
		{LotID: "C", ProductKey: "SKU-2", WarehouseID: "WH2", AvailableQuantity: 20},
	}
	if err := store.LoadLots(ctx, lots); err != nil {
		t.Fatalf("load lots: %v", err)
	}
	return store
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := ApplyMigrations(context.Background(), db); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
}

func TestFetchCandidateLotsOrdersByExpiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lots, err := store.FetchCandidateLots(ctx, repositories.CandidateQuery{
		OrderLineID: "L1",
		Strategy:    services.StrategyFEFO,
	})
	if err != nil {
		t.Fatalf("fetch lots: %v", err)
	}
	if len(lots) != 3 {
		t.Fatalf("expected 3 lots with free stock, got %d", len(lots))
	}
	got := []entities.LotID{lots[0].LotID, lots[1].LotID, lots[2].LotID}
	want := []entities.LotID{"A", "B", "N"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if lots[0].ExpiryDate == nil || !lots[0].ExpiryDate.Equal(*day(2030, 6, 1)) {
		t.Fatalf("expected lot A to expire 2030-06-01, got %v", lots[0].ExpiryDate)
	}
	if lots[2].HasExpiry() {
		t.Fatalf("expected lot N without expiry")
	}

	limited, err := store.FetchCandidateLots(ctx, repositories.CandidateQuery{ProductKey: "SKU-1", Strategy: services.StrategyFEFO, Limit: 1})
	if err != nil {
		t.Fatalf("fetch limited lots: %v", err)
	}
	if len(limited) != 1 || limited[0].LotID != "A" {
		t.Fatalf("expected only lot A with limit 1, got %v", limited)
	}

	_, err = store.FetchCandidateLots(ctx, repositories.CandidateQuery{OrderLineID: "MISSING"})
	var perr *repositories.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error for unknown line, got %v", err)
	}
}

func TestFetchCandidateLotsSkipsExpiredBeforeLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lots := []entities.CandidateLot{
		{LotID: "X1", ProductKey: "SKU-9", WarehouseID: "WH1", FreeQuantity: 100, ExpiryDate: day(2020, 1, 1)},
		{LotID: "X2", ProductKey: "SKU-9", WarehouseID: "WH1", FreeQuantity: 100, ExpiryDate: day(2021, 1, 1)},
		{LotID: "TODAY", ProductKey: "SKU-9", WarehouseID: "WH1", FreeQuantity: 5, ExpiryDate: day(2026, 10, 19)},
		{LotID: "OK", ProductKey: "SKU-9", WarehouseID: "WH1", FreeQuantity: 100, ExpiryDate: day(2030, 1, 1)},
	}
	if err := store.LoadLots(ctx, lots); err != nil {
		t.Fatalf("load lots: %v", err)
	}

	got, err := store.FetchCandidateLots(ctx, repositories.CandidateQuery{
		ProductKey:       "SKU-9",
		Strategy:         services.StrategyFEFO,
		Limit:            2,
		NotExpiredBefore: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("fetch lots: %v", err)
	}
	if len(got) != 2 || got[0].LotID != "TODAY" || got[1].LotID != "OK" {
		t.Fatalf("expected lots TODAY, OK, got %v", got)
	}
}

func TestOrderLinesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	line, err := store.GetOrderLine(ctx, "L3")
	if err != nil {
		t.Fatalf("get line: %v", err)
	}
	if !services.RequiredQuantity(*line).Equal(dec("5")) {
		t.Fatalf("expected required 5, got %s", services.RequiredQuantity(*line))
	}
	if !services.AllocatedQuantity(*line).Equal(dec("2")) {
		t.Fatalf("expected allocated 2, got %s", services.AllocatedQuantity(*line))
	}

	lines, err := store.ListOrderLines(ctx, "SO1")
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines on SO1, got %d", len(lines))
	}

	_, err = store.GetOrderLine(ctx, "MISSING")
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitAllocationWritesReservations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result, err := store.CommitAllocation(ctx, repositories.CommitRequest{
		OrderLineID: "L1",
		ProductKey:  "SKU-1",
		Allocations: []entities.LotAllocation{
			{LotID: "A", Quantity: dec("50")},
			{LotID: "B", Quantity: dec("30")},
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !result.TotalQuantity.Equal(dec("80")) || !result.AllocatedQuantity.Equal(dec("80")) {
		t.Fatalf("expected 80 committed, got total=%s allocated=%s", result.TotalQuantity, result.AllocatedQuantity)
	}
	if len(result.Reservations) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(result.Reservations))
	}

	free, err := store.LotFree(ctx, "B")
	if err != nil {
		t.Fatalf("lot free: %v", err)
	}
	if !free.Equal(dec("70")) {
		t.Fatalf("expected lot B to have 70 free, got %s", free)
	}

	records, err := store.ListReservations(ctx, "L1")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if state := services.DeriveReservationState(records); state != entities.ReservationHard {
		t.Fatalf("expected hard reservation state, got %s", state)
	}

	line, err := store.GetOrderLine(ctx, "L1")
	if err != nil {
		t.Fatalf("get line: %v", err)
	}
	if !services.RemainingQuantity(*line).IsZero() {
		t.Fatalf("expected nothing remaining, got %s", services.RemainingQuantity(*line))
	}
}

func TestCommitAllocationRollsBackOnRejection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		req         repositories.CommitRequest
		wantMessage string
	}{
		{
			name:        "unknown line",
			req:         repositories.CommitRequest{OrderLineID: "MISSING", Allocations: []entities.LotAllocation{{LotID: "A", Quantity: dec("1")}}},
			wantMessage: "order line MISSING does not exist",
		},
		{
			name:        "wrong product",
			req:         repositories.CommitRequest{OrderLineID: "L1", Allocations: []entities.LotAllocation{{LotID: "C", Quantity: dec("1")}}},
			wantMessage: "lot C holds SKU-2, not SKU-1",
		},
		{
			name: "lot exhausted across entries",
			req: repositories.CommitRequest{OrderLineID: "L1", Allocations: []entities.LotAllocation{
				{LotID: "A", Quantity: dec("30")},
				{LotID: "A", Quantity: dec("30")},
			}},
			wantMessage: "lot A has only 20 free",
		},
		{
			name:        "over allocation",
			req:         repositories.CommitRequest{OrderLineID: "L3", Allocations: []entities.LotAllocation{{LotID: "A", Quantity: dec("4")}}},
			wantMessage: "order line L3 would be over-allocated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CommitAllocation(ctx, tt.req)
			var perr *repositories.PersistenceError
			if !errors.As(err, &perr) {
				t.Fatalf("expected persistence error, got %v", err)
			}
			if perr.UserMessage() != tt.wantMessage {
				t.Fatalf("expected message %q, got %q", tt.wantMessage, perr.UserMessage())
			}
		})
	}

	free, err := store.LotFree(ctx, "A")
	if err != nil {
		t.Fatalf("lot free: %v", err)
	}
	if !free.Equal(dec("50")) {
		t.Fatalf("expected rejected commits to leave lot A at 50, got %s", free)
	}
	records, err := store.ListReservations(ctx, "L1")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no reservations after rejections, got %d", len(records))
	}
}

func TestCancelReservationRestoresStock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result, err := store.CommitAllocation(ctx, repositories.CommitRequest{
		OrderLineID: "L1",
		Allocations: []entities.LotAllocation{{LotID: "A", Quantity: dec("40")}},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	resID := result.Reservations[0].ID

	cancelled, err := store.CancelReservation(ctx, repositories.CancelRequest{
		ReservationID: resID,
		Reason:        entities.CancelWrongLot,
		Note:          "picked from the wrong bin",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled.AllocatedQuantity.IsZero() {
		t.Fatalf("expected allocated 0 after cancel, got %s", cancelled.AllocatedQuantity)
	}
	if cancelled.Reversal.Reason != entities.CancelWrongLot {
		t.Fatalf("expected reversal reason wrong_lot, got %s", cancelled.Reversal.Reason)
	}

	free, err := store.LotFree(ctx, "A")
	if err != nil {
		t.Fatalf("lot free: %v", err)
	}
	if !free.Equal(dec("50")) {
		t.Fatalf("expected lot A back at 50, got %s", free)
	}

	records, err := store.ListReservations(ctx, "L1")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(records) != 1 || records[0].Status != entities.ReservationCancelled {
		t.Fatalf("expected one cancelled record, got %v", records)
	}
	reversals, err := store.Reversals(ctx, "L1")
	if err != nil {
		t.Fatalf("list reversals: %v", err)
	}
	if len(reversals) != 1 || reversals[0].Note != "picked from the wrong bin" {
		t.Fatalf("expected one reversal with note, got %v", reversals)
	}

	_, err = store.CancelReservation(ctx, repositories.CancelRequest{ReservationID: resID, Reason: entities.CancelOther})
	var perr *repositories.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
}

func TestCancelReservationRejectsSoftHolds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	soft, err := store.HoldSoft(ctx, "L1", "B", dec("10"))
	if err != nil {
		t.Fatalf("hold soft: %v", err)
	}
	if soft.Kind != entities.SoftReservation {
		t.Fatalf("expected soft reservation, got %s", soft.Kind)
	}

	_, err = store.CancelReservation(ctx, repositories.CancelRequest{ReservationID: soft.ID, Reason: entities.CancelOther})
	if err == nil {
		t.Fatalf("expected cancel of soft hold to fail")
	}

	_, err = store.CancelReservation(ctx, repositories.CancelRequest{ReservationID: soft.ID, Reason: "bogus"})
	if err == nil {
		t.Fatalf("expected invalid reason to fail")
	}

	records, err := store.ListReservations(ctx, "L1")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if state := services.DeriveReservationState(records); state != entities.ReservationSoft {
		t.Fatalf("expected soft state, got %s", state)
	}
}
