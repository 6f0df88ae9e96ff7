package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vsinha/lotalloc/pkg/application/services/allocation"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
	testhelpers "github.com/vsinha/lotalloc/pkg/infrastructure/testing"
)

func main() {
	ctx := context.Background()

	// In-memory ledger with the warehouse scenario
	store := testhelpers.BuildWarehouseScenario()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	config := allocation.DefaultConfig()
	config.Operator = "picker-1"

	session := allocation.NewSession(allocation.Deps{
		Lots:         store,
		Gateway:      store,
		Reservations: store,
		Lines:        store,
		Logger:       logger,
	}, config)

	if err := session.LoadOrder(ctx, "SO1"); err != nil {
		fmt.Printf("❌ Loading order failed: %v\n", err)
		return
	}

	line := entities.OrderLineID("SO1-10")
	fmt.Printf("🚚 Allocating order line %s\n\n", line)

	view, err := session.Select(ctx, line)
	if err != nil || view.Failed() {
		fmt.Printf("❌ Candidate lots unavailable: %v %v\n", err, view.Err)
		return
	}

	fmt.Println("📦 Candidate lots (earliest expiry first):")
	for _, lot := range view.Lots {
		expiry := "no expiry"
		if lot.ExpiryDate != nil {
			expiry = lot.ExpiryDate.Format("2006-01-02")
		}
		fmt.Printf("  %s: %v free (%s)\n", lot.LotID, lot.FreeQuantity, expiry)
	}
	fmt.Println()

	// A manual entry above the lot's stock is clamped
	edit, err := session.SetLotQuantity(ctx, line, view.Lots[0].LotID, "70")
	if err != nil {
		fmt.Printf("❌ Edit failed: %v\n", err)
		return
	}
	fmt.Printf("✏️  Entered 70 on %s, kept %s", view.Lots[0].LotID, edit.Clamp.Value)
	if edit.Clamp.Clamped() {
		fmt.Printf(" (%s)", edit.Clamp.Message)
	}
	fmt.Println()

	// FEFO fills the rest
	proposal, err := session.AutoAllocate(ctx, line)
	if err != nil {
		fmt.Printf("❌ Auto-allocation failed: %v\n", err)
		return
	}
	fmt.Println("🤖 FEFO proposal:")
	for _, alloc := range proposal.Draft.Allocations() {
		fmt.Printf("  %s: %s\n", alloc.LotID, alloc.Quantity)
	}
	fmt.Println()

	result, err := session.Commit(ctx, line)
	if err != nil {
		fmt.Printf("❌ Commit failed: %v\n", err)
		return
	}
	fmt.Printf("✅ Committed %s in %d hard reservations\n", result.TotalQuantity, len(result.Reservations))

	// Reverse the first reservation
	first := result.Reservations[0]
	cancel, err := session.Cancel(ctx, line, first.ID, entities.CancelWrongLot, "picked from the wrong shelf")
	if err != nil {
		fmt.Printf("❌ Cancel failed: %v\n", err)
		return
	}
	fmt.Printf("↩️  Cancelled %s on %s, line now holds %s\n\n", cancel.Quantity, cancel.LotID, cancel.AllocatedQuantity)

	summary, err := session.Summary(ctx, line)
	if err != nil {
		fmt.Printf("❌ Summary failed: %v\n", err)
		return
	}
	fmt.Println("📊 Line summary:")
	fmt.Printf("  Required:  %s\n", summary.Required)
	fmt.Printf("  Committed: %s\n", summary.Committed)
	fmt.Printf("  Remaining: %s\n", summary.Remaining)
	fmt.Printf("  Status:    %s\n", summary.Status)
	fmt.Printf("  Holds:     %s\n", summary.Reservation)
}
