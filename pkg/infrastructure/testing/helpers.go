package testing

import (
	"fmt"
	"time"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/infrastructure/repositories/memory"
)

// ScenarioToday is the business date the warehouse scenario is built around
var ScenarioToday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// WarehouseLines returns the order lines of the warehouse scenario.
// They mix current and legacy field names and one unit conversion.
func WarehouseLines() []*entities.OrderLine {
	return []*entities.OrderLine{
		{ID: "SO1-10", OrderID: "SO1", ProductKey: "VACCINE-A", OrderQuantity: 80, Unit: "EA", InternalUnit: "EA"},
		{ID: "SO1-20", OrderID: "SO1", ProductKey: "SALINE-500", Quantity: "50", AllocatedQty: 30, Unit: "EA", InternalUnit: "EA"},
		{ID: "SO1-30", OrderID: "SO1", ProductKey: "SYRINGE-5ML", OrderQuantity: "15", Unit: "EA", InternalUnit: "EA"},
		{ID: "SO2-10", OrderID: "SO2", ProductKey: "GAUZE", OrderQuantity: 2400, Unit: "G", InternalUnit: "KG", QtyPerInternalUnit: 1000},
		{ID: "SO2-20", OrderID: "SO2", ProductKey: "VACCINE-A", OrderQuantity: 200, Unit: "EA", InternalUnit: "EA"},
	}
}

// WarehouseLots returns the lots of the warehouse scenario, including an expired one
func WarehouseLots() []entities.CandidateLot {
	return []entities.CandidateLot{
		{LotID: "VA-2030-06", ProductKey: "VACCINE-A", WarehouseID: "COLD-1", FreeQuantity: 50, ExpiryDate: date(2030, 6, 1)},
		{LotID: "VA-2030-12", ProductKey: "VACCINE-A", WarehouseID: "COLD-1", FreeQuantity: 100, ExpiryDate: date(2030, 12, 31)},
		{LotID: "VA-2026-01", ProductKey: "VACCINE-A", WarehouseID: "COLD-2", FreeQuantity: 500, ExpiryDate: date(2026, 1, 1)},
		{LotID: "SA-1", ProductKey: "SALINE-500", WarehouseID: "MAIN", AvailableQuantity: "100"},
		{LotID: "SY-2027-03", ProductKey: "SYRINGE-5ML", WarehouseID: "MAIN", FreeQuantity: 10, ExpiryDate: date(2027, 3, 1)},
		{LotID: "SY-UNDATED", ProductKey: "SYRINGE-5ML", WarehouseID: "MAIN", FreeQuantity: 100},
		{LotID: "GZ-1", ProductKey: "GAUZE", WarehouseID: "MAIN", FreeQuantity: "1.5", ExpiryDate: date(2029, 1, 1)},
	}
}

// BuildWarehouseScenario builds an in-memory ledger holding the warehouse scenario
func BuildWarehouseScenario() *memory.Store {
	store := memory.NewStore()
	if err := store.LoadOrderLines(WarehouseLines()); err != nil {
		panic(err)
	}
	if err := store.LoadLots(WarehouseLots()); err != nil {
		panic(err)
	}
	return store
}

// BuildLargeScenario builds a ledger with the given number of products, each with
// one order line and lotsPerProduct lots of staggered expiry
func BuildLargeScenario(products, lotsPerProduct int) *memory.Store {
	store := memory.NewStore()

	lines := make([]*entities.OrderLine, 0, products)
	lots := make([]entities.CandidateLot, 0, products*lotsPerProduct)
	for p := 0; p < products; p++ {
		product := entities.ProductKey(fmt.Sprintf("SKU-%05d", p))
		lines = append(lines, &entities.OrderLine{
			ID:            entities.OrderLineID(fmt.Sprintf("L%05d", p)),
			OrderID:       entities.OrderID(fmt.Sprintf("SO%03d", p/100)),
			ProductKey:    product,
			OrderQuantity: 10 * lotsPerProduct / 2,
			Unit:          "EA",
			InternalUnit:  "EA",
		})
		for l := 0; l < lotsPerProduct; l++ {
			lots = append(lots, entities.CandidateLot{
				LotID:        entities.LotID(fmt.Sprintf("%s-LOT%03d", product, l)),
				ProductKey:   product,
				WarehouseID:  "WH1",
				FreeQuantity: 10,
				ExpiryDate:   date(2030, time.Month(1+(lotsPerProduct-l)%12), 1+l%28),
			})
		}
	}

	if err := store.LoadOrderLines(lines); err != nil {
		panic(err)
	}
	if err := store.LoadLots(lots); err != nil {
		panic(err)
	}
	return store
}
