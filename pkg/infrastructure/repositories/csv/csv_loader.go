package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// Loader handles loading order lines and lots from CSV files.
//
// Columns are matched by header name, so either generation of a quantity
// column (order_quantity or quantity, free_quantity or available_quantity)
// is accepted. Quantity cells are kept raw for the quantity normalizer;
// an empty cell means the field is absent.
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadOrderLines loads order lines from a CSV file
func (l *Loader) LoadOrderLines(filename string) ([]*entities.OrderLine, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open order lines file %s: %w", filename, err)
	}
	defer file.Close()
	return l.ReadOrderLines(file)
}

// ReadOrderLines parses order lines from CSV content
func (l *Loader) ReadOrderLines(r io.Reader) ([]*entities.OrderLine, error) {
	rows, err := readTable(r, "order lines", []string{"id", "product_key"}, [][]string{{"order_quantity", "quantity", "converted_quantity"}})
	if err != nil {
		return nil, err
	}

	lines := make([]*entities.OrderLine, 0, len(rows))
	seen := make(map[entities.OrderLineID]bool, len(rows))
	for _, row := range rows {
		id := entities.OrderLineID(row.get("id"))
		if id == "" {
			return nil, fmt.Errorf("order lines CSV row %d: id cannot be empty", row.num)
		}
		if seen[id] {
			return nil, fmt.Errorf("order lines CSV row %d: duplicate id %s", row.num, id)
		}
		seen[id] = true

		product := entities.ProductKey(row.get("product_key"))
		if product == "" {
			return nil, fmt.Errorf("order lines CSV row %d: product_key cannot be empty", row.num)
		}

		unit := row.get("unit")
		internalUnit := row.get("internal_unit")
		if internalUnit == "" {
			internalUnit = unit
		}

		lines = append(lines, &entities.OrderLine{
			ID:                 id,
			OrderID:            entities.OrderID(row.get("order_id")),
			ProductKey:         product,
			OrderQuantity:      row.raw("order_quantity"),
			Quantity:           row.raw("quantity"),
			ConvertedQuantity:  row.raw("converted_quantity"),
			AllocatedQuantity:  row.raw("allocated_quantity"),
			AllocatedQty:       row.raw("allocated_qty"),
			Unit:               unit,
			InternalUnit:       internalUnit,
			QtyPerInternalUnit: row.raw("qty_per_internal_unit"),
			LockedBy:           row.get("locked_by"),
		})
	}
	return lines, nil
}

// LoadLots loads candidate lots from a CSV file
func (l *Loader) LoadLots(filename string) ([]entities.CandidateLot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open lots file %s: %w", filename, err)
	}
	defer file.Close()
	return l.ReadLots(file)
}

// ReadLots parses candidate lots from CSV content
func (l *Loader) ReadLots(r io.Reader) ([]entities.CandidateLot, error) {
	rows, err := readTable(r, "lots", []string{"lot_id", "product_key", "warehouse_id"}, [][]string{{"free_quantity", "available_quantity"}})
	if err != nil {
		return nil, err
	}

	lots := make([]entities.CandidateLot, 0, len(rows))
	for _, row := range rows {
		lotID := entities.LotID(row.get("lot_id"))
		if lotID == "" {
			return nil, fmt.Errorf("lots CSV row %d: lot_id cannot be empty", row.num)
		}

		lot := entities.CandidateLot{
			LotID:             lotID,
			ProductKey:        entities.ProductKey(row.get("product_key")),
			WarehouseID:       entities.WarehouseID(row.get("warehouse_id")),
			FreeQuantity:      row.raw("free_quantity"),
			AvailableQuantity: row.raw("available_quantity"),
		}
		if s := row.get("expiry_date"); s != "" {
			expiry, err := time.Parse("2006-01-02", s)
			if err != nil {
				return nil, fmt.Errorf("lots CSV row %d: invalid expiry_date format: %s (expected YYYY-MM-DD)", row.num, s)
			}
			lot.ExpiryDate = &expiry
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

type record struct {
	num    int
	fields []string
	index  map[string]int
}

func (r record) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// raw returns the cell as a string, or nil when it is empty or the column is absent
func (r record) raw(column string) any {
	if s := r.get(column); s != "" {
		return s
	}
	return nil
}

// readTable reads a headed CSV. Every required column must be present,
// and from each oneOf group at least one column.
func readTable(r io.Reader, kind string, required []string, oneOf [][]string) ([]record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, column := range required {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("%s CSV header is missing column %s. Got: %v", kind, column, records[0])
		}
	}
	for _, group := range oneOf {
		found := false
		for _, column := range group {
			if _, ok := index[column]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s CSV header needs one of %v. Got: %v", kind, group, records[0])
		}
	}

	rows := make([]record, 0, len(records)-1)
	for i, fields := range records[1:] {
		if len(fields) != len(records[0]) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(records[0]), len(fields))
		}
		rows = append(rows, record{num: i + 2, fields: fields, index: index})
	}
	return rows, nil
}
