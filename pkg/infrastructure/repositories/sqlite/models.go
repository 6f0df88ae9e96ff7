package sqlite

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

const dateLayout = "2006-01-02"

type orderLineRow struct {
	bun.BaseModel `bun:"table:order_lines,alias:ol"`

	ID                 string          `bun:"id,pk"`
	OrderID            string          `bun:"order_id,notnull"`
	ProductKey         string          `bun:"product_key,notnull"`
	OrderQuantity      string          `bun:"order_quantity,notnull"`
	ConvertedQuantity  sql.NullString  `bun:"converted_quantity"`
	Unit               string          `bun:"unit,notnull"`
	InternalUnit       string          `bun:"internal_unit,notnull"`
	QtyPerInternalUnit sql.NullString  `bun:"qty_per_internal_unit"`
	AllocatedQuantity  decimal.Decimal `bun:"allocated_quantity,type:text,notnull"`
	LockedBy           string          `bun:"locked_by,notnull"`
}

type lotRow struct {
	bun.BaseModel `bun:"table:lots,alias:l"`

	ID           string          `bun:"id,pk"`
	ProductKey   string          `bun:"product_key,notnull"`
	WarehouseID  string          `bun:"warehouse_id,notnull"`
	ExpiryDate   sql.NullString  `bun:"expiry_date"`
	FreeQuantity decimal.Decimal `bun:"free_quantity,type:text,notnull"`
}

type reservationRow struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID          string          `bun:"id,pk"`
	OrderLineID string          `bun:"order_line_id,notnull"`
	LotID       string          `bun:"lot_id,notnull"`
	Quantity    decimal.Decimal `bun:"quantity,type:text,notnull"`
	Kind        string          `bun:"kind,notnull"`
	Status      string          `bun:"status,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
}

type reversalRow struct {
	bun.BaseModel `bun:"table:reversals,alias:rv"`

	ID            string          `bun:"id,pk"`
	ReservationID string          `bun:"reservation_id,notnull"`
	OrderLineID   string          `bun:"order_line_id,notnull"`
	LotID         string          `bun:"lot_id,notnull"`
	Quantity      decimal.Decimal `bun:"quantity,type:text,notnull"`
	Reason        string          `bun:"reason,notnull"`
	Note          string          `bun:"note,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
}

func newOrderLineRow(line *entities.OrderLine) orderLineRow {
	row := orderLineRow{
		ID:                string(line.ID),
		OrderID:           string(line.OrderID),
		ProductKey:        string(line.ProductKey),
		OrderQuantity:     services.OrderedQuantity(*line).String(),
		Unit:              line.Unit,
		InternalUnit:      line.InternalUnit,
		AllocatedQuantity: services.AllocatedQuantity(*line),
		LockedBy:          line.LockedBy,
	}
	if q, ok := services.ParseQuantity(line.ConvertedQuantity); ok {
		row.ConvertedQuantity = sql.NullString{String: q.String(), Valid: true}
	}
	if q, ok := services.ParseQuantity(line.QtyPerInternalUnit); ok {
		row.QtyPerInternalUnit = sql.NullString{String: q.String(), Valid: true}
	}
	return row
}

// entity returns the read model; quantity columns stay raw for the normalizer
func (r orderLineRow) entity() *entities.OrderLine {
	line := &entities.OrderLine{
		ID:                entities.OrderLineID(r.ID),
		OrderID:           entities.OrderID(r.OrderID),
		ProductKey:        entities.ProductKey(r.ProductKey),
		OrderQuantity:     r.OrderQuantity,
		Unit:              r.Unit,
		InternalUnit:      r.InternalUnit,
		AllocatedQuantity: r.AllocatedQuantity,
		LockedBy:          r.LockedBy,
	}
	if r.ConvertedQuantity.Valid {
		line.ConvertedQuantity = r.ConvertedQuantity.String
	}
	if r.QtyPerInternalUnit.Valid {
		line.QtyPerInternalUnit = r.QtyPerInternalUnit.String
	}
	return line
}

func newLotRow(lot entities.CandidateLot) lotRow {
	row := lotRow{
		ID:           string(lot.LotID),
		ProductKey:   string(lot.ProductKey),
		WarehouseID:  string(lot.WarehouseID),
		FreeQuantity: services.FreeQuantity(lot),
	}
	if lot.HasExpiry() {
		row.ExpiryDate = sql.NullString{String: lot.ExpiryDate.UTC().Format(dateLayout), Valid: true}
	}
	return row
}

func (r lotRow) entity() (entities.CandidateLot, error) {
	lot := entities.CandidateLot{
		LotID:        entities.LotID(r.ID),
		ProductKey:   entities.ProductKey(r.ProductKey),
		WarehouseID:  entities.WarehouseID(r.WarehouseID),
		FreeQuantity: r.FreeQuantity,
	}
	if r.ExpiryDate.Valid && r.ExpiryDate.String != "" {
		expiry, err := time.Parse(dateLayout, r.ExpiryDate.String)
		if err != nil {
			return entities.CandidateLot{}, err
		}
		lot.ExpiryDate = &expiry
	}
	return lot, nil
}

func (r reservationRow) entity() (entities.Reservation, error) {
	kind, err := entities.ParseReservationKind(r.Kind)
	if err != nil {
		return entities.Reservation{}, err
	}
	status, err := entities.ParseReservationStatus(r.Status)
	if err != nil {
		return entities.Reservation{}, err
	}
	return entities.Reservation{
		ID:          entities.ReservationID(r.ID),
		OrderLineID: entities.OrderLineID(r.OrderLineID),
		LotID:       entities.LotID(r.LotID),
		Quantity:    r.Quantity,
		Kind:        kind,
		Status:      status,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func (r reversalRow) entity() entities.Reversal {
	return entities.Reversal{
		ID:            r.ID,
		ReservationID: entities.ReservationID(r.ReservationID),
		OrderLineID:   entities.OrderLineID(r.OrderLineID),
		LotID:         entities.LotID(r.LotID),
		Quantity:      r.Quantity,
		Reason:        entities.CancelReason(r.Reason),
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
	}
}
