package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// lotRecord is a stored lot with its free quantity resolved once at load time
type lotRecord struct {
	lot  entities.CandidateLot
	free decimal.Decimal
}

// Store provides in-memory order lines, lots and a reservation ledger.
// It implements every repository port and the allocation gateway.
type Store struct {
	mu sync.RWMutex

	lines     map[entities.OrderLineID]*entities.OrderLine
	lineOrder []entities.OrderLineID

	lots     map[entities.LotID]*lotRecord
	lotOrder []entities.LotID

	reservations map[entities.ReservationID]*entities.Reservation
	byLine       map[entities.OrderLineID][]entities.ReservationID
	reversals    []entities.Reversal

	clock func() time.Time
	newID func() string
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		lines:        make(map[entities.OrderLineID]*entities.OrderLine),
		lots:         make(map[entities.LotID]*lotRecord),
		reservations: make(map[entities.ReservationID]*entities.Reservation),
		byLine:       make(map[entities.OrderLineID][]entities.ReservationID),
		clock:        time.Now,
		newID:        uuid.NewString,
	}
}

// Verify interface compliance
var (
	_ repositories.CandidateLotRepository = (*Store)(nil)
	_ repositories.AllocationGateway      = (*Store)(nil)
	_ repositories.ReservationRepository  = (*Store)(nil)
	_ repositories.OrderLineRepository    = (*Store)(nil)
)

// WithClock sets the time source used for record timestamps
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// LoadOrderLines loads order lines into the store, replacing lines with the same ID
func (s *Store) LoadOrderLines(lines []*entities.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if line == nil || line.ID == "" {
			return fmt.Errorf("order line id cannot be empty")
		}
		if line.ProductKey == "" {
			return fmt.Errorf("product key cannot be empty for order line %s", line.ID)
		}
		copied := *line
		// the store keeps one normalized committed figure per line
		copied.AllocatedQuantity = services.AllocatedQuantity(*line)
		copied.AllocatedQty = nil
		if _, exists := s.lines[line.ID]; !exists {
			s.lineOrder = append(s.lineOrder, line.ID)
		}
		s.lines[line.ID] = &copied
	}
	return nil
}

// LoadLots loads lots into the store, replacing lots with the same ID
func (s *Store) LoadLots(lots []entities.CandidateLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lot := range lots {
		if lot.LotID == "" {
			return fmt.Errorf("lot id cannot be empty")
		}
		if lot.ProductKey == "" {
			return fmt.Errorf("product key cannot be empty for lot %s", lot.LotID)
		}
		if _, exists := s.lots[lot.LotID]; !exists {
			s.lotOrder = append(s.lotOrder, lot.LotID)
		}
		s.lots[lot.LotID] = &lotRecord{lot: lot, free: services.FreeQuantity(lot)}
	}
	return nil
}

// LotFree returns the current free quantity of a lot
func (s *Store) LotFree(lotID entities.LotID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lots[lotID]
	if !ok {
		return decimal.Zero, fmt.Errorf("lot %s: %w", lotID, repositories.ErrNotFound)
	}
	return rec.free, nil
}

// Reversals returns the reversal ledger of a line, oldest first
func (s *Store) Reversals(lineID entities.OrderLineID) []entities.Reversal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.Reversal
	for _, r := range s.reversals {
		if r.OrderLineID == lineID {
			out = append(out, r)
		}
	}
	return out
}

func (r *lotRecord) snapshot() entities.CandidateLot {
	lot := r.lot
	lot.FreeQuantity = r.free
	lot.AvailableQuantity = nil
	return lot
}
