package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
)

// lineState is everything the session knows about one order line.
// Lines never share state; all fields are guarded by Session.mu.
type lineState struct {
	line         *entities.OrderLine
	draft        entities.LotQuantities
	candidates   *dto.CandidateView
	reservations []entities.Reservation
	busy         bool
	speculative  *dto.LineSummary
}

// Session orchestrates allocation editing for a set of order lines.
//
// A session is created per editing context. Drafts, candidate snapshots and
// line statuses live in the session; the authoritative data stays behind the
// repositories and the gateway.
type Session struct {
	deps       Deps
	config     Config
	logger     zerolog.Logger
	status     *services.LineStatusMachine
	lifecycle  *ReservationLifecycle
	reconciler *Reconciler

	mu       sync.Mutex
	lines    map[entities.OrderLineID]*lineState
	order    []entities.OrderLineID
	selected entities.OrderLineID
}

// NewSession creates an empty session
func NewSession(deps Deps, config Config) *Session {
	deps = deps.withDefaults()
	if config.Strategy == "" {
		config.Strategy = services.StrategyFEFO
	}
	if config.Prefetch <= 0 {
		config.Prefetch = DefaultConfig().Prefetch
	}

	return &Session{
		deps:       deps,
		config:     config,
		logger:     deps.Logger.With().Str("component", "allocation_session").Logger(),
		status:     services.NewLineStatusMachine(),
		lifecycle:  NewReservationLifecycle(deps),
		reconciler: NewReconciler(deps, config),
		lines:      make(map[entities.OrderLineID]*lineState),
	}
}

// LoadLines adds order lines to the session. Reloading a line replaces its
// read model and keeps its draft.
func (s *Session) LoadLines(lines ...*entities.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if line == nil || line.ID == "" {
			return fmt.Errorf("load order lines: order line id cannot be empty")
		}
		copied := *line
		if st, ok := s.lines[line.ID]; ok {
			st.line = &copied
			continue
		}
		s.lines[line.ID] = &lineState{line: &copied, draft: entities.NewLotQuantities()}
		s.order = append(s.order, line.ID)
	}
	return nil
}

// LoadOrder loads every line of an order along with its reservation records
func (s *Session) LoadOrder(ctx context.Context, orderID entities.OrderID) error {
	if s.deps.Lines == nil {
		return fmt.Errorf("load order %s: order line repository: %w", orderID, ErrNotConfigured)
	}

	lines, err := s.deps.Lines.ListOrderLines(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if err := s.LoadLines(lines...); err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	for _, line := range lines {
		if err := s.RefreshReservations(ctx, line.ID); err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}
	}
	return nil
}

// Lines returns the loaded line IDs in load order
func (s *Session) Lines() []entities.OrderLineID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.OrderLineID(nil), s.order...)
}

// Selected returns the active line, empty when none
func (s *Session) Selected() entities.OrderLineID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes lineID the active line and loads its candidate lots.
// The previously active line is deselected.
func (s *Session) Select(ctx context.Context, lineID entities.OrderLineID) (dto.CandidateView, error) {
	s.mu.Lock()
	if _, ok := s.lines[lineID]; !ok {
		s.mu.Unlock()
		return dto.CandidateView{}, fmt.Errorf("select order line %s: %w", lineID, ErrUnknownLine)
	}
	prev := s.selected
	if prev != "" && prev != lineID {
		s.deselectLocked(prev)
	}
	s.selected = lineID
	s.mu.Unlock()

	if prev != lineID {
		s.releaseLock(ctx, prev)
		s.acquireLock(ctx, lineID)
	}

	if err := s.RefreshReservations(ctx, lineID); err != nil {
		s.logger.Warn().Err(err).Str("order_line", string(lineID)).Msg("failed to load reservations")
	}
	return s.Candidates(ctx, lineID), nil
}

// Deselect clears the active line
func (s *Session) Deselect(ctx context.Context) {
	s.mu.Lock()
	prev := s.selected
	if prev != "" {
		s.deselectLocked(prev)
	}
	s.selected = ""
	s.mu.Unlock()

	s.releaseLock(ctx, prev)
}

// Reset returns every line without unsaved edits to clean and clears the selection
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.status.Reset(s.hasPendingEditsLocked)
	prev := s.selected
	s.selected = ""
	s.mu.Unlock()

	s.releaseLock(ctx, prev)
}

// Candidates returns the line's candidate lots with expired lots removed.
// A fetch failure is reported in the view, not as an empty list.
func (s *Session) Candidates(ctx context.Context, lineID entities.OrderLineID) dto.CandidateView {
	s.mu.Lock()
	st, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return dto.CandidateView{
			OrderLineID: lineID,
			Err:         fmt.Errorf("candidate lots for order line %s: %w", lineID, ErrUnknownLine),
		}
	}
	if st.candidates != nil && st.candidates.Err == nil {
		view := *st.candidates
		s.mu.Unlock()
		return view
	}
	product := st.line.ProductKey
	s.mu.Unlock()

	lots, err := s.reconciler.FetchLots(ctx, lineID, product)
	return s.storeCandidates(lineID, lots, err)
}

// SetLotQuantity applies a manual entry for one lot of a line's draft.
// The entry is clamped to the lot's free stock and to what the line still needs.
func (s *Session) SetLotQuantity(
	ctx context.Context,
	lineID entities.OrderLineID,
	lotID entities.LotID,
	input any,
) (dto.EditResult, error) {
	s.mu.Lock()
	st, err := s.editableLocked(lineID)
	if err != nil {
		s.mu.Unlock()
		return dto.EditResult{}, fmt.Errorf("set quantity for lot %s: %w", lotID, err)
	}
	if st.candidates == nil || st.candidates.Err != nil {
		s.mu.Unlock()
		return dto.EditResult{}, fmt.Errorf("set quantity for lot %s on order line %s: %w", lotID, lineID, ErrCandidatesNotLoaded)
	}
	lot, ok := findLot(st.candidates.Lots, lotID)
	if !ok {
		s.mu.Unlock()
		return dto.EditResult{}, fmt.Errorf("set quantity for lot %s on order line %s: %w", lotID, lineID, ErrUnknownLot)
	}

	required := services.RequiredQuantity(*st.line)
	committed := services.AllocatedQuantity(*st.line)
	current := st.draft.Get(lotID)
	remaining := required.Sub(committed).Sub(st.draft.Total())

	clamp := services.ClampLotEdit(input, services.FreeQuantity(lot), remaining, current)
	st.draft.Set(lotID, clamp.Value)
	result := s.editResultLocked(st, s.status.Edit(lineID))
	result.LotID = lotID
	result.Clamp = clamp
	s.mu.Unlock()

	if clamp.Clamped() {
		s.deps.Metrics.RecordClampWarning(ctx, clamp.Warning)
		s.deps.Notifier.Notify(ctx, Notification{
			OrderLineID: lineID,
			Severity:    SeverityWarning,
			Message:     clamp.Message,
		})
	}
	s.publish(events.NewAllocationDraftedEvent(lineID, events.SourceManual, result.Draft))
	return result, nil
}

// AutoAllocate replaces the line's draft with a FEFO proposal covering what
// the line still needs beyond its committed allocation.
func (s *Session) AutoAllocate(ctx context.Context, lineID entities.OrderLineID) (dto.EditResult, error) {
	return s.autoAllocate(ctx, lineID, nil)
}

// autoAllocate matches against the line's candidates less what drafted already holds
func (s *Session) autoAllocate(ctx context.Context, lineID entities.OrderLineID, drafted entities.LotQuantities) (dto.EditResult, error) {
	view := s.Candidates(ctx, lineID)
	if view.Err != nil {
		return dto.EditResult{}, fmt.Errorf("auto-allocate order line %s: %w", lineID, view.Err)
	}

	s.mu.Lock()
	st, err := s.editableLocked(lineID)
	if err != nil {
		s.mu.Unlock()
		return dto.EditResult{}, fmt.Errorf("auto-allocate: %w", err)
	}

	required := services.RequiredQuantity(*st.line)
	committed := services.AllocatedQuantity(*st.line)
	st.draft = services.AllocateFEFO(required, committed, services.DeductDrafted(view.Lots, drafted))
	result := s.editResultLocked(st, s.status.Edit(lineID))
	s.mu.Unlock()

	s.logger.Debug().
		Str("order_line", string(lineID)).
		Str("draft", result.Draft.String()).
		Msg("fefo proposal")
	s.publish(events.NewAllocationDraftedEvent(lineID, events.SourceFEFO, result.Draft))
	return result, nil
}

// AutoAllocateAll runs AutoAllocate over every loaded line in order. Candidate
// lots are prefetched concurrently. Stock drafted for earlier lines is not
// offered again to later lines sharing a lot. Lines that fail are reported in
// the joined error and the remaining lines are still allocated.
func (s *Session) AutoAllocateAll(ctx context.Context) (map[entities.OrderLineID]dto.EditResult, error) {
	ids := s.Lines()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Prefetch)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			// failures are kept in the line's candidate view
			s.Candidates(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[entities.OrderLineID]dto.EditResult, len(ids))
	drafted := entities.NewLotQuantities()
	var errs []error
	for _, id := range ids {
		result, err := s.autoAllocate(ctx, id, drafted)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results[id] = result
		for lotID, qty := range result.Draft {
			drafted.Set(lotID, drafted.Get(lotID).Add(qty))
		}
	}
	return results, errors.Join(errs...)
}

// Clear empties the line's draft
func (s *Session) Clear(ctx context.Context, lineID entities.OrderLineID) (dto.EditResult, error) {
	s.mu.Lock()
	st, err := s.editableLocked(lineID)
	if err != nil {
		s.mu.Unlock()
		return dto.EditResult{}, fmt.Errorf("clear: %w", err)
	}
	st.draft.Clear()
	result := s.editResultLocked(st, s.status.Edit(lineID))
	s.mu.Unlock()

	s.publish(events.NewAllocationClearedEvent(lineID))
	return result, nil
}

// Commit saves the line's draft as hard reservations.
//
// While the call is in flight the line is busy and its summary shows the
// expected outcome. On success the draft is cleared and the line becomes
// committed; on failure nothing changes and the error is also sent to the
// notifier.
func (s *Session) Commit(ctx context.Context, lineID entities.OrderLineID) (*repositories.CommitResult, error) {
	s.mu.Lock()
	st, err := s.editableLocked(lineID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("commit: %w", err)
	}
	line := *st.line
	draft := st.draft.Clone()
	if len(draft) > 0 {
		st.busy = true
		view := s.reconciler.Apply(s.summaryLocked(st, ""), Speculation{
			CommittedDelta: draft.Total(),
			ClearDraft:     true,
		})
		st.speculative = &view
	}
	s.mu.Unlock()

	result, err := s.lifecycle.Commit(ctx, line, draft)

	s.mu.Lock()
	st.busy = false
	st.speculative = nil
	if err != nil {
		s.status.SaveFailed(lineID)
		s.mu.Unlock()
		var perr *repositories.PersistenceError
		if errors.As(err, &perr) {
			s.settle(ctx, line)
		}
		return nil, err
	}
	st.draft.Clear()
	st.line.AllocatedQuantity = result.AllocatedQuantity
	st.reservations = append(st.reservations, result.Reservations...)
	s.status.SaveSucceeded(lineID)
	s.mu.Unlock()

	s.settle(ctx, line)
	return result, nil
}

// Cancel reverses one hard reservation of the line with a mandatory reason.
// The line's draft and status are not touched.
func (s *Session) Cancel(
	ctx context.Context,
	lineID entities.OrderLineID,
	reservationID entities.ReservationID,
	reason entities.CancelReason,
	note string,
) (*repositories.CancelResult, error) {
	s.mu.Lock()
	st, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("cancel reservation %s: order line %s: %w", reservationID, lineID, ErrUnknownLine)
	}
	loaded := st.reservations != nil
	s.mu.Unlock()

	if !loaded {
		if err := s.RefreshReservations(ctx, lineID); err != nil {
			return nil, fmt.Errorf("cancel reservation %s: %w", reservationID, err)
		}
	}

	s.mu.Lock()
	if st.busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("cancel reservation %s: order line %s: %w", reservationID, lineID, ErrLineBusy)
	}
	line := *st.line
	records := append([]entities.Reservation(nil), st.reservations...)
	record, found := services.FindReservation(records, reservationID)
	if found && record.IsActive() && record.Kind == entities.HardReservation && reason.Valid() {
		st.busy = true
		view := s.reconciler.Apply(s.summaryLocked(st, ""), Speculation{
			CommittedDelta: record.Quantity.Neg(),
			Records:        withCancelled(records, reservationID),
		})
		st.speculative = &view
	}
	s.mu.Unlock()

	result, err := s.lifecycle.Cancel(ctx, records, repositories.CancelRequest{
		ReservationID: reservationID,
		Reason:        reason,
		Note:          note,
	})

	s.mu.Lock()
	st.busy = false
	st.speculative = nil
	if err == nil {
		st.line.AllocatedQuantity = result.AllocatedQuantity
		st.reservations = withCancelled(st.reservations, reservationID)
	}
	s.mu.Unlock()

	var perr *repositories.PersistenceError
	if err == nil || errors.As(err, &perr) {
		s.settle(ctx, line)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshReservations reloads the line's reservation records
func (s *Session) RefreshReservations(ctx context.Context, lineID entities.OrderLineID) error {
	if s.deps.Reservations == nil {
		return nil
	}

	records, err := s.deps.Reservations.ListReservations(ctx, lineID)
	if err != nil {
		return fmt.Errorf("list reservations for order line %s: %w", lineID, err)
	}
	if records == nil {
		records = []entities.Reservation{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.lines[lineID]; ok {
		st.reservations = records
	}
	return nil
}

// Summary returns the line's read model. While a save is in flight it shows
// the expected outcome of that save.
func (s *Session) Summary(ctx context.Context, lineID entities.OrderLineID) (dto.LineSummary, error) {
	lockedBy := s.lockedBy(ctx, lineID)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok {
		return dto.LineSummary{}, fmt.Errorf("summary of order line %s: %w", lineID, ErrUnknownLine)
	}
	if st.speculative != nil {
		view := *st.speculative
		view.LockedBy = lockedBy
		return view, nil
	}
	return s.summaryLocked(st, lockedBy), nil
}

// Summaries returns the read model of every line in load order
func (s *Session) Summaries(ctx context.Context) []dto.LineSummary {
	ids := s.Lines()
	out := make([]dto.LineSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := s.Summary(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, summary)
	}
	return out
}

// Draft returns a copy of the line's draft
func (s *Session) Draft(lineID entities.OrderLineID) entities.LotQuantities {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.lines[lineID]; ok {
		return st.draft.Clone()
	}
	return entities.NewLotQuantities()
}

// Status returns the line's clean/draft/committed status
func (s *Session) Status(lineID entities.OrderLineID) entities.LineStatus {
	return s.status.Status(lineID)
}

// ReservationState returns the line's reservation state from its last loaded records
func (s *Session) ReservationState(lineID entities.OrderLineID) entities.ReservationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.lines[lineID]; ok {
		return s.lifecycle.State(st.reservations)
	}
	return entities.ReservationNone
}

// Reservations returns the line's last loaded reservation records
func (s *Session) Reservations(lineID entities.OrderLineID) []entities.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.lines[lineID]; ok {
		return append([]entities.Reservation(nil), st.reservations...)
	}
	return nil
}

// IsOverAllocated reports whether the line's committed plus draft quantity exceeds what it requires
func (s *Session) IsOverAllocated(lineID entities.OrderLineID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lines[lineID]
	if !ok {
		return false
	}
	return services.IsOverAllocated(
		services.RequiredQuantity(*st.line),
		services.AllocatedQuantity(*st.line),
		st.draft.Total(),
	)
}

func (s *Session) editableLocked(lineID entities.OrderLineID) (*lineState, error) {
	st, ok := s.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("order line %s: %w", lineID, ErrUnknownLine)
	}
	if st.busy {
		return nil, fmt.Errorf("order line %s: %w", lineID, ErrLineBusy)
	}
	return st, nil
}

func (s *Session) storeCandidates(lineID entities.OrderLineID, lots []entities.CandidateLot, err error) dto.CandidateView {
	view := dto.CandidateView{OrderLineID: lineID}
	if err != nil {
		view.Err = err
		s.logger.Warn().Err(err).Str("order_line", string(lineID)).Msg("candidate fetch failed")
	} else {
		view.Lots = services.ExcludeExpired(lots, s.deps.Clock())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.lines[lineID]; ok {
		st.candidates = &view
	}
	return view
}

func (s *Session) settle(ctx context.Context, line entities.OrderLine) {
	settlement := s.reconciler.Settle(ctx, line)
	s.storeCandidates(line.ID, settlement.Lots, settlement.LotsErr)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lines[line.ID]
	if !ok {
		return
	}
	if settlement.Line != nil {
		st.line = settlement.Line
	}
	if settlement.Reservations != nil {
		st.reservations = settlement.Reservations
	}
}

func (s *Session) summaryLocked(st *lineState, lockedBy string) dto.LineSummary {
	required := services.RequiredQuantity(*st.line)
	committed := services.AllocatedQuantity(*st.line)
	draft := st.draft.Total()

	remaining := required.Sub(committed).Sub(draft)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	lockedBy = firstNonEmpty(lockedBy, st.line.LockedBy)
	return dto.LineSummary{
		OrderLineID:   st.line.ID,
		OrderID:       st.line.OrderID,
		ProductKey:    st.line.ProductKey,
		Required:      required,
		Committed:     committed,
		Draft:         draft,
		Remaining:     remaining,
		Status:        s.status.Status(st.line.ID),
		Reservation:   services.DeriveReservationState(st.reservations),
		OverAllocated: services.IsOverAllocated(required, committed, draft),
		LockedBy:      lockedBy,
	}
}

func (s *Session) editResultLocked(st *lineState, status entities.LineStatus) dto.EditResult {
	return dto.EditResult{
		OrderLineID: st.line.ID,
		Draft:       st.draft.Clone(),
		Status:      status,
		OverAllocated: services.IsOverAllocated(
			services.RequiredQuantity(*st.line),
			services.AllocatedQuantity(*st.line),
			st.draft.Total(),
		),
	}
}

func (s *Session) hasPendingEditsLocked(lineID entities.OrderLineID) bool {
	st, ok := s.lines[lineID]
	return ok && len(st.draft) > 0
}

func (s *Session) deselectLocked(lineID entities.OrderLineID) {
	s.status.Deselect(lineID, s.hasPendingEditsLocked(lineID))
}

func (s *Session) publish(event events.Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type()).Msg("failed to append event")
	}
}

func (s *Session) acquireLock(ctx context.Context, lineID entities.OrderLineID) {
	if s.deps.Locks == nil || s.config.Operator == "" || lineID == "" {
		return
	}
	ok, err := s.deps.Locks.Acquire(ctx, lineID, s.config.Operator)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_line", string(lineID)).Msg("lock advisor unavailable")
		return
	}
	if !ok {
		s.logger.Info().Str("order_line", string(lineID)).Msg("order line is being edited elsewhere")
	}
}

func (s *Session) releaseLock(ctx context.Context, lineID entities.OrderLineID) {
	if s.deps.Locks == nil || s.config.Operator == "" || lineID == "" {
		return
	}
	if err := s.deps.Locks.Release(ctx, lineID, s.config.Operator); err != nil {
		s.logger.Warn().Err(err).Str("order_line", string(lineID)).Msg("failed to release advisory lock")
	}
}

func (s *Session) lockedBy(ctx context.Context, lineID entities.OrderLineID) string {
	if s.deps.Locks == nil {
		return ""
	}
	holder, err := s.deps.Locks.LockedBy(ctx, lineID)
	if err != nil {
		s.logger.Debug().Err(err).Str("order_line", string(lineID)).Msg("lock advisor unavailable")
		return ""
	}
	if holder == s.config.Operator {
		return ""
	}
	return holder
}

func findLot(lots []entities.CandidateLot, lotID entities.LotID) (entities.CandidateLot, bool) {
	for _, lot := range lots {
		if lot.LotID == lotID {
			return lot, true
		}
	}
	return entities.CandidateLot{}, false
}

func withCancelled(records []entities.Reservation, id entities.ReservationID) []entities.Reservation {
	out := make([]entities.Reservation, len(records))
	copy(out, records)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = entities.ReservationCancelled
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
