package services

import (
	"sync"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// LineStatusMachine tracks the clean/draft/committed status of each order line.
//
// It does not compare values: any quantity-changing action makes a line a
// draft, even one that restores the committed values. Save failures leave the
// status untouched; there is no error state.
type LineStatusMachine struct {
	mu       sync.RWMutex
	statuses map[entities.OrderLineID]entities.LineStatus
}

// NewLineStatusMachine creates a machine where every line starts clean
func NewLineStatusMachine() *LineStatusMachine {
	return &LineStatusMachine{
		statuses: make(map[entities.OrderLineID]entities.LineStatus),
	}
}

// Status returns the current status of a line
func (m *LineStatusMachine) Status(lineID entities.OrderLineID) entities.LineStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[lineID]
}

// Edit records a manual edit, auto-allocation or clear on a line
func (m *LineStatusMachine) Edit(lineID entities.OrderLineID) entities.LineStatus {
	return m.set(lineID, entities.LineDraft)
}

// SaveSucceeded records a successful commit of the line's draft
func (m *LineStatusMachine) SaveSucceeded(lineID entities.OrderLineID) entities.LineStatus {
	return m.set(lineID, entities.LineCommitted)
}

// SaveFailed records a failed commit; the line keeps its status
func (m *LineStatusMachine) SaveFailed(lineID entities.OrderLineID) entities.LineStatus {
	return m.Status(lineID)
}

// Deselect is called when a line stops being the active line.
// The line returns to clean unless it still has unsaved edits.
func (m *LineStatusMachine) Deselect(lineID entities.OrderLineID, hasPendingEdits bool) entities.LineStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hasPendingEdits && m.statuses[lineID] == entities.LineDraft {
		return entities.LineDraft
	}
	delete(m.statuses, lineID)
	return entities.LineClean
}

// Reset applies Deselect to every tracked line.
// pending reports whether a line still has unsaved edits.
func (m *LineStatusMachine) Reset(pending func(entities.OrderLineID) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for lineID, status := range m.statuses {
		if status == entities.LineDraft && pending != nil && pending(lineID) {
			continue
		}
		delete(m.statuses, lineID)
	}
}

func (m *LineStatusMachine) set(lineID entities.OrderLineID, status entities.LineStatus) entities.LineStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[lineID] = status
	return status
}
