// Package lock provides advisory locks that tell operators who else is editing an order line.
// Locks are hints; the allocation gateway stays the authority on stock.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
)

// Verify interface compliance
var (
	_ repositories.LockAdvisor = (*MemoryAdvisor)(nil)
	_ repositories.LockAdvisor = (*RedisAdvisor)(nil)
)

type hold struct {
	holder  string
	expires time.Time
}

// MemoryAdvisor keeps locks in process, for single-node setups and tests
type MemoryAdvisor struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	holds map[entities.OrderLineID]hold
}

// NewMemoryAdvisor creates an advisor whose locks lapse after ttl (0 = never)
func NewMemoryAdvisor(ttl time.Duration) *MemoryAdvisor {
	return &MemoryAdvisor{
		ttl:   ttl,
		clock: time.Now,
		holds: make(map[entities.OrderLineID]hold),
	}
}

// WithClock sets the time source used for expiry
func (a *MemoryAdvisor) WithClock(clock func() time.Time) *MemoryAdvisor {
	a.clock = clock
	return a
}

// LockedBy returns the current holder or "" when the line is free
func (a *MemoryAdvisor) LockedBy(_ context.Context, lineID entities.OrderLineID) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.liveLocked(lineID)
	if !ok {
		return "", nil
	}
	return h.holder, nil
}

// Acquire takes the lock for holder. Re-acquiring an own lock refreshes it.
func (a *MemoryAdvisor) Acquire(_ context.Context, lineID entities.OrderLineID, holder string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.liveLocked(lineID); ok && h.holder != holder {
		return false, nil
	}
	h := hold{holder: holder}
	if a.ttl > 0 {
		h.expires = a.clock().Add(a.ttl)
	}
	a.holds[lineID] = h
	return true, nil
}

// Release drops the lock if holder owns it
func (a *MemoryAdvisor) Release(_ context.Context, lineID entities.OrderLineID, holder string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.holds[lineID]; ok && h.holder == holder {
		delete(a.holds, lineID)
	}
	return nil
}

func (a *MemoryAdvisor) liveLocked(lineID entities.OrderLineID) (hold, bool) {
	h, ok := a.holds[lineID]
	if !ok {
		return hold{}, false
	}
	if !h.expires.IsZero() && !a.clock().Before(h.expires) {
		delete(a.holds, lineID)
		return hold{}, false
	}
	return h, true
}
