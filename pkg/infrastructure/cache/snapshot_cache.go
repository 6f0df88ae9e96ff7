// Package cache keeps recently fetched candidate lots so reselecting a line
// does not hit the lot source again until the line is written to.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// DefaultSize is the number of lines kept when no size is configured
const DefaultSize = 256

// SnapshotCache is a bounded LRU of candidate lot snapshots keyed by order line
type SnapshotCache struct {
	lots *lru.Cache[entities.OrderLineID, []entities.CandidateLot]
}

// NewSnapshotCache creates a cache holding at most size lines
func NewSnapshotCache(size int) (*SnapshotCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[entities.OrderLineID, []entities.CandidateLot](size)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &SnapshotCache{lots: c}, nil
}

// Get returns a copy of the cached snapshot
func (c *SnapshotCache) Get(lineID entities.OrderLineID) ([]entities.CandidateLot, bool) {
	lots, ok := c.lots.Get(lineID)
	if !ok {
		return nil, false
	}
	return append([]entities.CandidateLot(nil), lots...), true
}

// Put stores a copy of lots for the line
func (c *SnapshotCache) Put(lineID entities.OrderLineID, lots []entities.CandidateLot) {
	c.lots.Add(lineID, append([]entities.CandidateLot(nil), lots...))
}

// Invalidate drops the line's snapshot
func (c *SnapshotCache) Invalidate(lineID entities.OrderLineID) {
	c.lots.Remove(lineID)
}

// Purge drops every snapshot
func (c *SnapshotCache) Purge() {
	c.lots.Purge()
}

// Len returns the number of cached lines
func (c *SnapshotCache) Len() int {
	return c.lots.Len()
}
