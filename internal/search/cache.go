package search

import (
	"sync"

	"github.com/hyperjump/soundsift/internal/vector"
)

// snapshotCache keeps the last loaded snapshot while the live file's size and
// modification time are unchanged.
type snapshotCache struct {
	mu   sync.Mutex
	snap *vector.Snapshot
}

// get returns a retained snapshot; the caller releases it.
func (c *snapshotCache) get(store vector.Store) (*vector.Snapshot, error) {
	st, err := store.State()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil && c.snap.Matches(st) {
		return c.snap.Retain(), nil
	}
	snap, err := store.Snapshot()
	if err != nil {
		return nil, err
	}
	if c.snap != nil {
		_ = c.snap.Release()
	}
	c.snap = snap
	return snap.Retain(), nil
}

func (c *snapshotCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return nil
	}
	err := c.snap.Release()
	c.snap = nil
	return err
}
