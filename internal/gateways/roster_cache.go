package gateway

import (
	"sync/atomic"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
)

type Clock func() time.Time

type rosterSnapshot struct {
	directory model.Directory
	expiresAt time.Time
}

// RosterCache keeps the last good directory snapshot for a fixed TTL.
// Readers never block; Store swaps the whole snapshot, so concurrent
// refreshes settle on whichever finished last.
type RosterCache struct {
	ttl      time.Duration
	now      Clock
	snapshot atomic.Pointer[rosterSnapshot]
}

func NewRosterCache(ttl time.Duration, now Clock) *RosterCache {
	if now == nil {
		now = time.Now
	}
	return &RosterCache{ttl: ttl, now: now}
}

// Get returns the cached directory while it is fresh.
func (c *RosterCache) Get() (model.Directory, bool) {
	s := c.snapshot.Load()
	if s == nil || !c.now().Before(s.expiresAt) {
		return model.Directory{}, false
	}
	return s.directory, true
}

// Store caches d. Unusable snapshots (no token) are ignored.
func (c *RosterCache) Store(d model.Directory) {
	if !d.Available() {
		return
	}
	c.snapshot.Store(&rosterSnapshot{directory: d, expiresAt: c.now().Add(c.ttl)})
}

func (c *RosterCache) Invalidate() {
	c.snapshot.Store(nil)
}
