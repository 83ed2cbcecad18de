package application

import (
	"sync"
	"time"
)

// statusCache keeps recent status results per meeting so that many clients
// polling the same meeting share one backend call per TTL.
type statusCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]statusCacheEntry
}

type statusCacheEntry struct {
	status    Status
	expiresAt time.Time
}

// newStatusCache returns nil when ttl is not positive; a nil cache never hits.
func newStatusCache(ttl time.Duration, maxEntries int, now func() time.Time) *statusCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if now == nil {
		now = time.Now
	}
	return &statusCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]statusCacheEntry),
	}
}

func (c *statusCache) Get(meetingID string) (Status, bool) {
	if c == nil {
		return Status{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[meetingID]
	c.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, meetingID)
		c.mu.Unlock()
		return Status{}, false
	}
	return cloneStatus(entry.status), true
}

func (c *statusCache) Store(meetingID string, status Status) {
	if c == nil {
		return
	}
	cloned := cloneStatus(status)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[meetingID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[meetingID] = statusCacheEntry{status: cloned, expiresAt: expiry}
}

func (c *statusCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked drops the entry closest to expiry.
func (c *statusCache) evictOneLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, victim)
}

func cloneStatus(status Status) Status {
	if len(status.Attendees) > 0 {
		attendees := make([]AttendeeSummary, len(status.Attendees))
		copy(attendees, status.Attendees)
		status.Attendees = attendees
	}
	return status
}
