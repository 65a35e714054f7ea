package access

import (
	"sync"
	"time"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/metrics"
)

// DefaultRoleCacheTTL bounds how long a resolved role may be served without
// consulting the subject store again.
const DefaultRoleCacheTTL = 5 * time.Minute

// Snapshot is a cached view of a subject at resolution time.
type Snapshot struct {
	Role      Role
	Subject   *models.Subject
	FetchedAt time.Time
}

// RoleCache is a process-local TTL cache of resolved subjects. Every
// role-mutating operation must call Invalidate so stale roles never outlive
// the mutation; across multiple instances staleness is bounded by the TTL.
type RoleCache struct {
	mu      sync.RWMutex
	entries map[int64]Snapshot
	ttl     time.Duration
	now     func() time.Time
}

// RoleCacheOption customises the RoleCache.
type RoleCacheOption func(*RoleCache)

// WithClock overrides the cache clock, primarily for testing expiry.
func WithClock(now func() time.Time) RoleCacheOption {
	return func(c *RoleCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRoleCache constructs a RoleCache with the provided TTL. A non-positive
// TTL falls back to DefaultRoleCacheTTL.
func NewRoleCache(ttl time.Duration, opts ...RoleCacheOption) *RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}

	cache := &RoleCache{
		entries: make(map[int64]Snapshot),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get returns the cached snapshot for the subject. Entries whose age reaches
// the TTL are treated as absent.
func (c *RoleCache) Get(telegramID int64) (Snapshot, bool) {
	c.mu.RLock()
	snap, ok := c.entries[telegramID]
	c.mu.RUnlock()

	if !ok {
		metrics.RoleCacheLookups.WithLabelValues("miss").Inc()
		return Snapshot{}, false
	}

	if c.now().Sub(snap.FetchedAt) >= c.ttl {
		metrics.RoleCacheLookups.WithLabelValues("expired").Inc()
		return Snapshot{}, false
	}

	metrics.RoleCacheLookups.WithLabelValues("hit").Inc()
	return snap, true
}

// Put stores a snapshot for the subject, stamping it with the cache clock.
func (c *RoleCache) Put(telegramID int64, role Role, subject *models.Subject) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[telegramID] = Snapshot{
		Role:      role,
		Subject:   subject,
		FetchedAt: c.now(),
	}
}

// Invalidate drops the cached snapshot for one subject.
func (c *RoleCache) Invalidate(telegramID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, telegramID)
}

// InvalidateAll drops every cached snapshot.
func (c *RoleCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int64]Snapshot)
}

// Len reports the number of cached snapshots, expired or not.
func (c *RoleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
