package access

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/models"
)

func TestRoleCachePutGet(t *testing.T) {
	cache := NewRoleCache(time.Minute)

	subject := &models.Subject{TelegramID: 42, Role: string(RolePartner), IsActive: true}
	cache.Put(42, RolePartner, subject)

	snap, ok := cache.Get(42)
	require.True(t, ok)
	require.Equal(t, RolePartner, snap.Role)
	require.Equal(t, subject, snap.Subject)

	_, ok = cache.Get(43)
	require.False(t, ok)
}

func TestRoleCacheExpiryIsInclusive(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewRoleCache(300*time.Second, WithClock(func() time.Time { return current }))

	cache.Put(7, RoleTargetologist, &models.Subject{TelegramID: 7})

	current = current.Add(299 * time.Second)
	_, ok := cache.Get(7)
	require.True(t, ok)

	// Age exactly equal to the TTL counts as a miss.
	current = current.Add(time.Second)
	_, ok = cache.Get(7)
	require.False(t, ok)
}

func TestRoleCacheInvalidate(t *testing.T) {
	cache := NewRoleCache(time.Minute)
	cache.Put(1, RoleAdmin, &models.Subject{TelegramID: 1})
	cache.Put(2, RolePartner, &models.Subject{TelegramID: 2})

	cache.Invalidate(1)
	_, ok := cache.Get(1)
	require.False(t, ok)
	_, ok = cache.Get(2)
	require.True(t, ok)

	cache.InvalidateAll()
	require.Zero(t, cache.Len())
}

func TestRoleCacheConcurrentAccess(t *testing.T) {
	cache := NewRoleCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Put(id, RolePartner, &models.Subject{TelegramID: id})
				cache.Get(id)
				cache.Invalidate(id)
			}
		}(int64(i % 4))
	}
	wg.Wait()
}
