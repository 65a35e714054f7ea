package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/database/testutil"
	"github.com/kbrejes/fb-stats-bot/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db            *gorm.DB
	clock         *fakeClock
	cache         *access.RoleCache
	subjects      *SubjectService
	grants        *GrantService
	requests      *RequestService
	notifications *NotificationService
	audit         *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cache := access.NewRoleCache(access.DefaultRoleCacheTTL, access.WithClock(clock.Now))

	audit, err := NewAuditService(db)
	require.NoError(t, err)

	subjects, err := NewSubjectService(db, cache, audit)
	require.NoError(t, err)

	grants, err := NewGrantService(db, audit, WithGrantClock(clock.Now))
	require.NoError(t, err)

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)

	requests, err := NewRequestService(db, grants, notifications, cache, audit, WithRequestClock(clock.Now))
	require.NoError(t, err)

	return &testEnv{
		db:            db,
		clock:         clock,
		cache:         cache,
		subjects:      subjects,
		grants:        grants,
		requests:      requests,
		notifications: notifications,
		audit:         audit,
	}
}

func (e *testEnv) seedSubject(t *testing.T, telegramID int64, role string, active bool) *models.Subject {
	t.Helper()

	subject := &models.Subject{
		TelegramID: telegramID,
		Username:   "user",
		Role:       role,
		IsActive:   active,
	}
	require.NoError(t, e.db.Create(subject).Error)
	return subject
}

func intPtr(v int) *int { return &v }
