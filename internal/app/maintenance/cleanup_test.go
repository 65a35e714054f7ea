package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/database/testutil"
	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/internal/services"
)

func TestRunOnceSweepsGrantsAndPrunesAudit(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	grants, err := services.NewGrantService(db, audit,
		services.WithGrantClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Subject{TelegramID: 100, Role: "partner", IsActive: true}).Error)

	expired := now.Add(-time.Hour)
	require.NoError(t, db.Create(&models.AccessGrant{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-old",
		GrantedAt:    now.AddDate(0, 0, -30),
		ExpiresAt:    &expired,
		Active:       true,
	}).Error)

	stale := models.AuditLog{Action: "request.create", Result: "success"}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&stale).
		Update("created_at", time.Now().AddDate(0, 0, -120)).Error)
	require.NoError(t, db.Create(&models.AuditLog{Action: "request.approve", Result: "success"}).Error)

	cleaner := NewCleaner(grants, audit,
		WithNow(func() time.Time { return now }),
		WithAuditRetentionDays(90),
	)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var grant models.AccessGrant
	require.NoError(t, db.Take(&grant, "resource_id = ?", "cmp-old").Error)
	require.False(t, grant.Active)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestCleanerSkipsWhenNothingConfigured(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
	cleaner.Stop()
}
