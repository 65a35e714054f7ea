package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/models"
)

func TestCreateRequestDefaultsAndDedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSubject(t, 100, string(access.RolePartner), true)

	first, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
		Message:      "need stats",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, first.Status)
	require.Equal(t, DefaultGrantDurationDays, first.RequestedDuration)

	// Resubmission updates the pending row in place instead of stacking.
	second, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
		Message:      "still need stats",
		DurationDays: 14,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.AccessRequest{}).
		Where("subject_id = ?", int64(100)).Count(&count).Error)
	require.EqualValues(t, 1, count)

	stored, err := env.requests.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "still need stats", stored.Message)
	require.Equal(t, 14, stored.RequestedDuration)
}

func TestPendingRequestTupleUniqueInSchema(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 555, string(access.RolePartner), true)

	first, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    555,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "act_1",
	})
	require.NoError(t, err)

	// A second pending row for the same tuple is rejected by the partial
	// unique index, independent of the service-level re-check.
	dup := models.AccessRequest{
		SubjectID:         555,
		ResourceType:      models.ResourceTypeCampaign,
		ResourceID:        "act_1",
		RequestedDuration: DefaultGrantDurationDays,
		Status:            models.RequestStatusPending,
	}
	err = env.db.Create(&dup).Error
	require.Error(t, err)
	require.True(t, isUniqueConstraintError(err))

	var pending int64
	require.NoError(t, env.db.Model(&models.AccessRequest{}).
		Where("subject_id = ? AND resource_type = ? AND resource_id = ? AND status = ?",
			int64(555), models.ResourceTypeCampaign, "act_1", models.RequestStatusPending).
		Count(&pending).Error)
	require.EqualValues(t, 1, pending)

	// Resolved rows leave the index, so the tuple can be requested again.
	_, err = env.requests.Reject(ctx, ResolveRequestInput{
		RequestID: first.ID,
		AdminID:   admin.TelegramID,
	})
	require.NoError(t, err)

	_, err = env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    555,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "act_1",
	})
	require.NoError(t, err)
}

func TestCreateRequestRejectedForElevatedRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSubject(t, 10, string(access.RoleTargetologist), true)
	env.seedSubject(t, 11, string(access.RoleAdmin), true)

	for _, id := range []int64{10, 11} {
		_, err := env.requests.Create(ctx, CreateRequestInput{
			SubjectID:    id,
			ResourceType: models.ResourceTypeCampaign,
			ResourceID:   "cmp-1",
		})
		require.ErrorIs(t, err, ErrRequestNotNeeded)
	}
}

func TestApproveGrantsAccessAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
		DurationDays: 14,
	})
	require.NoError(t, err)

	resolved, err := env.requests.Approve(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, resolved.Status)

	stored, err := env.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, stored.Status)
	require.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.ProcessedBy)
	require.EqualValues(t, admin.TelegramID, *stored.ProcessedBy)

	ok, err := env.grants.HasValidGrant(ctx, 100, models.ResourceTypeCampaign, "cmp-1")
	require.NoError(t, err)
	require.True(t, ok)

	notifications, err := env.notifications.ListForSubject(ctx, 100, true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationRequestApproved, notifications[0].Kind)
}

func TestApproveOverridesDuration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
		DurationDays: 14,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{
		RequestID:            request.ID,
		AdminID:              admin.TelegramID,
		OverrideDurationDays: intPtr(90),
	})
	require.NoError(t, err)

	var grant models.AccessGrant
	require.NoError(t, env.db.Take(&grant,
		"subject_id = ? AND resource_type = ? AND resource_id = ?",
		int64(100), models.ResourceTypeCampaign, "cmp-1").Error)
	require.NotNil(t, grant.ExpiresAt)
	require.Equal(t, env.clock.Now().AddDate(0, 0, 90).Unix(), grant.ExpiresAt.Unix())
}

func TestApproveBaseAccessActivatesSubject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), false)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeSystem,
		ResourceID:   models.ResourceIDBaseAccess,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
	})
	require.NoError(t, err)

	var subject models.Subject
	require.NoError(t, env.db.Take(&subject, "telegram_id = ?", int64(100)).Error)
	require.True(t, subject.IsActive)

	// Base access carries its own long lifetime regardless of what was asked.
	var grant models.AccessGrant
	require.NoError(t, env.db.Take(&grant,
		"subject_id = ? AND resource_type = ? AND resource_id = ?",
		int64(100), models.ResourceTypeSystem, models.ResourceIDBaseAccess).Error)
	require.NotNil(t, grant.ExpiresAt)
	require.Equal(t, env.clock.Now().AddDate(0, 0, BaseAccessDurationDays).Unix(), grant.ExpiresAt.Unix())
}

func TestRejectRelaysAdminNotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
	})
	require.NoError(t, err)

	_, err = env.requests.Reject(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
		Notes:     "wrong campaign, ask your lead",
	})
	require.NoError(t, err)

	ok, err := env.grants.HasValidGrant(ctx, 100, models.ResourceTypeCampaign, "cmp-1")
	require.NoError(t, err)
	require.False(t, ok)

	notifications, err := env.notifications.ListForSubject(ctx, 100, false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationRequestRejected, notifications[0].Kind)
	require.Contains(t, notifications[0].Message, "wrong campaign, ask your lead")
}

func TestResolveIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
	})
	require.NoError(t, err)

	_, err = env.requests.Reject(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
	})
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)

	_, err = env.requests.Reject(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   admin.TelegramID,
	})
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)
}

func TestResolveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSubject(t, 20, string(access.RoleTargetologist), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)

	request, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    100,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   20,
	})
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = env.requests.Reject(ctx, ResolveRequestInput{
		RequestID: request.ID,
		AdminID:   999,
	})
	require.ErrorIs(t, err, ErrNotAuthorized)

	stored, err := env.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.True(t, stored.IsPending())
}

func TestRequestQueues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)
	env.seedSubject(t, 100, string(access.RolePartner), true)
	env.seedSubject(t, 200, string(access.RolePartner), true)

	r1, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID: 100, ResourceType: models.ResourceTypeCampaign, ResourceID: "cmp-1",
	})
	require.NoError(t, err)
	_, err = env.requests.Create(ctx, CreateRequestInput{
		SubjectID: 200, ResourceType: models.ResourceTypeCampaign, ResourceID: "cmp-2",
	})
	require.NoError(t, err)

	pending, err := env.requests.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{RequestID: r1.ID, AdminID: admin.TelegramID})
	require.NoError(t, err)

	pending, err = env.requests.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := env.requests.GetResolved(ctx, ResolvedFilters{})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, r1.ID, resolved[0].ID)

	rejectedOnly, err := env.requests.GetResolved(ctx, ResolvedFilters{Status: models.RequestStatusRejected})
	require.NoError(t, err)
	require.Empty(t, rejectedOnly)

	// Subject 100's only request was approved; the default view hides it.
	mine, err := env.requests.GetForSubject(ctx, 100, false)
	require.NoError(t, err)
	require.Empty(t, mine)

	mine, err = env.requests.GetForSubject(ctx, 100, true)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, models.RequestStatusApproved, mine[0].Status)

	stillPending, err := env.requests.GetForSubject(ctx, 200, false)
	require.NoError(t, err)
	require.Len(t, stillPending, 1)
}

func TestUnknownRequestAndMissingSubject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedSubject(t, 1, string(access.RoleAdmin), true)

	_, err := env.requests.Create(ctx, CreateRequestInput{
		SubjectID:    999,
		ResourceType: models.ResourceTypeCampaign,
		ResourceID:   "cmp-1",
	})
	require.ErrorIs(t, err, ErrSubjectNotFound)

	_, err = env.requests.Approve(ctx, ResolveRequestInput{
		RequestID: "11111111-1111-1111-1111-111111111111",
		AdminID:   admin.TelegramID,
	})
	require.ErrorIs(t, err, ErrRequestNotFound)
}
