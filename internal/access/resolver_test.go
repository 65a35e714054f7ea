package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/models"
)

type stubSubjects struct {
	byID map[int64]*models.Subject
}

func (s *stubSubjects) GetByTelegramID(_ context.Context, id int64) (*models.Subject, error) {
	subject, ok := s.byID[id]
	if !ok {
		return nil, errors.New("subject not found")
	}
	return subject, nil
}

type stubGrants struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubGrants) HasValidGrant(context.Context, int64, string, string) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func newTestResolver(t *testing.T, subjects *stubSubjects, grants *stubGrants, opts ...RoleCacheOption) (*Resolver, *RoleCache) {
	t.Helper()

	cache := NewRoleCache(300*time.Second, opts...)
	resolver, err := NewResolver(subjects, grants, cache)
	require.NoError(t, err)
	return resolver, cache
}

func TestCheckAccessElevatedRolesBypassGrants(t *testing.T) {
	subjects := &stubSubjects{byID: map[int64]*models.Subject{
		1: {TelegramID: 1, Role: string(RoleAdmin), IsActive: true},
		2: {TelegramID: 2, Role: string(RoleTargetologist), IsActive: true},
	}}
	grants := &stubGrants{allowed: false}
	resolver, _ := newTestResolver(t, subjects, grants)

	require.True(t, resolver.CheckAccess(context.Background(), 1, models.ResourceTypeCampaign, "act_1"))
	require.True(t, resolver.CheckAccess(context.Background(), 2, models.ResourceTypeAccount, "acc_9"))
	// Grant store must never have been consulted.
	require.Zero(t, grants.calls)
}

func TestCheckAccessPartnerDelegatesToGrants(t *testing.T) {
	subjects := &stubSubjects{byID: map[int64]*models.Subject{
		5: {TelegramID: 5, Role: string(RolePartner), IsActive: true},
	}}
	grants := &stubGrants{allowed: true}
	resolver, _ := newTestResolver(t, subjects, grants)

	require.True(t, resolver.CheckAccess(context.Background(), 5, models.ResourceTypeCampaign, "act_1"))
	require.Equal(t, 1, grants.calls)

	grants.allowed = false
	// Cached snapshot, fresh grant decision.
	require.False(t, resolver.CheckAccess(context.Background(), 5, models.ResourceTypeCampaign, "act_1"))
	require.Equal(t, 2, grants.calls)
}

func TestCheckAccessDeniesMissingInactiveOrCorrupt(t *testing.T) {
	subjects := &stubSubjects{byID: map[int64]*models.Subject{
		10: {TelegramID: 10, Role: string(RolePartner), IsActive: false},
		11: {TelegramID: 11, Role: "superuser", IsActive: true},
	}}
	grants := &stubGrants{allowed: true}
	resolver, _ := newTestResolver(t, subjects, grants)

	ctx := context.Background()
	require.False(t, resolver.CheckAccess(ctx, 99, models.ResourceTypeCampaign, "act_1"), "unknown subject")
	require.False(t, resolver.CheckAccess(ctx, 10, models.ResourceTypeCampaign, "act_1"), "inactive subject")
	require.False(t, resolver.CheckAccess(ctx, 11, models.ResourceTypeCampaign, "act_1"), "corrupt role")
}

func TestCheckAccessGrantErrorDenies(t *testing.T) {
	subjects := &stubSubjects{byID: map[int64]*models.Subject{
		5: {TelegramID: 5, Role: string(RolePartner), IsActive: true},
	}}
	grants := &stubGrants{err: errors.New("store down")}
	resolver, _ := newTestResolver(t, subjects, grants)

	require.False(t, resolver.CheckAccess(context.Background(), 5, models.ResourceTypeCampaign, "act_1"))
}

func TestResolveRoleServesStaleUntilInvalidated(t *testing.T) {
	subject := &models.Subject{TelegramID: 20, Role: string(RolePartner), IsActive: true}
	subjects := &stubSubjects{byID: map[int64]*models.Subject{20: subject}}

	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resolver, cache := newTestResolver(t, subjects, &stubGrants{}, WithClock(func() time.Time { return current }))

	role, ok := resolver.ResolveRole(context.Background(), 20)
	require.True(t, ok)
	require.Equal(t, RolePartner, role)

	// Role changes in the store without invalidation: the cache keeps
	// serving the old role within the TTL.
	subjects.byID[20] = &models.Subject{TelegramID: 20, Role: string(RoleAdmin), IsActive: true}
	current = current.Add(30 * time.Second)

	role, ok = resolver.ResolveRole(context.Background(), 20)
	require.True(t, ok)
	require.Equal(t, RolePartner, role)

	// Invalidation makes the new role visible immediately.
	cache.Invalidate(20)
	role, ok = resolver.ResolveRole(context.Background(), 20)
	require.True(t, ok)
	require.Equal(t, RoleAdmin, role)
}

func TestResolveRoleExpiresWithTTL(t *testing.T) {
	subjects := &stubSubjects{byID: map[int64]*models.Subject{
		21: {TelegramID: 21, Role: string(RolePartner), IsActive: true},
	}}

	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resolver, _ := newTestResolver(t, subjects, &stubGrants{}, WithClock(func() time.Time { return current }))

	_, ok := resolver.ResolveRole(context.Background(), 21)
	require.True(t, ok)

	subjects.byID[21] = &models.Subject{TelegramID: 21, Role: string(RoleTargetologist), IsActive: true}
	current = current.Add(301 * time.Second)

	role, ok := resolver.ResolveRole(context.Background(), 21)
	require.True(t, ok)
	require.Equal(t, RoleTargetologist, role)
}
