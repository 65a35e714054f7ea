package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

type stubSubjects struct {
	subjects map[int64]*models.Subject
}

func (s *stubSubjects) GetByTelegramID(_ context.Context, id int64) (*models.Subject, error) {
	if subject, ok := s.subjects[id]; ok {
		return subject, nil
	}
	return nil, errors.New("subject not found")
}

type stubGrants struct {
	allowed map[string]bool
}

func (s *stubGrants) HasValidGrant(_ context.Context, _ int64, resourceType, resourceID string) (bool, error) {
	return s.allowed[resourceType+":"+resourceID], nil
}

func newTestResolver(t *testing.T, subjects map[int64]*models.Subject, allowed map[string]bool) *access.Resolver {
	t.Helper()

	resolver, err := access.NewResolver(
		&stubSubjects{subjects: subjects},
		&stubGrants{allowed: allowed},
		access.NewRoleCache(access.DefaultRoleCacheTTL),
	)
	require.NoError(t, err)
	return resolver
}

type recordingAuditor struct {
	actors       []int64
	requirements []string
}

func (r *recordingAuditor) RecordDenial(_ context.Context, actorID int64, requirement, _ string) {
	r.actors = append(r.actors, actorID)
	r.requirements = append(r.requirements, requirement)
}

func subjectFixture(id int64, role string, active bool) *models.Subject {
	return &models.Subject{TelegramID: id, Role: role, IsActive: active}
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func newRouter(subjectID int64, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	chain := []gin.HandlerFunc{func(c *gin.Context) {
		if subjectID != 0 {
			c.Set(CtxSubjectIDKey, subjectID)
		}
	}}
	chain = append(chain, handlers...)
	chain = append(chain, func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"ok": true})
	})

	router.GET("/r/:id", chain...)
	return router
}

func TestRequireRoleAllowsSufficientRole(t *testing.T) {
	resolver := newTestResolver(t, map[int64]*models.Subject{
		1: subjectFixture(1, "admin", true),
	}, nil)

	router := newRouter(1, RequireRole(resolver, nil, access.RoleAdmin))
	w := performRequest(router, http.MethodGet, "/r/x")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleDeniesUniformly(t *testing.T) {
	resolver := newTestResolver(t, map[int64]*models.Subject{
		1: subjectFixture(1, "partner", true),
		2: subjectFixture(2, "admin", false),
	}, nil)

	auditor := &recordingAuditor{}

	cases := map[string]int64{
		"insufficient role": 1,
		"inactive subject":  2,
		"unknown subject":   99,
		"no identity":       0,
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			router := newRouter(id, RequireRole(resolver, auditor, access.RoleAdmin))
			w := performRequest(router, http.MethodGet, "/r/x")
			require.Equal(t, http.StatusForbidden, w.Code)
			require.Contains(t, w.Body.String(), "ACCESS_DENIED")
		})
	}

	require.Len(t, auditor.actors, len(cases))
	for _, requirement := range auditor.requirements {
		require.Equal(t, "role:admin", requirement)
	}
}

func TestRequireResourceAccessPartnerNeedsGrant(t *testing.T) {
	resolver := newTestResolver(t, map[int64]*models.Subject{
		1: subjectFixture(1, "partner", true),
	}, map[string]bool{
		"campaign:cmp-1": true,
	})

	auditor := &recordingAuditor{}
	guard := RequireResourceAccess(resolver, auditor, PathResource(models.ResourceTypeCampaign, "id"))

	router := newRouter(1, guard)
	w := performRequest(router, http.MethodGet, "/r/cmp-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodGet, "/r/cmp-2")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "ACCESS_DENIED")
	require.Equal(t, []int64{1}, auditor.actors)
}

func TestRequireResourceAccessElevatedBypass(t *testing.T) {
	resolver := newTestResolver(t, map[int64]*models.Subject{
		1: subjectFixture(1, "targetologist", true),
	}, nil)

	guard := RequireResourceAccess(resolver, nil, PathResource(models.ResourceTypeCampaign, "id"))

	router := newRouter(1, guard)
	w := performRequest(router, http.MethodGet, "/r/anything")
	require.Equal(t, http.StatusOK, w.Code)
}
