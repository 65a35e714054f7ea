package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/handlers"
	"github.com/kbrejes/fb-stats-bot/internal/middleware"
	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/internal/services"
)

// Dependencies carries the collaborators the router wires together.
type Dependencies struct {
	DB            *gorm.DB
	Verifier      *middleware.GatewayVerifier
	Resolver      *access.Resolver
	Subjects      *services.SubjectService
	Grants        *services.GrantService
	Requests      *services.RequestService
	Notifications *services.NotificationService
	Audit         *services.AuditService
}

func (d Dependencies) validate() error {
	if d.DB == nil {
		return fmt.Errorf("database handle must be provided")
	}
	if d.Verifier == nil {
		return fmt.Errorf("gateway verifier must be provided")
	}
	if d.Resolver == nil {
		return fmt.Errorf("access resolver must be provided")
	}
	if d.Subjects == nil || d.Grants == nil || d.Requests == nil || d.Notifications == nil || d.Audit == nil {
		return fmt.Errorf("all services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
//
// Route groups and their gates:
//   - /api          identity only; inactive subjects can still request access
//   - /api/admin    admin role required
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/health", healthHandler.Check)

	subjectHandler := handlers.NewSubjectHandler(deps.Subjects)
	grantHandler := handlers.NewGrantHandler(deps.Grants, deps.Notifications)
	requestHandler := handlers.NewRequestHandler(deps.Requests)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	accessHandler := handlers.NewAccessHandler(deps.Resolver)
	auditHandler := handlers.NewAuditHandler(deps.Audit)

	api := r.Group("/api")
	api.Use(middleware.Identity(deps.Verifier, deps.Subjects))

	// Self-service surface. Gated on identity only so a freshly registered,
	// still-inactive subject can ask for base access.
	api.GET("/me", subjectHandler.Me)
	api.GET("/grants", grantHandler.ListMine)
	api.GET("/requests", requestHandler.ListMine)
	api.POST("/requests", requestHandler.Create)
	api.GET("/notifications", notificationHandler.List)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)

	// Gateway decision points.
	api.POST("/access/check", accessHandler.Check)
	api.GET("/access/role", accessHandler.Role)

	// Resource reads the bot proxies for subjects. The guard is the only
	// difference from the admin listings below.
	api.GET("/campaigns/:rid/grants",
		middleware.RequireResourceAccess(deps.Resolver, deps.Audit, middleware.PathResource(models.ResourceTypeCampaign, "rid")),
		grantHandler.ListForResource)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(deps.Resolver, deps.Audit, access.RoleAdmin))
	{
		admin.GET("/subjects", subjectHandler.List)
		admin.GET("/subjects/:id", subjectHandler.Get)
		admin.PUT("/subjects/:id/role", subjectHandler.SetRole)
		admin.PUT("/subjects/:id/active", subjectHandler.SetActive)
		admin.GET("/subjects/:id/grants", grantHandler.ListForSubject)

		admin.POST("/grants", grantHandler.Create)
		admin.POST("/grants/revoke", grantHandler.Revoke)
		admin.GET("/resources/:type/:rid/grants", grantHandler.ListForResource)

		admin.GET("/requests/pending", requestHandler.Pending)
		admin.GET("/requests/resolved", requestHandler.Resolved)
		admin.POST("/requests/:id/approve", requestHandler.Approve)
		admin.POST("/requests/:id/reject", requestHandler.Reject)

		admin.GET("/audit", auditHandler.List)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
