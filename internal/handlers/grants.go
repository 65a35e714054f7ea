package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/internal/services"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// GrantHandler exposes grant administration over HTTP.
type GrantHandler struct {
	grants        *services.GrantService
	notifications *services.NotificationService
}

// NewGrantHandler constructs a grant handler.
func NewGrantHandler(grants *services.GrantService, notifications *services.NotificationService) *GrantHandler {
	return &GrantHandler{grants: grants, notifications: notifications}
}

// Create issues or refreshes a grant directly, outside the request workflow.
func (h *GrantHandler) Create(c *gin.Context) {
	adminID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		SubjectID    int64          `json:"subject_id" validate:"required"`
		ResourceType string         `json:"resource_type" validate:"required,oneof=campaign account all_campaigns system"`
		ResourceID   string         `json:"resource_id" validate:"required,max=128"`
		TTLDays      *int           `json:"ttl_days" validate:"omitempty,min=1,max=3650"`
		Params       map[string]any `json:"params"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	grant, err := h.grants.Grant(c.Request.Context(), services.GrantInput{
		SubjectID:    payload.SubjectID,
		ResourceType: payload.ResourceType,
		ResourceID:   payload.ResourceID,
		TTLDays:      payload.TTLDays,
		Params:       payload.Params,
		GrantedBy:    &adminID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, grant)
}

// Revoke deactivates a grant and notifies the affected subject.
func (h *GrantHandler) Revoke(c *gin.Context) {
	adminID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		SubjectID    int64  `json:"subject_id" validate:"required"`
		ResourceType string `json:"resource_type" validate:"required"`
		ResourceID   string `json:"resource_id" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	revoked, err := h.grants.Revoke(c.Request.Context(), payload.SubjectID, payload.ResourceType, payload.ResourceID, &adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !revoked {
		response.Error(c, services.ErrGrantNotFound)
		return
	}

	message := fmt.Sprintf("Your access to %s:%s was revoked.", payload.ResourceType, payload.ResourceID)
	_ = h.notifications.Notify(c.Request.Context(), payload.SubjectID, models.NotificationGrantRevoked, message)

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// ListMine returns the authenticated subject's valid grants.
func (h *GrantHandler) ListMine(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	grants, err := h.grants.ListForSubject(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, grants)
}

// ListForSubject returns a subject's valid grants for administrators.
func (h *GrantHandler) ListForSubject(c *gin.Context) {
	subjectID, ok := pathSubjectID(c)
	if !ok {
		return
	}

	grants, err := h.grants.ListForSubject(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, grants)
}

// ListForResource returns who currently holds access to a resource.
func (h *GrantHandler) ListForResource(c *gin.Context) {
	resourceType := c.Param("type")
	resourceID := c.Param("rid")

	grants, err := h.grants.ListForResource(c.Request.Context(), resourceType, resourceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, grants)
}
