package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// AccessHandler exposes access resolution to the bot gateway so it can decide
// whether to run a command before doing any expensive work.
type AccessHandler struct {
	resolver *access.Resolver
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(resolver *access.Resolver) *AccessHandler {
	return &AccessHandler{resolver: resolver}
}

// Check answers whether the authenticated subject may act on a resource.
// The verdict is a plain boolean; reasons are never disclosed.
func (h *AccessHandler) Check(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		ResourceType string `json:"resource_type" validate:"required,oneof=campaign account all_campaigns system"`
		ResourceID   string `json:"resource_id" validate:"required,max=128"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	allowed := h.resolver.CheckAccess(c.Request.Context(), subjectID, payload.ResourceType, payload.ResourceID)
	response.Success(c, http.StatusOK, gin.H{"allowed": allowed})
}

// Role returns the authenticated subject's resolved role, or denied=true when
// the subject cannot act at all.
func (h *AccessHandler) Role(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	role, ok := h.resolver.ResolveRole(c.Request.Context(), subjectID)
	if !ok {
		response.Success(c, http.StatusOK, gin.H{"denied": true})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"role": role})
}
