package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/services"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns paginated audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	filters := services.AuditFilters{
		Action: strings.TrimSpace(c.Query("action")),
		Result: strings.TrimSpace(c.Query("result")),
	}

	if raw := strings.TrimSpace(c.Query("actor_id")); raw != "" {
		if actorID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.ActorID = &actorID
		}
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		if since, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Since = &since
		}
	}
	if raw := strings.TrimSpace(c.Query("until")); raw != "" {
		if until, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Until = &until
		}
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	logs, total, err := h.audit.List(c.Request.Context(), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}
