package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/services"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// SubjectHandler exposes subject administration and the self-service profile.
type SubjectHandler struct {
	subjects *services.SubjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(subjects *services.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// Me returns the authenticated subject's own record.
func (h *SubjectHandler) Me(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	subject, err := h.subjects.GetByTelegramID(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, subject)
}

// List returns subjects matching the query filters.
func (h *SubjectHandler) List(c *gin.Context) {
	opts := services.ListSubjectsOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Filters: services.SubjectFilters{
			Role:     c.Query("role"),
			IsActive: parseBoolQuery(c, "active"),
			Query:    c.Query("q"),
		},
	}

	subjects, total, err := h.subjects.List(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	perPage := opts.PageSize
	if perPage <= 0 {
		perPage = 50
	}
	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithMeta(c, http.StatusOK, subjects, &response.Meta{
		Page:       opts.Page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// Get returns a single subject by Telegram id.
func (h *SubjectHandler) Get(c *gin.Context) {
	subjectID, ok := pathSubjectID(c)
	if !ok {
		return
	}

	subject, err := h.subjects.GetByTelegramID(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, subject)
}

// SetRole changes a subject's role.
func (h *SubjectHandler) SetRole(c *gin.Context) {
	adminID, ok := currentSubjectID(c)
	if !ok {
		return
	}
	subjectID, ok := pathSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		Role string `json:"role" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	subject, err := h.subjects.SetRole(c.Request.Context(), adminID, subjectID, payload.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, subject)
}

// SetActive toggles whether a subject may use the system at all.
func (h *SubjectHandler) SetActive(c *gin.Context) {
	adminID, ok := currentSubjectID(c)
	if !ok {
		return
	}
	subjectID, ok := pathSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		Active *bool `json:"active" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	if err := h.subjects.SetActive(c.Request.Context(), adminID, subjectID, *payload.Active); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"active": *payload.Active})
}
