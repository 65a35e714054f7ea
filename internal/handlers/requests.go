package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/services"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// RequestHandler exposes the access request workflow over HTTP.
type RequestHandler struct {
	requests *services.RequestService
}

// NewRequestHandler constructs a request handler.
func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create submits an access request on behalf of the authenticated subject.
func (h *RequestHandler) Create(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	var payload struct {
		ResourceType string `json:"resource_type" validate:"required,oneof=campaign account all_campaigns system"`
		ResourceID   string `json:"resource_id" validate:"required,max=128"`
		Message      string `json:"message" validate:"max=1024"`
		DurationDays int    `json:"duration_days" validate:"min=0,max=365"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	request, err := h.requests.Create(c.Request.Context(), services.CreateRequestInput{
		SubjectID:    subjectID,
		ResourceType: payload.ResourceType,
		ResourceID:   payload.ResourceID,
		Message:      payload.Message,
		DurationDays: payload.DurationDays,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, request)
}

// ListMine returns the authenticated subject's pending requests. Pass
// ?include_resolved=true to include processed ones.
func (h *RequestHandler) ListMine(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	includeResolved := false
	if v := parseBoolQuery(c, "include_resolved"); v != nil {
		includeResolved = *v
	}

	requests, err := h.requests.GetForSubject(c.Request.Context(), subjectID, includeResolved)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, requests)
}

// Pending returns the admin queue of unresolved requests.
func (h *RequestHandler) Pending(c *gin.Context) {
	requests, err := h.requests.GetPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, requests)
}

// Resolved returns processed requests for review. Supports ?status= and
// ?limit= filters.
func (h *RequestHandler) Resolved(c *gin.Context) {
	requests, err := h.requests.GetResolved(c.Request.Context(), services.ResolvedFilters{
		Status: c.Query("status"),
		Limit:  parseIntQuery(c, "limit", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, requests)
}

// Approve resolves a pending request positively.
func (h *RequestHandler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

// Reject resolves a pending request negatively.
func (h *RequestHandler) Reject(c *gin.Context) {
	h.resolve(c, false)
}

func (h *RequestHandler) resolve(c *gin.Context, approve bool) {
	adminID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	requestID := strings.TrimSpace(c.Param("id"))

	var payload struct {
		DurationDays *int   `json:"duration_days" validate:"omitempty,min=1,max=365"`
		Notes        string `json:"notes" validate:"max=1024"`
	}
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &payload) {
		return
	}

	input := services.ResolveRequestInput{
		RequestID:            requestID,
		AdminID:              adminID,
		OverrideDurationDays: payload.DurationDays,
		Notes:                payload.Notes,
	}

	var err error
	var request any
	if approve {
		request, err = h.requests.Approve(c.Request.Context(), input)
	} else {
		request, err = h.requests.Reject(c.Request.Context(), input)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}
