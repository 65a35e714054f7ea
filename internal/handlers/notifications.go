package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/services"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// NotificationHandler exposes the notification outbox to subjects and to the
// bot gateway that delivers the messages.
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the authenticated subject's notifications. Pass unread=true to
// fetch only undelivered ones.
func (h *NotificationHandler) List(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	unreadOnly := false
	if v := parseBoolQuery(c, "unread"); v != nil {
		unreadOnly = *v
	}

	items, err := h.notifications.ListForSubject(c.Request.Context(), subjectID, unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// MarkRead acknowledges a delivered notification.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	subjectID, ok := currentSubjectID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.notifications.MarkRead(c.Request.Context(), subjectID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}
