package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbrejes/fb-stats-bot/internal/middleware"
	appErrors "github.com/kbrejes/fb-stats-bot/pkg/errors"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

// currentSubjectID extracts the authenticated subject from the request
// context, writing an error response when identity is absent.
func currentSubjectID(c *gin.Context) (int64, bool) {
	id, ok := middleware.SubjectID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return 0, false
	}
	return id, true
}

// pathSubjectID parses the :id path parameter as a Telegram id.
func pathSubjectID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, appErrors.NewBadRequest("invalid subject id"))
		return 0, false
	}
	return id, true
}
