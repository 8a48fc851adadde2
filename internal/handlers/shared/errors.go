package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"guidedesk/internal/services"
	"guidedesk/internal/utils"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error, resource, conflictMessage, failedMessage string) {
	switch {
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, conflictMessage)
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrMissingSession):
		utils.UnauthorizedResponse(c, "")
	case errors.Is(err, services.ErrMissingID):
		utils.BadRequestResponse(c, "Invalid "+resource+" ID")
	default:
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternal, failedMessage)
	}
}
