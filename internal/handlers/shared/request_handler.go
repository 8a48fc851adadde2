package handlers

import (
	"github.com/gin-gonic/gin"

	"guidedesk/internal/middleware"
	"guidedesk/internal/services"
	"guidedesk/internal/utils"
)

type RequestHandler struct {
	syncService services.SyncService
}

func NewRequestHandler(syncService services.SyncService) *RequestHandler {
	return &RequestHandler{
		syncService: syncService,
	}
}

// AcceptRequest moves a pending tourist request to accepted for the caller.
func (h *RequestHandler) AcceptRequest(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	requestID := c.Param("id")
	if err := h.syncService.AcceptRequest(c.Request.Context(), requestID, session); err != nil {
		respondError(c, err, "Request", "Request was already handled by another guide", "Failed to accept request")
		return
	}

	utils.SuccessResponse(c, "Request accepted successfully", gin.H{"id": requestID, "status": "accepted"})
}

// RejectRequest moves a pending tourist request to rejected for the caller.
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	requestID := c.Param("id")
	if err := h.syncService.RejectRequest(c.Request.Context(), requestID, session); err != nil {
		respondError(c, err, "Request", "Request was already handled by another guide", "Failed to reject request")
		return
	}

	utils.SuccessResponse(c, "Request rejected successfully", gin.H{"id": requestID, "status": "rejected"})
}
