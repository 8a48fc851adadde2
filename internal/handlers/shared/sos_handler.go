package handlers

import (
	"github.com/gin-gonic/gin"

	"guidedesk/internal/middleware"
	"guidedesk/internal/services"
	"guidedesk/internal/utils"
)

type SOSHandler struct {
	syncService services.SyncService
}

func NewSOSHandler(syncService services.SyncService) *SOSHandler {
	return &SOSHandler{
		syncService: syncService,
	}
}

func (h *SOSHandler) RespondToSOS(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	alertID := c.Param("id")
	if err := h.syncService.RespondToSOS(c.Request.Context(), alertID, session); err != nil {
		respondError(c, err, "SOS alert", "Another guide is already responding", "Failed to respond to SOS")
		return
	}

	utils.SuccessResponse(c, "Responding to SOS", gin.H{"id": alertID, "status": "responding"})
}

func (h *SOSHandler) ResolveSOS(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	alertID := c.Param("id")
	if err := h.syncService.ResolveSOS(c.Request.Context(), alertID, session); err != nil {
		respondError(c, err, "SOS alert", "SOS alert can no longer be resolved by this guide", "Failed to resolve SOS")
		return
	}

	utils.SuccessResponse(c, "SOS resolved successfully", gin.H{"id": alertID, "status": "resolved"})
}
