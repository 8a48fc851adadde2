package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guidedesk/internal/middleware"
	"guidedesk/internal/utils"
	"guidedesk/pkg/logger"
	"guidedesk/pkg/push"
)

type DeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

// DeviceHandler enrols a guide's device in the SOS push topic.
type DeviceHandler struct {
	provider push.PushProvider
	topic    string
	logger   *logger.Logger
}

func NewDeviceHandler(provider push.PushProvider, topic string, log *logger.Logger) *DeviceHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &DeviceHandler{
		provider: provider,
		topic:    topic,
		logger:   log.WithField("component", "devices"),
	}
}

func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	h.changeSubscription(c, true)
}

func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	h.changeSubscription(c, false)
}

func (h *DeviceHandler) changeSubscription(c *gin.Context, subscribe bool) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var request DeviceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	var err error
	if subscribe {
		err = h.provider.SubscribeToTopic(c.Request.Context(), []string{request.Token}, h.topic)
	} else {
		err = h.provider.UnsubscribeFromTopic(c.Request.Context(), []string{request.Token}, h.topic)
	}

	entry := h.logger.WithFields(map[string]interface{}{
		"guide_id":  session.UID,
		"topic":     h.topic,
		"subscribe": subscribe,
	})
	if err != nil {
		entry.WithError(err).Error("Failed to change push topic subscription")
		utils.ErrorResponse(c, http.StatusBadGateway, "PUSH_SUBSCRIPTION_FAILED", "Failed to update push subscription")
		return
	}
	entry.Info("Push topic subscription changed")

	if subscribe {
		utils.SuccessResponse(c, "Device registered for SOS alerts", gin.H{"topic": h.topic})
		return
	}
	utils.SuccessResponse(c, "Device unregistered from SOS alerts", gin.H{"topic": h.topic})
}
