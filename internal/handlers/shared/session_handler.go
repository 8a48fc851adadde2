package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guidedesk/internal/middleware"
	"guidedesk/internal/services"
	"guidedesk/internal/utils"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Me returns the signed-in guide.
func (h *SessionHandler) Me(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	utils.SuccessResponse(c, "Session retrieved successfully", session)
}

// StatusReporter is anything that can report a live subscription status.
type StatusReporter interface {
	Status() services.SubscriptionStatus
}

type HealthHandler struct {
	backend string
	watcher StatusReporter
	started time.Time
}

func NewHealthHandler(backend string, watcher StatusReporter) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		watcher: watcher,
		started: time.Now(),
	}
}

// Health is healthy unless the SOS watcher's subscription has failed.
func (h *HealthHandler) Health(c *gin.Context) {
	data := gin.H{
		"store":  h.backend,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}

	if h.watcher != nil {
		status := h.watcher.Status()
		data["sos_watcher"] = status
		if status == services.SubscriptionError || status == services.SubscriptionClosed {
			c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
				Status:    utils.StatusError,
				Message:   "SOS watcher is not live",
				Data:      data,
				Timestamp: time.Now(),
			})
			return
		}
	}

	utils.SuccessResponse(c, "OK", data)
}
