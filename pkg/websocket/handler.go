package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"guidedesk/pkg/logger"
)

// UserIDKey is the gin context key the auth middleware stores the caller under.
const UserIDKey = "user_id"

type Handler struct {
	hub      *Hub
	messages MessageHandler
	upgrader *websocket.Upgrader
	options  Options
	logger   *logger.Logger
	baseCtx  context.Context
}

func NewHandler(ctx context.Context, hub *Hub, messages MessageHandler, opts Options, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	opts = opts.withDefaults()
	return &Handler{
		hub:      hub,
		messages: messages,
		upgrader: newUpgrader(opts),
		options:  opts,
		logger:   log,
		baseCtx:  ctx,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString(UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID, h.messages, h.options, h.logger)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h.baseCtx)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
