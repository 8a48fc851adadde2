package handlers

import (
	"context"
	"errors"
	"sync"

	"guidedesk/internal/auth"
	"guidedesk/internal/models"
	"guidedesk/internal/screens"
	"guidedesk/internal/services"
	"guidedesk/internal/utils"
	"guidedesk/pkg/logger"
	"guidedesk/pkg/websocket"
)

// GuidesRoom holds every connected guide.
const GuidesRoom = "guides"

// LiveHandler serves the screens over websocket. Each connected client owns
// its own controllers and is their view.
type LiveHandler struct {
	hub         *websocket.Hub
	syncService services.SyncService
	logger      *logger.Logger

	mu      sync.Mutex
	clients map[*websocket.Client]*liveClient
}

// liveClient.controllers is only touched from the client's read goroutine.
type liveClient struct {
	client      *websocket.Client
	session     auth.Session
	controllers map[screens.Screen]screens.Controller
}

func NewLiveHandler(hub *websocket.Hub, syncService services.SyncService, log *logger.Logger) *LiveHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &LiveHandler{
		hub:         hub,
		syncService: syncService,
		logger:      log.WithField("component", "live"),
		clients:     make(map[*websocket.Client]*liveClient),
	}
}

// BroadcastSOS announces a newly raised alert to every connected guide.
func (h *LiveHandler) BroadcastSOS(alert *models.SOSAlert) {
	sent := h.hub.SendToRoom(GuidesRoom, websocket.Message{
		Type: utils.EventSOSRaised,
		Data: map[string]interface{}{"alert": alert},
	})
	h.logger.WithFields(map[string]interface{}{
		"sos_alert_id": alert.ID,
		"recipients":   sent,
	}).Debug("SOS broadcast")
}

func (h *LiveHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg websocket.Message) {
	lc := h.clientFor(client)

	switch msg.Type {
	case "subscribe":
		screen, ok := screenOf(msg)
		if !ok {
			sendError(client, msg.Type, "unknown screen")
			return
		}
		h.subscribe(ctx, lc, screen)

	case "unsubscribe":
		screen, ok := screenOf(msg)
		if !ok {
			sendError(client, msg.Type, "unknown screen")
			return
		}
		h.unsubscribe(lc, screen)

	case "refresh":
		screen, ok := screenOf(msg)
		if !ok {
			sendError(client, msg.Type, "unknown screen")
			return
		}
		if ctrl, ok := lc.controllers[screen]; ok {
			ctrl.Refresh()
		}

	case screens.ActionAcceptRequest, screens.ActionRejectRequest:
		h.dispatch(ctx, lc, screens.ScreenDashboard, msg)

	case screens.ActionRespondSOS, screens.ActionResolveSOS:
		h.dispatch(ctx, lc, screens.ScreenSOS, msg)

	default:
		sendError(client, msg.Type, "unknown message type")
	}
}

// ClientClosed releases every controller the client opened.
func (h *LiveHandler) ClientClosed(client *websocket.Client) {
	h.mu.Lock()
	lc, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if !ok {
		return
	}
	for _, ctrl := range lc.controllers {
		ctrl.Close()
	}
}

func (h *LiveHandler) clientFor(client *websocket.Client) *liveClient {
	h.mu.Lock()
	defer h.mu.Unlock()

	lc, ok := h.clients[client]
	if !ok {
		lc = &liveClient{
			client:      client,
			session:     auth.Session{UID: client.UserID},
			controllers: make(map[screens.Screen]screens.Controller),
		}
		h.clients[client] = lc
	}
	return lc
}

func (h *LiveHandler) subscribe(ctx context.Context, lc *liveClient, screen screens.Screen) {
	if ctrl, ok := lc.controllers[screen]; ok {
		ctrl.Refresh()
		return
	}

	view := &clientView{client: lc.client}
	log := h.logger.WithGuideID(lc.session.UID)

	var ctrl screens.Controller
	switch screen {
	case screens.ScreenDashboard:
		ctrl = screens.NewDashboardController(h.syncService, lc.session, view, log)
	case screens.ScreenSOS:
		ctrl = screens.NewSOSController(h.syncService, lc.session, view, log)
	}

	if err := ctrl.Open(ctx); err != nil {
		// Open reports subscribe failures to the view itself.
		if errors.Is(err, services.ErrMissingSession) {
			sendError(lc.client, "subscribe", "Please sign in again.")
		}
		return
	}
	lc.controllers[screen] = ctrl
}

func (h *LiveHandler) unsubscribe(lc *liveClient, screen screens.Screen) {
	if ctrl, ok := lc.controllers[screen]; ok {
		ctrl.Close()
		delete(lc.controllers, screen)
	}
}

func (h *LiveHandler) dispatch(ctx context.Context, lc *liveClient, screen screens.Screen, msg websocket.Message) {
	id, _ := msg.Data["id"].(string)

	ctrl, ok := lc.controllers[screen]
	if !ok {
		sendNotice(lc.client, screens.Notice{
			Kind:    screens.NoticeError,
			Screen:  screen,
			Action:  msg.Type,
			ID:      id,
			Message: "Open the " + string(screen) + " screen first.",
		})
		return
	}

	// Failures are already reported to the client as notices.
	if err := ctrl.Dispatch(ctx, msg.Type, id); err == nil {
		sendNotice(lc.client, screens.Notice{
			Kind:    screens.NoticeInfo,
			Screen:  screen,
			Action:  msg.Type,
			ID:      id,
			Message: doneMessages[msg.Type],
		})
	}
}

var doneMessages = map[string]string{
	screens.ActionAcceptRequest: "Request accepted",
	screens.ActionRejectRequest: "Request rejected",
	screens.ActionRespondSOS:    "You are responding to this emergency",
	screens.ActionResolveSOS:    "Emergency resolved",
}

func screenOf(msg websocket.Message) (screens.Screen, bool) {
	name, _ := msg.Data["screen"].(string)
	switch screens.Screen(name) {
	case screens.ScreenDashboard, screens.ScreenSOS:
		return screens.Screen(name), true
	}
	return "", false
}

func sendError(client *websocket.Client, msgType, message string) {
	client.Send(websocket.Message{
		Type: "error",
		Data: map[string]interface{}{
			"for":     msgType,
			"message": message,
		},
	})
}

func sendNotice(client *websocket.Client, notice screens.Notice) {
	client.Send(websocket.Message{
		Type: "notice",
		Data: map[string]interface{}{"notice": notice},
	})
}

// clientView renders screen output as websocket messages.
type clientView struct {
	client *websocket.Client
}

func (v *clientView) Render(state screens.State) {
	v.client.Send(websocket.Message{
		Type: "snapshot",
		Data: map[string]interface{}{
			"screen": state.Screen,
			"status": state.Status,
			"count":  state.Count,
			"items":  state.Items,
		},
	})
}

func (v *clientView) Notify(notice screens.Notice) {
	sendNotice(v.client, notice)
}
