package websocket

import (
	"sync"
	"time"

	"guidedesk/pkg/logger"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
	observer   ConnectionObserver
	logger     *logger.Logger
}

// ConnectionObserver is told when clients join and leave the hub.
type ConnectionObserver interface {
	ClientConnected()
	ClientDisconnected()
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     log.WithField("component", "websocket_hub"),
	}
}

// SetObserver must be called before Run.
func (h *Hub) SetObserver(o ConnectionObserver) {
	h.observer = o
}

// Run processes registrations until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
				if h.observer != nil {
					h.observer.ClientDisconnected()
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			h.mutex.Unlock()
			return
		}
	}
}

// Close disconnects every client and stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.joinRoom(client, UserRoom(client.UserID))
	for _, room := range client.initialRooms {
		h.joinRoom(client, room)
	}
	h.mutex.Unlock()

	if h.observer != nil {
		h.observer.ClientConnected()
	}
	h.logger.WithFields(map[string]interface{}{
		"client_id": client.ID,
		"guide_id":  client.UserID,
	}).Info("Client registered")

	client.Send(Message{
		Type:      "welcome",
		UserID:    client.UserID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message":   "Connected successfully",
			"client_id": client.ID,
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()

		for roomID := range client.rooms {
			h.leaveRoom(client, roomID)
		}
		if h.observer != nil {
			h.observer.ClientDisconnected()
		}

		h.logger.WithFields(map[string]interface{}{
			"client_id": client.ID,
			"guide_id":  client.UserID,
		}).Info("Client unregistered")
	}
}

// SendToRoom queues message for every member of roomID and returns how many
// clients accepted it.
func (h *Hub) SendToRoom(roomID string, message Message) int {
	if message.Timestamp == 0 {
		message.Timestamp = getCurrentTimestamp()
	}
	message.RoomID = roomID

	h.mutex.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		members = append(members, client)
	}
	h.mutex.RUnlock()

	sent := 0
	for _, client := range members {
		if client.Send(message) {
			sent++
		}
	}
	return sent
}

func (h *Hub) SendToUser(userID string, message Message) int {
	return h.SendToRoom(UserRoom(userID), message)
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		h.joinRoom(client, roomID)
	}
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.leaveRoom(client, roomID)
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) leaveRoom(client *Client, roomID string) {
	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

func UserRoom(userID string) string {
	return "user_" + userID
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
