package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"guidedesk/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// MessageHandler receives what clients send. HandleMessage runs on the
// client's read goroutine, so calls for one client never overlap.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg Message)
	ClientClosed(client *Client)
}

type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	EnableCompression bool
	AllowedOrigins    []string
	Rooms             []string
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = 1024
	}
	if o.WriteBufferSize == 0 {
		o.WriteBufferSize = 1024
	}
	if o.PongTimeout == 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval == 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	return o
}

func newUpgrader(o Options) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:    o.ReadBufferSize,
		WriteBufferSize:   o.WriteBufferSize,
		HandshakeTimeout:  o.HandshakeTimeout,
		EnableCompression: o.EnableCompression,
		CheckOrigin:       originChecker(o.AllowedOrigins),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

type Client struct {
	ID     string
	UserID string

	hub          *Hub
	conn         *websocket.Conn
	handler      MessageHandler
	logger       *logger.Logger
	options      Options
	initialRooms []string

	// rooms is guarded by hub.mutex.
	rooms map[string]bool

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, handler MessageHandler, opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	id := uuid.NewString()
	return &Client{
		ID:           id,
		UserID:       userID,
		hub:          hub,
		conn:         conn,
		handler:      handler,
		logger:       log.WithFields(map[string]interface{}{"client_id": id, "guide_id": userID}),
		options:      opts.withDefaults(),
		initialRooms: opts.Rooms,
		rooms:        make(map[string]bool),
		send:         make(chan []byte, sendBufferSize),
	}
}

// Send queues msg for writing. A client whose buffer is full is considered
// stuck and gets disconnected.
func (c *Client) Send(msg Message) bool {
	if msg.Timestamp == 0 {
		msg.Timestamp = getCurrentTimestamp()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.WithError(err).WithField("type", msg.Type).Error("Failed to encode websocket message")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("Send buffer full, dropping client")
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if c.handler != nil {
			c.handler.ClientClosed(c)
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket read error")
			}
			break
		}

		c.handleMessage(ctx, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.options.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.WithError(err).Warn("Error unmarshaling client message")
		c.Send(Message{
			Type: "error",
			Data: map[string]interface{}{"message": "malformed message"},
		})
		return
	}

	msg.UserID = c.UserID
	msg.Timestamp = getCurrentTimestamp()

	switch msg.Type {
	case "ping":
		c.Send(Message{Type: "pong"})

	default:
		if c.handler != nil {
			c.handler.HandleMessage(ctx, c, msg)
		}
	}
}
