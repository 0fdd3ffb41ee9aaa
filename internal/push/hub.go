package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	sendBuffer      = 64
	broadcastBuffer = 256
)

// Message is the envelope of every websocket frame in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	// User is the verified user id of the sending client; never trusted from the wire.
	User string `json:"user,omitempty"`
}

func newMessage(typ string, data any) (Message, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Data: b}, nil
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	user string
}

// Hub fans messages out to every connected client.
type Hub struct {
	log        *slog.Logger
	handle     func(c *Client, m Message)
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub returns a hub; handle receives every non-ping message a client sends.
func NewHub(log *slog.Logger, handle func(c *Client, m Message)) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		handle:     handle,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("client connected", "user", c.user, "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug("client disconnected", "user", c.user, "clients", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("client send buffer full, dropping client", "user", c.user)
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Publish queues m for every client. It never blocks the caller (cache watchers run on the
// store's delivery goroutine); when the queue is full the message is dropped.
func (h *Hub) Publish(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error("marshal message", "type", m.Type, "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn("broadcast queue full, dropping message", "type", m.Type)
	}
}

func (h *Hub) attach(conn *websocket.Conn, user string, initial []Message) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer+len(initial)), user: user}
	for _, m := range initial {
		if b, err := json.Marshal(m); err == nil {
			c.send <- b
		}
	}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
		return c
	}
	go c.writePump()
	go c.readPump()
	return c
}

// Send queues m for this client only.
func (c *Client) Send(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	defer func() {
		// The hub may have closed the channel concurrently.
		_ = recover()
	}()
	select {
	case c.send <- b:
	default:
	}
}

func (c *Client) User() string { return c.user }

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "user", c.user, "err", err)
			}
			return
		}
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			c.hub.log.Debug("invalid websocket message", "user", c.user, "err", err)
			continue
		}
		m.User = c.user
		if m.Type == "ping" {
			if pong, err := newMessage("pong", map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)}); err == nil {
				c.Send(pong)
			}
			continue
		}
		if c.hub.handle != nil {
			c.hub.handle(c, m)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per message; clients parse each frame as a single JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
