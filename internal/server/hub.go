package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"morph/internal/queue"
)

// WSMessage is a command sent by a client.
type WSMessage struct {
	Type string `json:"type"`
}

// WSResponse is every message the hub sends.
type WSResponse struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
)

// client is one websocket connection. Only its writer goroutine writes to
// conn; everything else queues on send.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams queue events to websocket clients and accepts start, pause,
// clear and get_state commands from them. A client whose queue fills up is
// disconnected rather than slowing the processor down.
type Hub struct {
	clients    map[*client]bool
	clientsMux sync.RWMutex
	upgrader   websocket.Upgrader
	processor  *queue.Processor
	logger     *slog.Logger
}

func NewHub(p *queue.Processor, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		processor: p,
		logger:    logger,
	}
}

// Attach broadcasts every processor event until the returned func is called.
func (h *Hub) Attach() func() {
	return h.processor.Subscribe(func(ev queue.Event) {
		switch ev.Kind {
		case queue.EventItemAdded, queue.EventItemUpdated:
			h.BroadcastMessage(ev.Kind.String(), ev.Item)
		case queue.EventCleared:
			h.BroadcastMessage(ev.Kind.String(), nil)
		case queue.EventRunState:
			h.BroadcastMessage(ev.Kind.String(), map[string]any{"running": ev.Running})
		}
	})
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	// Registering and queueing the state together keeps events from
	// overtaking it.
	h.clientsMux.Lock()
	initial, err := json.Marshal(h.state())
	if err != nil {
		h.clientsMux.Unlock()
		h.logger.Warn("Failed to encode websocket message", "error", err)
		return
	}
	h.clients[c] = true
	count := len(h.clients)
	c.send <- initial
	h.clientsMux.Unlock()

	go h.writePump(c)
	h.logger.Info("WebSocket client connected", "clients", count)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			h.removeClient(c)
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Debug("Ignoring malformed websocket message", "error", err)
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.removeClient(c)
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("WebSocket write failed", "error", err)
			h.removeClient(c)
			return
		}
	}
}

func (h *Hub) handleMessage(c *client, msg WSMessage) {
	switch msg.Type {
	case "start":
		h.processor.Start()
	case "pause":
		h.processor.Pause()
	case "clear":
		h.processor.Clear()
	case "get_state":
	default:
		h.sendTo(c, WSResponse{Type: msg.Type + "_response", Error: "unknown command: " + msg.Type})
		return
	}
	h.sendTo(c, h.state())
}

func (h *Hub) state() WSResponse {
	return WSResponse{
		Type: "state",
		Data: map[string]any{
			"items":     h.processor.Items(),
			"running":   h.processor.IsRunning(),
			"timestamp": time.Now().Unix(),
		},
	}
}

func (h *Hub) sendTo(c *client, resp WSResponse) {
	message, err := json.Marshal(resp)
	if err != nil {
		h.logger.Warn("Failed to encode websocket message", "error", err)
		return
	}

	h.clientsMux.RLock()
	slow := false
	if h.clients[c] {
		slow = !enqueue(c, message)
	}
	h.clientsMux.RUnlock()

	if slow {
		h.dropSlow(c)
	}
}

// enqueue must be called with clientsMux held so send is not closed under it.
func enqueue(c *client, message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) dropSlow(c *client) {
	h.logger.Warn("Dropping slow websocket client")
	h.removeClient(c)
}

// removeClient unregisters c and closes its queue, which stops its writer.
// Safe to call more than once.
func (h *Hub) removeClient(c *client) {
	h.clientsMux.Lock()
	if !h.clients[c] {
		h.clientsMux.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.clientsMux.Unlock()
	h.logger.Info("WebSocket client disconnected", "clients", count)
}

// BroadcastMessage queues a message for every client and never waits on a
// connection.
func (h *Hub) BroadcastMessage(messageType string, data any) {
	message, err := json.Marshal(WSResponse{Type: messageType, Data: data})
	if err != nil {
		h.logger.Warn("Failed to encode websocket message", "error", err)
		return
	}

	var slow []*client
	h.clientsMux.RLock()
	for c := range h.clients {
		if !enqueue(c, message) {
			slow = append(slow, c)
		}
	}
	h.clientsMux.RUnlock()

	for _, c := range slow {
		h.dropSlow(c)
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
