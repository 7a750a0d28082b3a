package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/store"
	"github.com/kimhsiao/stash/internal/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin only accepts browser connections from a loopback origin.
// Non-browser clients send no Origin header.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =====================================================
// WebSocket Event Types
// =====================================================

const (
	EventDocumentChanged = "document.changed"

	EventAnalysisStarted   = "analysis.started"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"

	EventExportCompleted = "export.completed"
	EventExportFailed    = "export.failed"
)

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *WSHub
	mu            sync.RWMutex
	subscriptions map[string]bool
}

// wants reports whether the client receives an event type. A client with
// no subscriptions receives everything.
func (c *WSClient) wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type hubMessage struct {
	eventType string
	payload   []byte
}

// WSHub maintains active client connections and broadcasts messages.
// Clients whose send buffer is full are dropped.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan hubMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub and starts its loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan hubMessage, sendBuffer),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

// Stop ends the hub loop and disconnects every client.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{"client": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client disconnected", map[string]interface{}{"client": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				if !client.wants(msg.eventType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, id)
					logging.Warn("Dropping slow WebSocket client", map[string]interface{}{"client": id})
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends a message to all subscribed clients. It never blocks:
// when the hub is backed up or stopped the message is dropped.
func (h *WSHub) Broadcast(messageType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal WebSocket message", err, nil)
		return
	}

	select {
	case h.broadcast <- hubMessage{eventType: messageType, payload: payload}:
	case <-h.done:
	default:
		logging.Warn("WebSocket broadcast queue full, dropping message", map[string]interface{}{"type": messageType})
	}
}

// =====================================================
// Event Broadcasters
// =====================================================

// BroadcastChange forwards a committed store mutation.
func (h *WSHub) BroadcastChange(c store.Change) {
	h.Broadcast(EventDocumentChanged, map[string]interface{}{
		"op":       c.Op,
		"targetId": c.TargetID,
	})
}

// BroadcastAnalysisStarted notifies clients that a block analysis started.
func (h *WSHub) BroadcastAnalysisStarted(blockID string) {
	h.Broadcast(EventAnalysisStarted, map[string]interface{}{"blockId": blockID})
}

// BroadcastAnalysisCompleted notifies clients that analysis was applied.
func (h *WSHub) BroadcastAnalysisCompleted(blockID string, block models.Block) {
	h.Broadcast(EventAnalysisCompleted, map[string]interface{}{
		"blockId": blockID,
		"block":   block,
	})
}

// BroadcastAnalysisFailed notifies clients that an analysis was cancelled or
// discarded.
func (h *WSHub) BroadcastAnalysisFailed(blockID string, err error) {
	h.Broadcast(EventAnalysisFailed, map[string]interface{}{
		"blockId": blockID,
		"error":   err.Error(),
	})
}

// BroadcastExportCompleted notifies clients that a backup was written.
func (h *WSHub) BroadcastExportCompleted(fileName string, manifest models.ArchiveManifest) {
	h.Broadcast(EventExportCompleted, map[string]interface{}{
		"file":     fileName,
		"manifest": manifest,
	})
}

// BroadcastExportFailed notifies clients that a backup failed.
func (h *WSHub) BroadcastExportFailed(errMsg string) {
	h.Broadcast(EventExportFailed, map[string]interface{}{"error": errMsg})
}

// =====================================================
// Client pumps
// =====================================================

// readPump handles subscribe, unsubscribe and ping messages.
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg struct {
			Action string   `json:"action"`
			Events []string `json:"events"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("WebSocket read error", map[string]interface{}{"client": c.id, "error": err.Error()})
			}
			return
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})

		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()

		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// reply queues a direct response. The hub owns closing c.send, so the
// send happens under the hub lock to avoid writing to a closed channel.
func (c *WSClient) reply(v map[string]interface{}) {
	v["timestamp"] = time.Now().UnixMilli()
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// HandleWebSocket handles GET /ws
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            uuid.New(),
			conn:          conn,
			send:          make(chan []byte, sendBuffer),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
