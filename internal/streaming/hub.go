package streaming

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ---------------------------------------------------------------------------
// Protocol constants
// ---------------------------------------------------------------------------

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
	maxMessageSize   = 16 * 1024
	sendBufferSize   = 256
	maxSubscriptions = 10
)

// ---------------------------------------------------------------------------
// Client-to-server message types
// ---------------------------------------------------------------------------

const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"
)

// ---------------------------------------------------------------------------
// Server-to-client message types
// ---------------------------------------------------------------------------

const (
	MsgTypeMatchResult = "match_result"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// allMatchesTopic is the topic a client subscribes to for every match
// result; matchTopic(id) narrows that to a single document.
const allMatchesTopic = "matches"

func matchTopic(documentID string) string {
	return fmt.Sprintf("matches.%s", documentID)
}

// ---------------------------------------------------------------------------
// Wire messages
// ---------------------------------------------------------------------------

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SubscribePayload is sent by the client to subscribe or unsubscribe.
// An empty DocumentID subscribes to every match result.
type SubscribePayload struct {
	DocumentID string `json:"document_id,omitempty"`
}

// ErrorPayload is sent by the server when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p SubscribePayload) topic() string {
	if p.DocumentID == "" {
		return allMatchesTopic
	}
	return matchTopic(p.DocumentID)
}

// ---------------------------------------------------------------------------
// Hub
// ---------------------------------------------------------------------------

// Hub maintains the set of active WebSocket clients and broadcasts match
// results to clients subscribed to the relevant topic.
type Hub struct {
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan topicMessage

	mu     sync.RWMutex
	logger *slog.Logger
}

type topicMessage struct {
	topic   string
	message ServerMessage
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan topicMessage, 256),
		logger:     slog.Default().With("component", "ws-hub"),
	}
}

// Run starts the hub event loop. It must be called in a dedicated goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case tm := <-h.broadcast:
			h.broadcastToTopic(tm)
		}
	}
}

// BroadcastMatchResult fans a match result out to clients subscribed to
// that document specifically and to clients subscribed to every result.
func (h *Hub) BroadcastMatchResult(result MatchResult) {
	msg := ServerMessage{Type: MsgTypeMatchResult, Payload: result}
	h.broadcast <- topicMessage{topic: allMatchesTopic, message: msg}
	h.broadcast <- topicMessage{topic: matchTopic(result.DocumentID), message: msg}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Info("client registered", "total_clients", len(h.clients))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.subsMu.Lock()
	subs := c.subscriptions
	c.subscriptions = nil
	c.subsMu.Unlock()

	h.mu.Lock()
	for topic := range subs {
		if topicClients, ok := h.topics[topic]; ok {
			delete(topicClients, c)
			if len(topicClients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	h.logger.Info("client unregistered", "total_clients", n)
}

func (h *Hub) broadcastToTopic(tm topicMessage) {
	h.mu.RLock()
	subscribers, ok := h.topics[tm.topic]
	if !ok || len(subscribers) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(tm.message)
	if err != nil {
		h.logger.Error("marshal broadcast message", "error", err, "topic", tm.topic)
		return
	}

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			select {
			case <-c.send:
				h.logger.Warn("dropped oldest message due to backpressure", "topic", tm.topic)
			default:
			}
			select {
			case c.send <- data:
			default:
				h.logger.Warn("message dropped, client too slow", "topic", tm.topic)
			}
		}
	}
}

// subscribe adds a client to a topic.
//
// Lock ordering: hub mutex is always acquired before client subsMu to
// prevent deadlocks with removeClient.
func (h *Hub) subscribe(c *Client, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if len(c.subscriptions) >= maxSubscriptions {
		return fmt.Errorf("maximum subscriptions (%d) reached", maxSubscriptions)
	}
	if c.subscriptions == nil {
		c.subscriptions = make(map[string]struct{})
	}
	c.subscriptions[topic] = struct{}{}

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subsMu.Lock()
	delete(c.subscriptions, topic)
	c.subsMu.Unlock()

	if topicClients, ok := h.topics[topic]; ok {
		delete(topicClients, c)
		if len(topicClients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client represents a single WebSocket connection watching match results.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscriptions map[string]struct{}
	subsMu        sync.Mutex

	logger *slog.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a WebSocket connection, registers the
// resulting client with hub, and runs its read/write pumps until the
// connection closes.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]struct{}),
		logger:        slog.Default().With("component", "ws-client"),
	}
	hub.register <- c

	go c.writePump()
	c.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}
		c.handleMessage(raw)
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
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("INVALID_MESSAGE", "failed to parse message")
		return
	}

	switch msg.Type {
	case MsgTypePing:
		c.sendJSON(ServerMessage{Type: MsgTypePong})

	case MsgTypeSubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "malformed subscribe payload")
			return
		}
		if err := c.hub.subscribe(c, p.topic()); err != nil {
			c.sendError("SUBSCRIBE_FAILED", err.Error())
		}

	case MsgTypeUnsubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "malformed unsubscribe payload")
			return
		}
		c.hub.unsubscribe(c, p.topic())

	default:
		c.sendError("UNKNOWN_TYPE", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) sendJSON(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal server message", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(ServerMessage{Type: MsgTypeError, Payload: ErrorPayload{Code: code, Message: message}})
}
