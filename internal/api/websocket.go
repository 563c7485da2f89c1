package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hubspace-bridge/internal/entity"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	EntityID  string          `json:"entity_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, entities.
//
// An empty Entities list matches every entity. With Snapshot set, the
// current state of each matching entity is sent straight after the
// subscribe response.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Entities []string `json:"entities,omitempty"`
	Snapshot bool     `json:"snapshot,omitempty"`
}

// entityFilter is a set of entity ids. nil matches everything.
type entityFilter map[string]struct{}

func newEntityFilter(ids []string) entityFilter {
	if len(ids) == 0 {
		return nil
	}
	f := make(entityFilter, len(ids))
	for _, id := range ids {
		f[id] = struct{}{}
	}
	return f
}

func (f entityFilter) matches(id string) bool {
	if f == nil || id == "" {
		return true
	}
	_, ok := f[id]
	return ok
}

// Hub tracks WebSocket clients and fans entity events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// snapshot returns the current entities for subscribe-time sync.
	snapshot func() []entity.Snapshot
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	subject string // token subject, empty when auth is disabled

	mu   sync.RWMutex
	subs map[string]entityFilter // channel -> entity filter
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. snapshot may be nil, in which case subscribe
// requests asking for a snapshot receive nothing extra.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, snapshot func() []entity.Snapshot) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		clients:  make(map[*WSClient]struct{}),
		snapshot: snapshot,
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

// Unregister removes a client. The send channel is closed by whichever
// caller actually removed it, so a second call is harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if present {
		close(c.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n, "subject", c.subject)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastState sends an entity.state_changed event for snap to every
// client whose subscription matches the entity.
func (h *Hub) BroadcastState(snap entity.Snapshot) {
	h.Broadcast(EventStateChanged, snap.UniqueID, snap)
}

// Broadcast sends an event on channel. entityID scopes it for clients
// that subscribed to specific entities; empty reaches every subscriber.
func (h *Hub) Broadcast(channel, entityID string, payload any) {
	data, err := encodeEvent(channel, entityID, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket event", "channel", channel, "error", err)
		return
	}

	// Copy the client set so per-client locks are never taken under h.mu.
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.wants(channel, entityID) {
			c.enqueue(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "entity_id", entityID, "recipients", sent)
	}
}

func encodeEvent(channel, entityID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		EntityID:  entityID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
	})
}

// handleWebSocket upgrades the request. Authentication has already run
// in authMiddleware (bearer header or ?token=). A new client receives
// nothing until it subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		subs: make(map[string]entityFilter),
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		c.subject = claims.Subject
	}
	s.hub.Register(c)

	t := newWSTimings(s.wsCfg)
	go c.writeLoop(t)
	go c.readLoop(t)
}

// wsTimings holds the keepalive durations derived from config.
type wsTimings struct {
	readLimit int64
	ping      time.Duration
	writeWait time.Duration
	readWait  time.Duration
}

func newWSTimings(cfg config.WebSocketConfig) wsTimings {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsTimings{
		readLimit: int64(cfg.MaxMessageSize),
		ping:      ping,
		writeWait: pong,
		readWait:  ping + pong,
	}
}

func (c *WSClient) readLoop(t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }
	c.conn.SetReadLimit(t.readLimit)
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err, "subject", c.subject)
			}
			return
		}
		// Application frames count as liveness too.
		_ = extend()
		c.dispatch(data)
	}
}

func (c *WSClient) writeLoop(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &sub) != nil || len(sub.Channels) == 0 {
			c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid " + msg.Type + " payload"})
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(msg.ID, sub)
		} else {
			c.unsubscribe(msg.ID, sub)
		}
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) subscribe(id string, sub WSSubscribePayload) {
	filter := newEntityFilter(sub.Entities)
	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subs[ch] = filter
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed",
		"channels", sub.Channels,
		"entities", len(sub.Entities),
		"subject", c.subject,
	)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	if !sub.Snapshot || c.hub.snapshot == nil || !c.wants(EventStateChanged, "") {
		return
	}
	for _, snap := range c.hub.snapshot() {
		if !filter.matches(snap.UniqueID) {
			continue
		}
		if data, err := encodeEvent(EventStateChanged, snap.UniqueID, snap); err == nil {
			c.enqueue(data)
		}
	}
}

func (c *WSClient) unsubscribe(id string, sub WSSubscribePayload) {
	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subs, ch)
	}
	c.mu.Unlock()
	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// wants reports whether the client subscribed to channel for entityID.
func (c *WSClient) wants(channel, entityID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filter, ok := c.subs[channel]
	return ok && filter.matches(entityID)
}

// enqueue queues data without blocking. Frames for a slow client are
// dropped, and a send racing with Unregister is absorbed.
func (c *WSClient) enqueue(data []byte) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		msg.Payload = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}
