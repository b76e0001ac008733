package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/events"
	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
	"github.com/nerrad567/actuator-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeWelcome     = "welcome"
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll subscribes a client to every event type.
	WSChannelAll = "*"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every server-to-client message and for
// client requests.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
// Channels are event types from the events package, or "*".
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsWelcome is sent once after the upgrade.
type wsWelcome struct {
	Subject  string   `json:"subject"`
	Role     string   `json:"role"`
	Channels []string `json:"channels"`
}

// Hub fans controller events out to WebSocket clients.
//
// Hub implements control.Observer; register it with the controller so
// accepted commands, outcomes and emergency-stop changes reach clients.
// A client whose buffer is full misses the event; Dropped counts these.
type Hub struct {
	control.NopObserver

	cfg     config.WebSocketConfig
	logger  *logging.Logger
	now     func() time.Time
	dropped atomic.Uint64

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", client.subject, "clients", count)
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if client.close() {
		h.logger.Debug("websocket client disconnected", "subject", client.subject, "clients", count)
	}
}

// Broadcast sends an event to every client subscribed to eventType.
// The client list is copied under the hub lock and sends happen after it
// is released, so the hub and client locks are never held together.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: h.now().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "event_type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.isSubscribed(eventType) {
			continue
		}
		if !c.trySend(data) {
			h.dropped.Add(1)
			h.logger.Warn("websocket client buffer full, event dropped",
				"subject", c.subject, "event_type", eventType)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were not delivered to slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// CommandAccepted broadcasts a newly admitted command.
func (h *Hub) CommandAccepted(cmd control.Command) {
	h.Broadcast(events.TypeCommandAccepted, cmd)
}

// ExecutionRecorded broadcasts an execution outcome.
func (h *Hub) ExecutionRecorded(o audit.Outcome) {
	h.Broadcast(events.TypeExecutionRecorded, o)
}

// EmergencyStopChanged broadcasts engagement and release of the interlock.
func (h *Hub) EmergencyStopChanged(state control.EmergencyState) {
	if state.Engaged {
		h.Broadcast(events.TypeEmergencyStopEngaged, state)
		return
	}
	h.Broadcast(events.TypeEmergencyStopResumed, state)
}

var _ control.Observer = (*Hub)(nil)

// validChannel reports whether a client may subscribe to name.
func validChannel(name string) bool {
	if name == WSChannelAll {
		return true
	}
	for _, t := range events.AllTypes() {
		if t == name {
			return true
		}
	}
	return false
}
