package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/events"
)

func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func receive(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WSMessage{}
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient(hub, events.TypeExecutionRecorded)
	hub.Register(client)

	hub.ExecutionRecorded(audit.Outcome{ID: "out-1", DeviceID: "hvac_zone_a", Success: true})

	msg := receive(t, client)
	if msg.Type != WSTypeEvent || msg.EventType != events.TypeExecutionRecorded {
		t.Errorf("message = %+v", msg)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, events.TypeCommandAccepted)
	hub.Register(client)

	hub.ExecutionRecorded(audit.Outcome{ID: "out-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Wildcard(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, WSChannelAll)
	hub.Register(client)

	hub.EmergencyStopChanged(control.EmergencyState{Engaged: true, Reason: "leak"})
	hub.EmergencyStopChanged(control.EmergencyState{})
	hub.CommandAccepted(control.Command{ID: "cmd-1"})

	for _, want := range []string{
		events.TypeEmergencyStopEngaged,
		events.TypeEmergencyStopResumed,
		events.TypeCommandAccepted,
	} {
		if got := receive(t, client).EventType; got != want {
			t.Errorf("event_type = %q, want %q", got, want)
		}
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := newTestClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_DropsForSlowClient(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{WSChannelAll: {}},
	}
	hub.Register(client)

	hub.CommandAccepted(control.Command{ID: "cmd-1"})
	hub.CommandAccepted(control.Command{ID: "cmd-2"})

	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if got := receive(t, client).EventType; got != events.TypeCommandAccepted {
		t.Errorf("event_type = %q", got)
	}
}

func TestHub_SendAfterUnregister(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, WSChannelAll)
	hub.Register(client)
	hub.Unregister(client)

	if client.trySend([]byte("{}")) {
		t.Error("trySend on a closed client should fail")
	}
	// Broadcasting to a stale snapshot must not panic.
	hub.ExecutionRecorded(audit.Outcome{ID: "out-1"})
}

func TestWSClient_Subscriptions(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	tests := []struct {
		name     string
		message  string
		wantType string
		wantSub  bool
	}{
		{
			name:     "known channel",
			message:  `{"type":"subscribe","id":"1","payload":{"channels":["execution.recorded"]}}`,
			wantType: WSTypeResponse,
			wantSub:  true,
		},
		{
			name:     "unknown channel",
			message:  `{"type":"subscribe","id":"2","payload":{"channels":["execution.recorded","sensor.raw"]}}`,
			wantType: WSTypeError,
		},
		{
			name:     "no channels",
			message:  `{"type":"subscribe","id":"3","payload":{}}`,
			wantType: WSTypeError,
		},
		{
			name:     "ping",
			message:  `{"type":"ping","id":"4"}`,
			wantType: WSTypePong,
		},
		{
			name:     "unknown type",
			message:  `{"type":"shout","id":"5"}`,
			wantType: WSTypeError,
		},
		{
			name:     "not json",
			message:  `subscribe please`,
			wantType: WSTypeError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(hub)
			client.handleMessage([]byte(tt.message))

			if got := receive(t, client).Type; got != tt.wantType {
				t.Errorf("response type = %q, want %q", got, tt.wantType)
			}
			if got := client.isSubscribed(events.TypeExecutionRecorded); got != tt.wantSub {
				t.Errorf("subscribed = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestWSClient_Unsubscribe(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, events.TypeCommandAccepted)

	client.handleMessage([]byte(`{"type":"unsubscribe","id":"1","payload":{"channels":["command.accepted"]}}`))

	if msg := receive(t, client); msg.Type != WSTypeResponse {
		t.Errorf("response = %+v", msg)
	}
	if client.isSubscribed(events.TypeCommandAccepted) {
		t.Error("still subscribed after unsubscribe")
	}
}

// ─── Tickets ───────────────────────────────────────────────────────

func TestTickets_SingleUse(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()
	ticket := ts.issue("tester", RoleViewer, now)

	entry, ok := ts.consume(ticket, now)
	if !ok || entry.subject != "tester" || entry.role != RoleViewer {
		t.Fatalf("first consume = %+v, %v", entry, ok)
	}
	if _, ok := ts.consume(ticket, now); ok {
		t.Error("ticket accepted twice")
	}
}

func TestTickets_Expiry(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()

	expired := ts.issue("tester", RoleViewer, now)
	if _, ok := ts.consume(expired, now.Add(ticketTTL+time.Second)); ok {
		t.Error("expired ticket should not be valid")
	}

	ts.issue("a", RoleViewer, now)
	ts.issue("b", RoleViewer, now.Add(ticketTTL))
	ts.clean(now.Add(ticketTTL + time.Second))
	if got := ts.len(); got != 1 {
		t.Errorf("tickets after clean = %d, want 1", got)
	}
}

func TestWebSocket_RequiresTicket(t *testing.T) {
	e := testServer(t)
	for _, path := range []string{"/api/v1/ws", "/api/v1/ws?ticket=bogus"} {
		if w := e.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
}

// ─── End to end ────────────────────────────────────────────────────

func TestWebSocket_StreamsControllerEvents(t *testing.T) {
	e := testServer(t)
	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.hub.Run(ctx)

	w := e.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", RoleViewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket = %d", w.Code)
	}
	ticket, _ := decode[map[string]any](t, w)["ticket"].(string) //nolint:errcheck // checked below
	if ticket == "" {
		t.Fatal("no ticket issued")
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var welcome WSMessage
	if err := conn.ReadJSON(&welcome); err != nil || welcome.Type != WSTypeWelcome {
		t.Fatalf("welcome = %+v, %v", welcome, err)
	}
	if p, _ := welcome.Payload.(map[string]any); p["role"] != RoleViewer { //nolint:errcheck // checked by comparison
		t.Errorf("welcome payload = %v", welcome.Payload)
	}

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{events.TypeCommandAccepted}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("subscribe ack = %+v, %v", ack, err)
	}

	w = e.do(t, http.MethodPost, "/api/v1/commands", RoleOperator,
		map[string]any{"device_id": "hvac_zone_a", "parameter": "setpoint", "value": 21})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit = %d", w.Code)
	}

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != events.TypeCommandAccepted {
		t.Errorf("event = %+v", event)
	}
	payload, _ := event.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["device_id"] != "hvac_zone_a" {
		t.Errorf("payload = %v", payload)
	}
}
