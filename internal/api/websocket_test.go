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

	"github.com/nerrad567/virtuaplant-core/internal/history"
	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
)

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return msg
}

func TestWebSocket_SnapshotAndEvents(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "?channels=tags.changed")

	// Current tags arrive first.
	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != telemetry.EventTagsChanged {
		t.Fatalf("first message = %+v, want tags.changed event", msg)
	}
	payload, _ := json.Marshal(msg.Payload)
	var snap telemetry.TagsMessage
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("snapshot payload: %v", err)
	}
	if !snap.Tags.Run || snap.Observation.Bottles != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	// Not subscribed to fills yet.
	srv.Hub().Broadcast(telemetry.EventFillCompleted, history.FillRecord{ID: "ignored"})

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{telemetry.EventFillCompleted}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	srv.Hub().Broadcast(telemetry.EventFillCompleted, history.FillRecord{ID: "fill-7", TriggerID: 7})
	ev := readWS(t, conn)
	if ev.EventType != telemetry.EventFillCompleted {
		t.Fatalf("event = %+v, want fill.completed", ev)
	}
	if p := ev.Payload.(map[string]any); p["id"] != "fill-7" {
		t.Errorf("payload id = %v, want fill-7", p["id"])
	}
}

func TestWebSocket_Messages(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")

	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p"}`, WSTypePong},
		{"unknown type", `{"type":"shout"}`, WSTypeError},
		{"invalid json", `not json`, WSTypeError},
		{"unknown channel", `{"type":"subscribe","payload":{"channels":["valve.opened"]}}`, WSTypeError},
		{"empty subscribe", `{"type":"subscribe","payload":{}}`, WSTypeError},
		{"unsubscribe", `{"type":"unsubscribe","payload":{"channels":["tags.changed"]}}`, WSTypeResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("WriteMessage() error: %v", err)
			}
			if got := readWS(t, conn); got.Type != tt.wantType {
				t.Errorf("reply = %+v, want type %s", got, tt.wantType)
			}
		})
	}
}

func TestWebSocket_UnknownChannelRejected(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath + "?channels=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() should fail for an unknown channel")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("response = %v, want 400", resp)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Hub().Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if n := srv.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() should fail after hub shutdown")
	}
}
