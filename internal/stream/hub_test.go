package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"diskmind/internal/events"
)

func setupWSServer(t *testing.T, bus *events.Bus, origins []string) (*Hub, string) {
	t.Helper()
	hub := NewHub(bus, origins)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	// Convert http:// to ws://
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ActiveConnections() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d connections, have %d", n, hub.ActiveConnections())
}

func TestHub_BroadcastsBusEvents(t *testing.T) {
	bus := events.NewBus()
	hub, wsURL := setupWSServer(t, bus, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitForConnections(t, hub, 1)

	bus.Publish(events.Event{
		Type:     events.AlertCreated,
		Severity: "critical",
		DiskID:   "ZDH1ABCD",
		Message:  "Disk status: ok → critical",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	if got.Type != events.AlertCreated || got.DiskID != "ZDH1ABCD" || got.Severity != "critical" {
		t.Errorf("unexpected frame %+v", got)
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	bus := events.NewBus()
	hub, wsURL := setupWSServer(t, bus, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	waitForConnections(t, hub, 1)

	conn.Close()
	waitForConnections(t, hub, 0)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	bus := events.NewBus()
	_, wsURL := setupWSServer(t, bus, []string{"https://nas.local"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected connection to be rejected")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}

	header = http.Header{"Origin": []string{"https://nas.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub(bus, nil)
	hub.Close()

	// Publishing after Close must not reach a closed hub.
	bus.Publish(events.Event{Type: events.ScanCompleted})
	if hub.ActiveConnections() != 0 {
		t.Errorf("connections after Close = %d", hub.ActiveConnections())
	}
}
