package hub_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"concord/internal/hub"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Events  []frame         `json:"events"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T, cfg hub.Config) (*hub.Hub, *websocket.Conn) {
	t.Helper()

	h := hub.New(cfg, testLogger())
	go h.Run()
	t.Cleanup(h.Shutdown)

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return h, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestConnectedEvent(t *testing.T) {
	_, conn := startHub(t, hub.Config{})

	f := readFrame(t, conn)
	if f.Type != string(hub.EventConnected) {
		t.Errorf("first frame type = %s, want connected", f.Type)
	}
}

func TestSingleEventSentAsIs(t *testing.T) {
	h, conn := startHub(t, hub.Config{FlushInterval: 30 * time.Millisecond})
	readFrame(t, conn) // connected

	h.Publish(hub.NewEvent(hub.EventDocumentCreated, map[string]string{"id": "x"}))

	f := readFrame(t, conn)
	if f.Type != string(hub.EventDocumentCreated) {
		t.Errorf("frame type = %s, want document_created (no envelope for one event)", f.Type)
	}
	if len(f.Events) != 0 {
		t.Errorf("single event must not arrive wrapped, got %d nested events", len(f.Events))
	}
}

func TestBatchingBoundsAndOrder(t *testing.T) {
	const total = 120
	const maxBatch = 50

	h, conn := startHub(t, hub.Config{
		FlushInterval: 50 * time.Millisecond,
		MaxBatch:      maxBatch,
	})
	readFrame(t, conn) // connected

	for i := range total {
		h.Publish(hub.NewEvent(hub.EventTraitUpdated, map[string]int{"seq": i}))
	}

	var got []int
	for len(got) < total {
		f := readFrame(t, conn)

		var events []frame
		switch f.Type {
		case string(hub.EventBatchUpdate):
			events = f.Events
		case string(hub.EventTraitUpdated):
			events = []frame{f}
		default:
			t.Fatalf("unexpected frame type %s", f.Type)
		}

		if len(events) > maxBatch {
			t.Fatalf("batch size %d exceeds max %d", len(events), maxBatch)
		}

		for _, e := range events {
			var payload struct {
				Seq int `json:"seq"`
			}
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			got = append(got, payload.Seq)
		}
	}

	for i, seq := range got {
		if seq != i {
			t.Fatalf("order violated at %d: got seq %d", i, seq)
		}
	}
}

func TestClientPingAnsweredWithPong(t *testing.T) {
	_, conn := startHub(t, hub.Config{})
	readFrame(t, conn) // connected

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	f := readFrame(t, conn)
	if f.Type != string(hub.EventPong) {
		t.Errorf("frame type = %s, want pong", f.Type)
	}
}

func TestShutdownNotifiesObservers(t *testing.T) {
	h := hub.New(hub.Config{FlushInterval: 20 * time.Millisecond}, testLogger())
	go h.Run()

	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	readFrame(t, conn) // connected

	h.Publish(hub.NewEvent(hub.EventTraitAdded, nil))
	h.Shutdown()

	sawShutdown := false
	for range 3 {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Type == string(hub.EventServerShutdown) {
			sawShutdown = true
			break
		}
	}

	if !sawShutdown {
		t.Error("observer never received server_shutdown")
	}
}

func TestPublishAfterShutdownDoesNotBlock(t *testing.T) {
	h := hub.New(hub.Config{}, testLogger())
	go h.Run()
	h.Shutdown()

	done := make(chan struct{})
	go func() {
		h.Publish(hub.NewEvent(hub.EventTraitAdded, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Publish blocked after shutdown")
	}
}
