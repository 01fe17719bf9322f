package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/wall"
)

func newWSTestServer(t *testing.T, allowedOrigins []string) (*httptest.Server, *realtime.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := realtime.NewStore(wall.NewInMemoryPictureRepository(), logger, nil)
	handlers := NewWSHandlers(store, allowedOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /wall/ws", handlers.Subscribe)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func wsURL(server *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/wall/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func readFrame(t *testing.T, conn *websocket.Conn, enc realtime.Encoding) *realtime.SnapshotFrame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	frame, err := realtime.DecodeSnapshot(data, enc)
	if err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return frame
}

func TestSubscribeReceivesInitialSnapshot(t *testing.T) {
	server, store := newWSTestServer(t, nil)
	if _, err := store.Add(t.Context(), &wall.Picture{AssetURL: "https://cdn.example.com/a.png"}); err != nil {
		t.Fatalf("failed to seed picture: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	frame := readFrame(t, conn, realtime.EncodingJSON)
	if frame.Type != "snapshot" {
		t.Errorf("expected snapshot frame, got %q", frame.Type)
	}
	if len(frame.Pictures) != 1 {
		t.Errorf("expected 1 picture in initial snapshot, got %d", len(frame.Pictures))
	}
}

func TestSubscribeReceivesMutations(t *testing.T) {
	server, store := newWSTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	// Initial empty snapshot.
	frame := readFrame(t, conn, realtime.EncodingJSON)
	if len(frame.Pictures) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d pictures", len(frame.Pictures))
	}

	id, err := store.Add(t.Context(), &wall.Picture{AssetURL: "https://cdn.example.com/b.png"})
	if err != nil {
		t.Fatalf("failed to add picture: %v", err)
	}
	frame = readFrame(t, conn, realtime.EncodingJSON)
	if len(frame.Pictures) != 1 || frame.Pictures[0].ID != id {
		t.Fatalf("expected snapshot with the new picture, got %+v", frame.Pictures)
	}

	// Every frame is the full collection, so a removal arrives as the
	// complete remaining state.
	if err := store.Remove(t.Context(), id); err != nil {
		t.Fatalf("failed to remove picture: %v", err)
	}
	frame = readFrame(t, conn, realtime.EncodingJSON)
	if len(frame.Pictures) != 0 {
		t.Errorf("expected empty snapshot after removal, got %d pictures", len(frame.Pictures))
	}
}

func TestSubscribeCBOREncoding(t *testing.T) {
	server, store := newWSTestServer(t, nil)
	if _, err := store.Add(t.Context(), &wall.Picture{AssetURL: "https://cdn.example.com/c.png"}); err != nil {
		t.Fatalf("failed to seed picture: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "encoding=cbor"), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Errorf("expected binary message for cbor, got type %d", messageType)
	}
	frame, err := realtime.DecodeSnapshot(data, realtime.EncodingCBOR)
	if err != nil {
		t.Fatalf("failed to decode cbor frame: %v", err)
	}
	if len(frame.Pictures) != 1 {
		t.Errorf("expected 1 picture, got %d", len(frame.Pictures))
	}
}

func TestSubscribeUnsupportedEncoding(t *testing.T) {
	server, _ := newWSTestServer(t, nil)

	resp, err := http.Get(server.URL + "/wall/ws?encoding=msgpack")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestSubscribeOriginAllowlist(t *testing.T) {
	server, _ := newWSTestServer(t, []string{"https://wall.example.com"})

	// Allowed origin upgrades.
	header := http.Header{"Origin": []string{"https://wall.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), header)
	if err != nil {
		t.Fatalf("expected allowlisted origin to connect: %v", err)
	}
	conn.Close()

	// Foreign origin is rejected during the handshake.
	header = http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(server, ""), header); err == nil {
		t.Error("expected handshake failure for foreign origin")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", resp.StatusCode)
	}
}

func TestSubscriberCountTracksConnections(t *testing.T) {
	server, store := newWSTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	readFrame(t, conn, realtime.EncodingJSON)

	if store.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", store.SubscriberCount())
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for store.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after close; count=%d", store.SubscriberCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
