package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/thewall/internal/middleware"
	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/wall"
)

// WSHandlers serves the realtime snapshot feed over WebSocket.
type WSHandlers struct {
	store    *realtime.Store
	upgrader websocket.Upgrader
}

// NewWSHandlers creates a new WSHandlers instance. allowedOrigins is the
// browser origin allowlist; an empty list allows same-host connections only.
func NewWSHandlers(store *realtime.Store, allowedOrigins []string) *WSHandlers {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return &WSHandlers{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if originSet[origin] {
					return true
				}
				// Default same-origin check when no allowlist is configured.
				return len(originSet) == 0 && origin == "http://"+r.Host
			},
		},
	}
}

// Subscribe handles GET /wall/ws - streams full snapshots to the client.
// The first frame is the current snapshot; every later frame is the complete
// post-mutation state, never a diff. ?encoding=cbor switches the frames to
// binary CBOR messages.
func (h *WSHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enc, err := realtime.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unsupported encoding; use json or cbor")
		return
	}

	messageType := websocket.TextMessage
	if enc == realtime.EncodingCBOR {
		messageType = websocket.BinaryMessage
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// Snapshot callbacks run on the mutating goroutine and must not block,
	// so deliveries go through a buffered channel. When the client cannot
	// keep up the oldest pending snapshot is dropped: every frame is the
	// complete state, so the newest one supersedes anything unsent.
	updates := make(chan []wall.Picture, 8)
	deliver := func(pictures []wall.Picture) {
		for {
			select {
			case updates <- pictures:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}

	unsubscribe, err := h.store.Subscribe(ctx, deliver)
	if err != nil {
		slog.ErrorContext(ctx, "failed to subscribe websocket client", "error", err)
		conn.Close()
		return
	}

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to wall",
		"encoding", string(enc),
		"request_id", requestID,
	)

	// Writer: encode and push snapshots until told to stop. The updates
	// channel is never closed because a broadcast already in flight may
	// still deliver after unsubscribe returns.
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case pictures := <-updates:
				data, err := realtime.EncodeSnapshot(pictures, enc)
				if err != nil {
					slog.ErrorContext(ctx, "failed to encode snapshot frame", "error", err)
					continue
				}
				if err := conn.WriteMessage(messageType, data); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		close(stop)
		<-writerDone
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"request_id", requestID,
		)
	}()

	// Keep connection alive - read messages to detect disconnection.
	// Clients don't send anything meaningful; we only need the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			return
		}
	}
}
