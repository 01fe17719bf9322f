package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/thewall/internal/like"
	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/wall"
)

// WallHandlers serves the picture collection: the one-shot snapshot read
// and mutations on individual pictures.
type WallHandlers struct {
	store *realtime.Store
	likes *like.Service
}

// NewWallHandlers creates a new WallHandlers instance.
func NewWallHandlers(store *realtime.Store, likes *like.Service) *WallHandlers {
	return &WallHandlers{store: store, likes: likes}
}

// WallResponse is the JSON body of GET /wall.
type WallResponse struct {
	Pictures []wall.Picture `json:"pictures"`
	Likes    map[string]int `json:"likes,omitempty"`
}

// GetWall handles GET /wall - returns the complete current snapshot.
// With ?encoding=cbor the snapshot frame is returned CBOR-encoded; the
// default is JSON.
func (h *WallHandlers) GetWall(w http.ResponseWriter, r *http.Request) {
	enc, err := realtime.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unsupported encoding; use json or cbor")
		return
	}

	pictures, err := h.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read wall snapshot", "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read the wall")
		return
	}

	if enc == realtime.EncodingCBOR {
		data, err := realtime.EncodeSnapshot(pictures, enc)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to encode snapshot", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode the wall")
			return
		}
		w.Header().Set("Content-Type", "application/cbor")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	response := WallResponse{Pictures: pictures}
	if response.Pictures == nil {
		response.Pictures = []wall.Picture{}
	}
	if h.likes != nil {
		if counts, err := h.likes.Counts(r.Context()); err == nil && len(counts) > 0 {
			response.Likes = counts
		}
	}
	writeJSON(w, r, http.StatusOK, response)
}

// UpdatePositionRequest is the body of PATCH /pictures/{id}/position.
// Coordinates are normalized, center-relative fractions of the wall.
type UpdatePositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UpdatePosition handles PATCH /pictures/{id}/position - moves a picture.
// The updated snapshot is pushed to every subscriber.
func (h *WallHandlers) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Picture id is required")
		return
	}

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	err := h.store.UpdatePosition(r.Context(), id, wall.Position{X: req.X, Y: req.Y})
	if err != nil {
		if errors.Is(err, wall.ErrPictureNotFound) {
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "Picture not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update picture position", "picture_id", id, "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeStoreWriteFailed, "Failed to move the picture")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeletePicture handles DELETE /pictures/{id} - removes a picture from the
// wall. Removing a picture that is already gone is a success: the caller's
// goal state holds either way.
func (h *WallHandlers) DeletePicture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Picture id is required")
		return
	}

	if err := h.store.Remove(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "failed to remove picture", "picture_id", id, "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeStoreWriteFailed, "Failed to remove the picture")
		return
	}
	if h.likes != nil {
		h.likes.Forget(r.Context(), id)
	}

	w.WriteHeader(http.StatusNoContent)
}
