package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/thewall/internal/like"
	"github.com/onnwee/thewall/internal/realtime"
)

// LikeHandlers toggles hearts on pictures.
type LikeHandlers struct {
	likes *like.Service
	store *realtime.Store
}

// NewLikeHandlers creates a new LikeHandlers instance.
func NewLikeHandlers(likes *like.Service, store *realtime.Store) *LikeHandlers {
	return &LikeHandlers{likes: likes, store: store}
}

// pictureExists verifies the target picture is on the wall, writing the
// error response when it is not.
func (h *LikeHandlers) pictureExists(w http.ResponseWriter, r *http.Request, id string) bool {
	ok, err := h.store.Has(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to look up picture", "picture_id", id, "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to look up picture")
		return false
	}
	if !ok {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "Picture not found")
		return false
	}
	return true
}

// ToggleLike handles POST /pictures/{id}/like - flips the caller's like
// on the picture and returns the new state with the total count.
func (h *LikeHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Picture id is required")
		return
	}
	if !h.pictureExists(w, r, id) {
		return
	}

	status, err := h.likes.Toggle(r.Context(), id, requestIdentity(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to toggle like", "picture_id", id, "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to toggle like")
		return
	}

	writeJSON(w, r, http.StatusOK, status)
}

// GetLikeStatus handles GET /pictures/{id}/likes - the caller's like
// state and the picture's total count.
func (h *LikeHandlers) GetLikeStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Picture id is required")
		return
	}
	if !h.pictureExists(w, r, id) {
		return
	}

	status, err := h.likes.StatusFor(r.Context(), id, requestIdentity(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read like status", "picture_id", id, "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read like status")
		return
	}

	writeJSON(w, r, http.StatusOK, status)
}
