package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/thewall/internal/asset"
	"github.com/onnwee/thewall/internal/placement"
	"github.com/onnwee/thewall/internal/quota"
	"github.com/onnwee/thewall/internal/wall"
)

// maxUploadBytes bounds the multipart form held in memory per upload.
const maxUploadBytes = 16 << 20 // 16 MiB

// PlacementHandlers drives placement sessions over HTTP.
type PlacementHandlers struct {
	manager *placement.Manager
}

// NewPlacementHandlers creates a new PlacementHandlers instance.
func NewPlacementHandlers(manager *placement.Manager) *PlacementHandlers {
	return &PlacementHandlers{manager: manager}
}

// PlacementResponse is the JSON shape of a placement session.
type PlacementResponse struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	Quota     QuotaResponse  `json:"quota"`
	Position  *wall.Position `json:"position,omitempty"`
	StartedAt string         `json:"started_at"`
}

func placementResponse(s *placement.Session) PlacementResponse {
	resp := PlacementResponse{
		ID:        s.ID,
		State:     s.State().String(),
		Quota:     quotaResponse(s.Decision()),
		StartedAt: s.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if pos, ok := s.Position(); ok {
		resp.Position = &pos
	}
	return resp
}

// Start handles POST /placements - opens a placement session for the
// visitor. One session per visitor; the quota slot is reserved here.
func (h *PlacementHandlers) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.Start(r.Context(), requestIdentity(r))
	if err != nil {
		switch {
		case errors.Is(err, placement.ErrSessionActive):
			writeErrorCode(w, r, http.StatusConflict, ErrCodeSessionActive, "A placement is already in progress")
		case errors.Is(err, placement.ErrQuotaExceeded):
			writeErrorCode(w, r, http.StatusForbidden, ErrCodeQuotaExceeded, "Daily upload limit reached")
		default:
			slog.ErrorContext(r.Context(), "failed to start placement", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to start placement")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, placementResponse(session))
}

// Current handles GET /placements - returns the visitor's in-flight
// session. Lets a client that lost the session id (page reload) pick
// the placement back up or cancel it instead of waiting out the
// single-flight conflict.
func (h *PlacementHandlers) Current(w http.ResponseWriter, r *http.Request) {
	session, ok := h.manager.ForIdentity(requestIdentity(r))
	if !ok {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "No placement in progress")
		return
	}
	writeJSON(w, r, http.StatusOK, placementResponse(session))
}

// session resolves the path id to a live session or writes the error.
func (h *PlacementHandlers) session(w http.ResponseWriter, r *http.Request) (*placement.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Placement id is required")
		return nil, false
	}
	session, ok := h.manager.Get(id)
	if !ok {
		writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Placement session not found")
		return nil, false
	}
	return session, true
}

// SetPositionRequest is the body of POST /placements/{id}/position. The
// point is in viewport pixels together with the viewport it was measured
// against; the server converts to normalized wall coordinates.
type SetPositionRequest struct {
	Point    PointPayload `json:"point"`
	Viewport RectPayload  `json:"viewport"`
}

// PointPayload is a pixel coordinate in the client viewport.
type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RectPayload describes the client viewport rectangle.
type RectPayload struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SetPosition handles POST /placements/{id}/position.
func (h *PlacementHandlers) SetPosition(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	err := session.SetPosition(
		wall.Point{X: req.Point.X, Y: req.Point.Y},
		wall.Rect{Left: req.Viewport.Left, Top: req.Viewport.Top, Width: req.Viewport.Width, Height: req.Viewport.Height},
	)
	if err != nil {
		switch {
		case errors.Is(err, wall.ErrNotReady):
			writeErrorCode(w, r, http.StatusBadRequest, ErrCodeNotReady, "Viewport has no usable size yet")
		case errors.Is(err, placement.ErrSessionNotFound):
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Placement session not found")
		case errors.Is(err, placement.ErrInvalidState):
			writeErrorCode(w, r, http.StatusConflict, ErrCodeInvalidState, "Position cannot be changed in the current state")
		default:
			slog.ErrorContext(r.Context(), "failed to set placement position", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to set position")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, placementResponse(session))
}

// Upload handles POST /placements/{id}/upload - multipart form with a
// "file" part. On success the picture is on the wall and the session is
// finished.
func (h *PlacementHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "A file part named \"file\" is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := asset.ValidateContentType(contentType); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeUnsupportedType,
			"Unsupported content type. Allowed types: image/jpeg, image/png, image/webp, image/gif")
		return
	}

	picture, err := session.Upload(r.Context(), file, header.Filename, contentType)
	if err != nil {
		switch {
		case errors.Is(err, placement.ErrSessionNotFound):
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Placement session not found")
		case errors.Is(err, placement.ErrInvalidState):
			writeErrorCode(w, r, http.StatusConflict, ErrCodeInvalidState, "Choose a position before uploading")
		case errors.Is(err, asset.ErrFileTooLarge):
			writeErrorCode(w, r, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
		case errors.Is(err, asset.ErrUnsupportedType):
			writeErrorCode(w, r, http.StatusBadRequest, ErrCodeUnsupportedType, "Unsupported content type")
		case errors.Is(err, asset.ErrUploadFailed):
			writeErrorCode(w, r, http.StatusBadGateway, ErrCodeUploadFailed, "The picture could not be hosted; try again")
		case errors.Is(err, placement.ErrStoreWrite):
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeStoreWriteFailed, "The picture was hosted but could not be placed")
		default:
			slog.ErrorContext(r.Context(), "placement upload failed", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Upload failed")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, picture)
}

// Dismiss handles POST /placements/{id}/dismiss - abandons the chosen
// position and returns to selecting.
func (h *PlacementHandlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := session.Dismiss(); err != nil {
		switch {
		case errors.Is(err, placement.ErrSessionNotFound):
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Placement session not found")
		case errors.Is(err, placement.ErrInvalidState):
			writeErrorCode(w, r, http.StatusConflict, ErrCodeInvalidState, "Nothing to dismiss in the current state")
		default:
			slog.ErrorContext(r.Context(), "failed to dismiss position", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to dismiss position")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, placementResponse(session))
}

// Cancel handles DELETE /placements/{id} - abandons the session and
// returns its quota slot.
func (h *PlacementHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := session.Cancel(r.Context()); err != nil {
		switch {
		case errors.Is(err, placement.ErrSessionNotFound):
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Placement session not found")
		case errors.Is(err, placement.ErrInvalidState):
			writeErrorCode(w, r, http.StatusConflict, ErrCodeInvalidState, "An upload is in progress; it cannot be cancelled")
		default:
			slog.ErrorContext(r.Context(), "failed to cancel placement", "error", err)
			writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to cancel placement")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// quotaResponse converts a limiter decision to the wire shape.
func quotaResponse(d quota.Decision) QuotaResponse {
	return QuotaResponse{
		Allowed:   d.Allowed,
		Used:      d.Used,
		Remaining: d.Remaining,
		Bypass:    d.Bypass,
	}
}
