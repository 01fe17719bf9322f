package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/thewall/internal/admin"
)

// AdminCredentialHeader carries the admin credential on privileged
// requests.
const AdminCredentialHeader = "X-Admin-Credential"

// AdminHandlers exposes the privileged wall operations.
type AdminHandlers struct {
	service *admin.Service
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(service *admin.Service) *AdminHandlers {
	return &AdminHandlers{service: service}
}

// RedeemBypassRequest is the body of POST /admin/bypass.
type RedeemBypassRequest struct {
	Credential string `json:"credential"`
}

// RedeemBypassResponse carries the bypass token to present on later
// requests.
type RedeemBypassResponse struct {
	Token string `json:"token"`
}

// RedeemBypass handles POST /admin/bypass - exchanges the shared bypass
// credential for a short-lived token that lifts the daily quota.
func (h *AdminHandlers) RedeemBypass(w http.ResponseWriter, r *http.Request) {
	var req RedeemBypassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	token, err := h.service.RedeemBypass(requestIdentity(r), req.Credential)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredential) {
			writeErrorCode(w, r, http.StatusUnauthorized, ErrCodeInvalidCredential, "Invalid credential")
			return
		}
		slog.ErrorContext(r.Context(), "failed to issue bypass token", "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue bypass token")
		return
	}

	writeJSON(w, r, http.StatusOK, RedeemBypassResponse{Token: token})
}

// RevokeBypass handles DELETE /admin/bypass - surrenders the bypass
// token presented in the X-Bypass-Token header.
func (h *AdminHandlers) RevokeBypass(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(BypassTokenHeader)
	if err := h.service.RevokeBypass(token); err != nil {
		writeErrorCode(w, r, http.StatusUnauthorized, ErrCodeInvalidCredential, "Invalid bypass token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearWallResponse reports how many pictures were removed.
type ClearWallResponse struct {
	Removed int `json:"removed"`
}

// ClearWall handles DELETE /admin/pictures - removes every picture and
// pushes the empty snapshot to all subscribers.
func (h *AdminHandlers) ClearWall(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.ClearWall(r.Context(), r.Header.Get(AdminCredentialHeader))
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredential) {
			writeErrorCode(w, r, http.StatusUnauthorized, ErrCodeInvalidCredential, "Invalid credential")
			return
		}
		slog.ErrorContext(r.Context(), "failed to clear wall", "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to clear wall")
		return
	}

	writeJSON(w, r, http.StatusOK, ClearWallResponse{Removed: removed})
}

// WallStats handles GET /admin/stats.
func (h *AdminHandlers) WallStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.WallStats(r.Context(), r.Header.Get(AdminCredentialHeader))
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredential) {
			writeErrorCode(w, r, http.StatusUnauthorized, ErrCodeInvalidCredential, "Invalid credential")
			return
		}
		slog.ErrorContext(r.Context(), "failed to read wall stats", "error", err)
		writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read wall stats")
		return
	}

	writeJSON(w, r, http.StatusOK, stats)
}
