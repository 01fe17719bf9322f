package api

import (
	"net/http"

	"github.com/onnwee/thewall/internal/quota"
)

// QuotaHandlers reports the caller's remaining daily uploads.
type QuotaHandlers struct {
	limiter *quota.Limiter
}

// NewQuotaHandlers creates a new QuotaHandlers instance.
func NewQuotaHandlers(limiter *quota.Limiter) *QuotaHandlers {
	return &QuotaHandlers{limiter: limiter}
}

// QuotaResponse is the JSON shape of a quota decision. Remaining is -1
// when the caller is unlimited (bypass active).
type QuotaResponse struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Bypass    bool `json:"bypass"`
}

// GetQuota handles GET /quota - advisory check of today's usage for the
// resolved identity. It never blocks anything; placement start is where
// the slot is actually reserved.
func (h *QuotaHandlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	decision := h.limiter.CheckQuota(r.Context(), requestIdentity(r))
	writeJSON(w, r, http.StatusOK, quotaResponse(decision))
}
