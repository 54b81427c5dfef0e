package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/metrics"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/internal/middleware"
)

// maxWebhookBytes bounds provider callback bodies.
const maxWebhookBytes = 1 << 20

func (h *handler) submitKYC(w http.ResponseWriter, r *http.Request) {
	if h.app.KYC == nil {
		serviceUnavailable(w, "kyc")
		return
	}
	var payload struct {
		InvestorID  string   `json:"investor_id"`
		DocumentIDs []string `json:"document_ids"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	investorID, ok := h.resolveInvestorID(w, r, payload.InvestorID)
	if !ok {
		return
	}

	created, err := h.app.KYC.Submit(r.Context(), investorID, payload.DocumentIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "kyc.submit", "verification", created.ID, map[string]string{"investor_id": investorID})
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listKYC(w http.ResponseWriter, r *http.Request) {
	if h.app.KYC == nil {
		serviceUnavailable(w, "kyc")
		return
	}
	investorID := r.URL.Query().Get("investor_id")
	if !isStaff(middleware.GetUserRole(r.Context())) {
		resolved, ok := h.resolveInvestorID(w, r, "")
		if !ok {
			return
		}
		investorID = resolved
	}
	list, err := h.app.KYC.List(r.Context(), investorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getKYC(w http.ResponseWriter, r *http.Request) {
	if h.app.KYC == nil {
		serviceUnavailable(w, "kyc")
		return
	}
	v, err := h.app.KYC.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !isStaff(middleware.GetUserRole(r.Context())) {
		inv, err := h.app.Investors.Get(r.Context(), v.InvestorID)
		if err != nil || inv.UserID != middleware.GetUserID(r.Context()) {
			writeError(w, http.StatusForbidden, fmt.Errorf("not your verification"))
			return
		}
	}
	writeJSON(w, http.StatusOK, v)
}

// kycWebhook receives provider decisions. The raw body is verified against
// the shared secret before any parsing; replays are acknowledged without
// effect.
func (h *handler) kycWebhook(w http.ResponseWriter, r *http.Request) {
	if h.app.KYC == nil || h.app.KYCWebhooks == nil {
		serviceUnavailable(w, "kyc")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	defer r.Body.Close()

	if !h.app.KYCWebhooks.VerifySignature(body, r.Header.Get(kycprovider.SignatureHeader)) {
		h.log.WithField("remote", r.RemoteAddr).Warn("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid signature"))
		return
	}

	ev, err := kycprovider.ParseWebhook(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.app.KYC.HandleWebhook(r.Context(), ev); err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RecordKYCDecision(string(ev.Status))
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
