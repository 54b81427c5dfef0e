package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/middleware"
)

func (h *handler) listTokens(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	list, err := h.app.Tokens.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getToken(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	tok, err := h.app.Tokens.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) syncToken(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	tok, err := h.app.Tokens.Sync(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "token.sync", "token", tok.ID, nil)
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) submitTokenTransaction(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	var payload struct {
		SignedTx string `json:"signed_tx"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.app.Tokens.SubmitTransaction(r.Context(), mux.Vars(r)["id"], payload.SignedTx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "token.tx_submit", "token", mux.Vars(r)["id"], map[string]string{
		"tx_hash": receipt.TxHash,
		"status":  receipt.Status,
	})
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) listHoldings(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	holdings, err := h.app.Tokens.Holdings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (h *handler) trackHolding(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	var payload struct {
		InvestorID string `json:"investor_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	investorID := payload.InvestorID
	if investorID == "" {
		inv, err := h.app.Investors.GetByUser(r.Context(), middleware.GetUserID(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		investorID = inv.ID
	}

	holding, err := h.app.Tokens.TrackHolding(r.Context(), mux.Vars(r)["id"], investorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, holding)
}
