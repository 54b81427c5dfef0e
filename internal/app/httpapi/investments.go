package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/metrics"
	"github.com/brickvault/platform/internal/middleware"
)

var errNotYourInvestment = errors.New("not your investment")

// resolveInvestorID maps the request onto an investor profile. Staff may act
// on any investor by passing an explicit ID; everyone else acts as themselves.
func (h *handler) resolveInvestorID(w http.ResponseWriter, r *http.Request, explicit string) (string, bool) {
	if explicit != "" && isStaff(middleware.GetUserRole(r.Context())) {
		return explicit, true
	}
	inv, err := h.app.Investors.GetByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return "", false
	}
	return inv.ID, true
}

// requireInvestmentAccess loads the investment and verifies the caller owns
// it or is staff.
func (h *handler) requireInvestmentAccess(w http.ResponseWriter, r *http.Request, id string) (investment.Investment, bool) {
	inv, err := h.app.Investments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return investment.Investment{}, false
	}
	if isStaff(middleware.GetUserRole(r.Context())) {
		return inv, true
	}
	owner, err := h.app.Investors.Get(r.Context(), inv.InvestorID)
	if err != nil || owner.UserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, errNotYourInvestment)
		return investment.Investment{}, false
	}
	return inv, true
}

func (h *handler) createInvestment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		InvestorID string  `json:"investor_id"`
		PropertyID string  `json:"property_id"`
		Amount     float64 `json:"amount"`
		Currency   string  `json:"currency"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	investorID, ok := h.resolveInvestorID(w, r, payload.InvestorID)
	if !ok {
		return
	}

	created, err := h.app.Investments.Create(r.Context(), investorID, payload.PropertyID, payload.Amount, payload.Currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investment.create", "investment", created.ID, map[string]string{"property_id": created.PropertyID})
	metrics.RecordInvestmentTransition(string(created.Status), 0, created.Currency)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listInvestments(w http.ResponseWriter, r *http.Request) {
	// Staff may filter by any investor or omit the filter to list all;
	// everyone else only sees their own orders.
	investorID := r.URL.Query().Get("investor_id")
	if !isStaff(middleware.GetUserRole(r.Context())) {
		resolved, ok := h.resolveInvestorID(w, r, "")
		if !ok {
			return
		}
		investorID = resolved
	}
	list, err := h.app.Investments.List(r.Context(), investorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.requireInvestmentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) submitInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.requireInvestmentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var payload struct {
		TxHash string `json:"tx_hash"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Investments.Submit(r.Context(), inv.ID, payload.TxHash)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investment.submit", "investment", inv.ID, map[string]string{"tx_hash": updated.TxHash})
	metrics.RecordInvestmentTransition(string(updated.Status), 0, updated.Currency)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) completeInvestment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	updated, err := h.app.Investments.Complete(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investment.complete", "investment", id, nil)
	metrics.RecordInvestmentTransition(string(updated.Status), updated.Amount, updated.Currency)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) failInvestment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Investments.Fail(r.Context(), id, payload.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investment.fail", "investment", id, map[string]string{"note": payload.Note})
	metrics.RecordInvestmentTransition(string(updated.Status), 0, updated.Currency)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) cancelInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.requireInvestmentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	updated, err := h.app.Investments.Cancel(r.Context(), inv.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investment.cancel", "investment", inv.ID, nil)
	metrics.RecordInvestmentTransition(string(updated.Status), 0, updated.Currency)
	writeJSON(w, http.StatusOK, updated)
}
