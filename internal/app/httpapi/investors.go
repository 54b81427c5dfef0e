package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/middleware"
)

func isStaff(role string) bool {
	return role == string(user.RoleAdmin) || role == string(user.RoleAgent)
}

// requireInvestorAccess loads the investor and verifies the caller either
// owns the profile or is staff.
func (h *handler) requireInvestorAccess(w http.ResponseWriter, r *http.Request, investorID string) (investor.Investor, bool) {
	inv, err := h.app.Investors.Get(r.Context(), investorID)
	if err != nil {
		writeServiceError(w, err)
		return investor.Investor{}, false
	}
	if !isStaff(middleware.GetUserRole(r.Context())) && inv.UserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, fmt.Errorf("not your profile"))
		return investor.Investor{}, false
	}
	return inv, true
}

func (h *handler) createInvestor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID        string `json:"user_id"`
		WalletAddress string `json:"wallet_address"`
		Country       string `json:"country"`
		Accredited    bool   `json:"accredited"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Non-staff callers always create their own profile.
	userID := payload.UserID
	if !isStaff(middleware.GetUserRole(r.Context())) || userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	created, err := h.app.Investors.Create(r.Context(), userID, payload.WalletAddress, payload.Country, payload.Accredited)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investor.create", "investor", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listInvestors(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Investors.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) myInvestor(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Investors.GetByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) getInvestor(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.requireInvestorAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) updateInvestor(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.requireInvestorAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var payload struct {
		WalletAddress *string `json:"wallet_address"`
		Accredited    *bool   `json:"accredited"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Investors.Update(r.Context(), inv.ID, payload.WalletAddress, payload.Accredited)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "investor.update", "investor", inv.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) investorPortfolio(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	inv, ok := h.requireInvestorAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	holdings, err := h.app.Tokens.Portfolio(r.Context(), inv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}
