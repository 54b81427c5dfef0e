package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/visit"
	"github.com/brickvault/platform/internal/middleware"
)

func (h *handler) bookVisit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PropertyID  string    `json:"property_id"`
		InvestorID  string    `json:"investor_id"`
		ScheduledAt time.Time `json:"scheduled_at"`
		Note        string    `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	investorID, ok := h.resolveInvestorID(w, r, payload.InvestorID)
	if !ok {
		return
	}

	booked, err := h.app.Visits.Book(r.Context(), payload.PropertyID, investorID, payload.ScheduledAt, payload.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "visit.book", "visit", booked.ID, map[string]string{"property_id": booked.PropertyID})
	writeJSON(w, http.StatusCreated, booked)
}

func (h *handler) listVisits(w http.ResponseWriter, r *http.Request) {
	propertyID := r.URL.Query().Get("property_id")
	investorID := r.URL.Query().Get("investor_id")

	if !isStaff(middleware.GetUserRole(r.Context())) {
		resolved, ok := h.resolveInvestorID(w, r, "")
		if !ok {
			return
		}
		investorID = resolved
	}

	list, err := h.app.Visits.List(r.Context(), propertyID, investorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getVisit(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Visits.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !isStaff(middleware.GetUserRole(r.Context())) {
		owner, err := h.app.Investors.Get(r.Context(), v.InvestorID)
		if err != nil || owner.UserID != middleware.GetUserID(r.Context()) {
			writeError(w, http.StatusForbidden, fmt.Errorf("not your visit"))
			return
		}
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) transitionVisit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Visits.Transition(r.Context(), id, visit.Status(payload.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "visit.transition", "visit", id, map[string]string{"status": payload.Status})
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) rescheduleVisit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.app.Visits.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !isStaff(middleware.GetUserRole(r.Context())) {
		owner, err := h.app.Investors.Get(r.Context(), v.InvestorID)
		if err != nil || owner.UserID != middleware.GetUserID(r.Context()) {
			writeError(w, http.StatusForbidden, fmt.Errorf("not your visit"))
			return
		}
	}

	var payload struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Visits.Reschedule(r.Context(), id, payload.ScheduledAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "visit.reschedule", "visit", id, nil)
	writeJSON(w, http.StatusOK, updated)
}
