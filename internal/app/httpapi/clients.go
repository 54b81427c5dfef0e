package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *handler) createClient(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID       string `json:"user_id"`
		CompanyName  string `json:"company_name"`
		Registration string `json:"registration"`
		ContactEmail string `json:"contact_email"`
		Country      string `json:"country"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Clients.Create(r.Context(), payload.UserID, payload.CompanyName, payload.Registration, payload.ContactEmail, payload.Country)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "client.create", "client", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Clients.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Clients.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		CompanyName  *string `json:"company_name"`
		ContactEmail *string `json:"contact_email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Clients.Update(r.Context(), id, payload.CompanyName, payload.ContactEmail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "client.update", "client", id, nil)
	writeJSON(w, http.StatusOK, updated)
}
