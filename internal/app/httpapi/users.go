package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/middleware"
)

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Provider string `json:"provider"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	provider := user.Provider(payload.Provider)
	if provider == "" {
		provider = user.ProviderLocal
	}
	created, err := h.app.Users.Create(r.Context(), payload.Email, payload.Name, user.Role(payload.Role), provider)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "user.create", "user", created.ID, map[string]string{"role": string(created.Role)})
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Name   *string `json:"name"`
		Role   *string `json:"role"`
		Active *bool   `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var role *user.Role
	if payload.Role != nil {
		converted := user.Role(*payload.Role)
		role = &converted
	}

	updated, err := h.app.Users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if payload.Name != nil || role != nil {
		updated, err = h.app.Users.Update(r.Context(), id, payload.Name, role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if payload.Active != nil {
		// Admins cannot lock themselves out.
		if !*payload.Active && id == middleware.GetUserID(r.Context()) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("cannot deactivate own account"))
			return
		}
		updated, err = h.app.Users.SetActive(r.Context(), id, *payload.Active)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	h.recordAudit(r, "user.update", "user", id, nil)
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("cannot delete own account"))
		return
	}
	if err := h.app.Users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "user.delete", "user", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
