package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/middleware"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

func (h *handler) adminOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.app.Admin.Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *handler) adminHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.app.Admin.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (h *handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}

	events, err := h.app.Audit.List(r.Context(), r.URL.Query().Get("entity"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handler) recentAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.app.Audit.Recent(limit))
}

func (h *handler) listFlags(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Flags.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getFlag(w http.ResponseWriter, r *http.Request) {
	f, err := h.app.Flags.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) upsertFlag(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var payload struct {
		Description    string `json:"description"`
		Enabled        bool   `json:"enabled"`
		RolloutPercent int    `json:"rollout_percent"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := h.app.Flags.Upsert(r.Context(), flag.Flag{
		Key:            key,
		Description:    payload.Description,
		Enabled:        payload.Enabled,
		RolloutPercent: payload.RolloutPercent,
		UpdatedBy:      middleware.GetUserID(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "flag.upsert", "flag", key, map[string]string{
		"enabled": strconv.FormatBool(payload.Enabled),
		"rollout": strconv.Itoa(payload.RolloutPercent),
	})
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) deleteFlag(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.app.Flags.Delete(r.Context(), key); err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "flag.delete", "flag", key, nil)
	w.WriteHeader(http.StatusNoContent)
}

// flagEnabled is the read path every client can hit; the subject defaults to
// the caller so percentage rollouts stay stable per user.
func (h *handler) flagEnabled(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		subject = middleware.GetUserID(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"enabled": h.app.Flags.IsEnabled(r.Context(), key, subject),
	})
}
