package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/services/properties"
)

func (h *handler) createProperty(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ClientID      string  `json:"client_id"`
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		Address       string  `json:"address"`
		City          string  `json:"city"`
		Country       string  `json:"country"`
		Valuation     float64 `json:"valuation"`
		FundingTarget float64 `json:"funding_target"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Properties.Create(r.Context(), properties.CreateParams{
		ClientID:      payload.ClientID,
		Title:         payload.Title,
		Description:   payload.Description,
		Address:       payload.Address,
		City:          payload.City,
		Country:       payload.Country,
		Valuation:     payload.Valuation,
		FundingTarget: payload.FundingTarget,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "property.create", "property", created.ID, map[string]string{"client_id": created.ClientID})
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listProperties(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Properties.List(r.Context(), r.URL.Query().Get("client_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Properties.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updateProperty(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Title         *string  `json:"title"`
		Description   *string  `json:"description"`
		Valuation     *float64 `json:"valuation"`
		FundingTarget *float64 `json:"funding_target"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Properties.Update(r.Context(), id, payload.Title, payload.Description, payload.Valuation, payload.FundingTarget)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "property.update", "property", id, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) transitionProperty(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Properties.Transition(r.Context(), id, property.Status(payload.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "property.transition", "property", id, map[string]string{"status": payload.Status})
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) addPropertyImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		ObjectKey string `json:"object_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Properties.AddImage(r.Context(), id, payload.ObjectKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) attachToken(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	id := mux.Vars(r)["id"]
	var payload struct {
		ContractAddress string  `json:"contract_address"`
		PricePerToken   float64 `json:"price_per_token"`
		ChainID         int64   `json:"chain_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tok, err := h.app.Tokens.Attach(r.Context(), id, payload.ContractAddress, payload.PricePerToken, payload.ChainID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "token.attach", "token", tok.ID, map[string]string{"property_id": id, "contract": tok.ContractAddress})
	writeJSON(w, http.StatusCreated, tok)
}

func (h *handler) getPropertyToken(w http.ResponseWriter, r *http.Request) {
	if h.app.Tokens == nil {
		serviceUnavailable(w, "token")
		return
	}
	tok, err := h.app.Tokens.GetByProperty(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) propertyProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.app.Investments.PropertyProgress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *handler) listPropertyInvestments(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Investments.ListByProperty(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
