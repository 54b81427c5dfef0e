package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/services/documents"
	"github.com/brickvault/platform/internal/middleware"
)

func (h *handler) requireDocumentAccess(w http.ResponseWriter, r *http.Request, id string) (document.Document, bool) {
	doc, err := h.app.Documents.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return document.Document{}, false
	}
	if !isStaff(middleware.GetUserRole(r.Context())) && doc.OwnerUserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, fmt.Errorf("not your document"))
		return document.Document{}, false
	}
	return doc, true
}

// uploadDocument accepts a multipart form with a "file" part plus kind and
// entity_id fields.
func (h *handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.app.Documents == nil {
		serviceUnavailable(w, "document")
		return
	}

	if err := r.ParseMultipartForm(documents.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file part is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	doc, err := h.app.Documents.Upload(
		r.Context(),
		middleware.GetUserID(r.Context()),
		r.FormValue("entity_id"),
		document.Kind(r.FormValue("kind")),
		header.Filename,
		contentType,
		file,
		header.Size,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "document.upload", "document", doc.ID, map[string]string{"kind": string(doc.Kind)})
	writeJSON(w, http.StatusCreated, doc)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	if h.app.Documents == nil {
		serviceUnavailable(w, "document")
		return
	}

	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		if !isStaff(middleware.GetUserRole(r.Context())) {
			writeError(w, http.StatusForbidden, fmt.Errorf("staff role required"))
			return
		}
		list, err := h.app.Documents.ListByEntity(r.Context(), entityID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	list, err := h.app.Documents.ListByOwner(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	if h.app.Documents == nil {
		serviceUnavailable(w, "document")
		return
	}
	doc, ok := h.requireDocumentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if h.app.Documents == nil {
		serviceUnavailable(w, "document")
		return
	}
	doc, ok := h.requireDocumentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := h.app.Documents.Delete(r.Context(), doc.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	h.recordAudit(r, "document.delete", "document", doc.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) documentURL(w http.ResponseWriter, r *http.Request) {
	if h.app.Documents == nil {
		serviceUnavailable(w, "document")
		return
	}
	doc, ok := h.requireDocumentAccess(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	expiry := time.Duration(0)
	if raw := r.URL.Query().Get("expiry"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("expiry must be a duration"))
			return
		}
		expiry = parsed
	}

	url, err := h.app.Documents.DownloadURL(r.Context(), doc.ID, expiry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
