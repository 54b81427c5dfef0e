package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/brickvault/platform/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.app.Notifications.List(r.Context(), middleware.GetUserID(r.Context()), unreadOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.Notifications.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if n.UserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, fmt.Errorf("not your notification"))
		return
	}
	updated, err := h.app.Notifications.MarkRead(r.Context(), n.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.app.Notifications.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
}

// streamNotifications upgrades to a WebSocket and pushes the caller's
// notifications as they arrive. The read loop only watches for close frames.
func (h *handler) streamNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := h.app.Notifications.Stream(userID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
