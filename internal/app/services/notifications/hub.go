package notifications

import (
	"sync"

	"github.com/brickvault/platform/internal/app/domain/notification"
)

const subscriberBuffer = 16

// LocalHub fans notifications out to in-process subscribers. Slow consumers
// drop messages rather than block publishers.
type LocalHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan notification.Notification]struct{}
}

var _ Hub = (*LocalHub)(nil)

// NewLocalHub creates an in-process hub.
func NewLocalHub() *LocalHub {
	return &LocalHub{subs: make(map[string]map[chan notification.Notification]struct{})}
}

// Publish delivers to every subscriber of the notification's user.
func (h *LocalHub) Publish(n notification.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a consumer for one user's notifications.
func (h *LocalHub) Subscribe(userID string) (<-chan notification.Notification, func()) {
	ch := make(chan notification.Notification, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan notification.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
