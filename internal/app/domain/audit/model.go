package audit

import "time"

// Event is one append-only audit trail entry.
type Event struct {
	ID         string
	ActorID    string
	ActorRole  string
	Action     string
	Entity     string
	EntityID   string
	Metadata   map[string]string
	RemoteAddr string
	CreatedAt  time.Time
}
