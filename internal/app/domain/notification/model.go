package notification

import "time"

// Level indicates notification urgency.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelAction  Level = "action"
)

// Notification is a per-user message. Delivered in-app and over the
// WebSocket stream.
type Notification struct {
	ID        string
	UserID    string
	Level     Level
	Title     string
	Body      string
	Ref       string
	Read      bool
	CreatedAt time.Time
	ReadAt    time.Time
}
