package visit

import "time"

// Status of a property visit booking.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Visit is an investor's booking to view a property in person.
type Visit struct {
	ID           string
	PropertyID   string
	InvestorID   string
	ScheduledAt  time.Time
	Status       Status
	Note         string
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTransition reports whether the booking may move between statuses.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusRequested:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}
