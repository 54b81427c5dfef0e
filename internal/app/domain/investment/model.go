package investment

import "time"

// Status is the investment lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Investment records an investor's purchase of property tokens. TxHash is
// set when the on-chain transfer is submitted and must be unique across the
// platform.
type Investment struct {
	ID          string
	InvestorID  string
	PropertyID  string
	TokenID     string
	Amount      float64
	TokenUnits  string
	Currency    string
	TxHash      string
	Status      Status
	FailureNote string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// CanTransition reports whether the lifecycle allows moving to next.
//
//	pending    -> processing | cancelled
//	processing -> completed  | failed
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
