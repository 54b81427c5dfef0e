package kyc

import "time"

// Status of a verification with the external provider.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Verification is one identity check submitted to the KYC provider.
type Verification struct {
	ID          string
	InvestorID  string
	ProviderRef string
	Status      Status
	Reason      string
	DocumentIDs []string
	SubmittedAt time.Time
	DecidedAt   time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WebhookEvent is a decoded provider callback. EventID is used for replay
// detection.
type WebhookEvent struct {
	EventID     string
	ProviderRef string
	Status      Status
	Reason      string
	OccurredAt  time.Time
}

// CanTransition reports whether a verification may move between statuses.
// Approvals can only expire; rejections are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusExpired
	}
	return false
}
