package property

import "time"

// Status is the listing lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusListed    Status = "listed"
	StatusFunding   Status = "funding"
	StatusFunded    Status = "funded"
	StatusClosed    Status = "closed"
	StatusWithdrawn Status = "withdrawn"
)

// Property is a real-estate listing offered for tokenized investment.
type Property struct {
	ID            string
	ClientID      string
	Title         string
	Description   string
	Address       string
	City          string
	Country       string
	Valuation     float64
	FundingTarget float64
	FundedAmount  float64
	Status        Status
	TokenID       string
	ImageKeys     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Investable reports whether the property currently accepts investments.
func (p Property) Investable() bool {
	return p.Status == StatusListed || p.Status == StatusFunding
}

// CanTransition reports whether the listing may move from its current status
// to next. Withdrawn is reachable from any pre-funded state.
func (p Property) CanTransition(next Status) bool {
	switch p.Status {
	case StatusDraft:
		return next == StatusListed || next == StatusWithdrawn
	case StatusListed:
		return next == StatusFunding || next == StatusWithdrawn
	case StatusFunding:
		return next == StatusFunded || next == StatusWithdrawn
	case StatusFunded:
		return next == StatusClosed
	}
	return false
}
