package investor

import "time"

// KYCState mirrors the latest verification outcome for quick authorization
// checks without joining the kyc tables.
type KYCState string

const (
	KYCNone     KYCState = "none"
	KYCPending  KYCState = "pending"
	KYCApproved KYCState = "approved"
	KYCRejected KYCState = "rejected"
	KYCExpired  KYCState = "expired"
)

// Investor is the investment-side profile of a user.
type Investor struct {
	ID            string
	UserID        string
	WalletAddress string
	Country       string
	Accredited    bool
	KYCStatus     KYCState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
