package user

import "time"

// Role controls what a user may do through the API.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleInvestor Role = "investor"
	RoleClient   Role = "client"
)

// Provider identifies how a user authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderAzure  Provider = "azure"
)

// User is a platform login identity. PasswordHash is empty for OAuth users.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Provider     Provider
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleInvestor, RoleClient:
		return true
	}
	return false
}
