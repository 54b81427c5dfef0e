package client

import "time"

// Client is a property-owning organisation that lists properties on the
// platform.
type Client struct {
	ID           string
	UserID       string
	CompanyName  string
	Registration string
	ContactEmail string
	Country      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
