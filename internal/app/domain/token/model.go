package token

import "time"

// Token is the ERC-20 contract backing a property. On-chain metadata is
// cached locally and refreshed through the node provider.
type Token struct {
	ID              string
	PropertyID      string
	ContractAddress string
	Name            string
	Symbol          string
	Decimals        uint8
	TotalSupply     string
	PricePerToken   float64
	ChainID         int64
	SyncedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Holding mirrors an investor's on-chain balance of a property token.
type Holding struct {
	ID         string
	TokenID    string
	InvestorID string
	Wallet     string
	Balance    string
	SyncedAt   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
