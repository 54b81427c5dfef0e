package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/storage"
)

type propertyRow struct {
	ID            string    `db:"id"`
	ClientID      string    `db:"client_id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Address       string    `db:"address"`
	City          string    `db:"city"`
	Country       string    `db:"country"`
	Valuation     float64   `db:"valuation"`
	FundingTarget float64   `db:"funding_target"`
	FundedAmount  float64   `db:"funded_amount"`
	Status        string    `db:"status"`
	TokenID       string    `db:"token_id"`
	ImageKeys     []byte    `db:"image_keys"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r propertyRow) toDomain() property.Property {
	p := property.Property{
		ID:            r.ID,
		ClientID:      r.ClientID,
		Title:         r.Title,
		Description:   r.Description,
		Address:       r.Address,
		City:          r.City,
		Country:       r.Country,
		Valuation:     r.Valuation,
		FundingTarget: r.FundingTarget,
		FundedAmount:  r.FundedAmount,
		Status:        property.Status(r.Status),
		TokenID:       r.TokenID,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if len(r.ImageKeys) > 0 {
		_ = json.Unmarshal(r.ImageKeys, &p.ImageKeys)
	}
	return p
}

const propertyColumns = `id, client_id, title, description, address, city, country, valuation, funding_target, funded_amount, status, token_id, image_keys, created_at, updated_at`

func (s *Store) CreateProperty(ctx context.Context, p property.Property) (property.Property, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = property.StatusDraft
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	imagesJSON, err := json.Marshal(keysOrEmpty(p.ImageKeys))
	if err != nil {
		return property.Property{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (id, client_id, title, description, address, city, country, valuation, funding_target, funded_amount, status, token_id, image_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.ClientID, p.Title, p.Description, p.Address, p.City, p.Country, p.Valuation, p.FundingTarget, p.FundedAmount, p.Status, p.TokenID, imagesJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return property.Property{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) UpdateProperty(ctx context.Context, p property.Property) (property.Property, error) {
	existing, err := s.GetProperty(ctx, p.ID)
	if err != nil {
		return property.Property{}, err
	}
	p.ClientID = existing.ClientID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	imagesJSON, err := json.Marshal(keysOrEmpty(p.ImageKeys))
	if err != nil {
		return property.Property{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET title = $2, description = $3, address = $4, city = $5, country = $6, valuation = $7,
		    funding_target = $8, funded_amount = $9, status = $10, token_id = $11, image_keys = $12, updated_at = $13
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.Address, p.City, p.Country, p.Valuation, p.FundingTarget, p.FundedAmount, p.Status, p.TokenID, imagesJSON, p.UpdatedAt)
	if err != nil {
		return property.Property{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return property.Property{}, mapErr(sql.ErrNoRows)
	}
	return p, nil
}

func (s *Store) AddFundedAmount(ctx context.Context, id string, amount float64) (property.Property, error) {
	var row propertyRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE properties
		SET funded_amount = GREATEST(funded_amount + $2, 0), updated_at = $3
		WHERE id = $1 AND ($2 <= 0 OR funded_amount + $2 <= funding_target)
		RETURNING `+propertyColumns+`
	`, id, amount, time.Now().UTC())
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return property.Property{}, mapErr(err)
	}
	// Distinguish a missing row from a guarded increment that lost.
	if _, getErr := s.GetProperty(ctx, id); getErr != nil {
		return property.Property{}, getErr
	}
	return property.Property{}, fmt.Errorf("funding target exceeded: %w", storage.ErrConflict)
}

func (s *Store) GetProperty(ctx context.Context, id string) (property.Property, error) {
	var row propertyRow
	err := s.db.GetContext(ctx, &row, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	if err != nil {
		return property.Property{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListProperties(ctx context.Context, clientID string) ([]property.Property, error) {
	var rows []propertyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+propertyColumns+` FROM properties
		WHERE $1 = '' OR client_id::text = $1
		ORDER BY created_at
	`, clientID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]property.Property, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func keysOrEmpty(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

// --- TokenStore -------------------------------------------------------------

type tokenRow struct {
	ID              string       `db:"id"`
	PropertyID      string       `db:"property_id"`
	ContractAddress string       `db:"contract_address"`
	Name            string       `db:"name"`
	Symbol          string       `db:"symbol"`
	Decimals        uint8        `db:"decimals"`
	TotalSupply     string       `db:"total_supply"`
	PricePerToken   float64      `db:"price_per_token"`
	ChainID         int64        `db:"chain_id"`
	SyncedAt        sql.NullTime `db:"synced_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (r tokenRow) toDomain() token.Token {
	return token.Token{
		ID:              r.ID,
		PropertyID:      r.PropertyID,
		ContractAddress: r.ContractAddress,
		Name:            r.Name,
		Symbol:          r.Symbol,
		Decimals:        r.Decimals,
		TotalSupply:     r.TotalSupply,
		PricePerToken:   r.PricePerToken,
		ChainID:         r.ChainID,
		SyncedAt:        fromNullTime(r.SyncedAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const tokenColumns = `id, property_id, contract_address, name, symbol, decimals, total_supply, price_per_token, chain_id, synced_at, created_at, updated_at`

func (s *Store) CreateToken(ctx context.Context, t token.Token) (token.Token, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, property_id, contract_address, name, symbol, decimals, total_supply, price_per_token, chain_id, synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.PropertyID, t.ContractAddress, t.Name, t.Symbol, t.Decimals, t.TotalSupply, t.PricePerToken, t.ChainID, toNullTime(t.SyncedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return token.Token{}, mapErr(err)
	}
	return t, nil
}

func (s *Store) UpdateToken(ctx context.Context, t token.Token) (token.Token, error) {
	existing, err := s.GetToken(ctx, t.ID)
	if err != nil {
		return token.Token{}, err
	}
	t.PropertyID = existing.PropertyID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tokens
		SET contract_address = $2, name = $3, symbol = $4, decimals = $5, total_supply = $6,
		    price_per_token = $7, chain_id = $8, synced_at = $9, updated_at = $10
		WHERE id = $1
	`, t.ID, t.ContractAddress, t.Name, t.Symbol, t.Decimals, t.TotalSupply, t.PricePerToken, t.ChainID, toNullTime(t.SyncedAt), t.UpdatedAt)
	if err != nil {
		return token.Token{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return token.Token{}, mapErr(sql.ErrNoRows)
	}
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(sql.ErrNoRows)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, id string) (token.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id)
	if err != nil {
		return token.Token{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetTokenByProperty(ctx context.Context, propertyID string) (token.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `SELECT `+tokenColumns+` FROM tokens WHERE property_id = $1`, propertyID)
	if err != nil {
		return token.Token{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Token, error) {
	var rows []tokenRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+tokenColumns+` FROM tokens ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]token.Token, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type holdingRow struct {
	ID         string       `db:"id"`
	TokenID    string       `db:"token_id"`
	InvestorID string       `db:"investor_id"`
	Wallet     string       `db:"wallet"`
	Balance    string       `db:"balance"`
	SyncedAt   sql.NullTime `db:"synced_at"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func (r holdingRow) toDomain() token.Holding {
	return token.Holding{
		ID:         r.ID,
		TokenID:    r.TokenID,
		InvestorID: r.InvestorID,
		Wallet:     r.Wallet,
		Balance:    r.Balance,
		SyncedAt:   fromNullTime(r.SyncedAt),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const holdingColumns = `id, token_id, investor_id, wallet, balance, synced_at, created_at, updated_at`

func (s *Store) UpsertHolding(ctx context.Context, h token.Holding) (token.Holding, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	var row holdingRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO holdings (id, token_id, investor_id, wallet, balance, synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token_id, investor_id) DO UPDATE
		SET wallet = EXCLUDED.wallet, balance = EXCLUDED.balance, synced_at = EXCLUDED.synced_at, updated_at = EXCLUDED.updated_at
		RETURNING `+holdingColumns+`
	`, h.ID, h.TokenID, h.InvestorID, h.Wallet, h.Balance, toNullTime(h.SyncedAt), h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return token.Holding{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListHoldings(ctx context.Context, tokenID string) ([]token.Holding, error) {
	var rows []holdingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+holdingColumns+` FROM holdings WHERE token_id = $1 ORDER BY created_at
	`, tokenID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]token.Holding, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListHoldingsByInvestor(ctx context.Context, investorID string) ([]token.Holding, error) {
	var rows []holdingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+holdingColumns+` FROM holdings WHERE investor_id = $1 ORDER BY created_at
	`, investorID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]token.Holding, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
