package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/user"
)

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Provider     string    `db:"provider"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Provider:     user.Provider(r.Provider),
		Role:         user.Role(r.Role),
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const userColumns = `id, email, name, password_hash, provider, role, active, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, provider, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Provider, u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, provider = $5, role = $6, active = $7, updated_at = $8
		WHERE id = $1
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Provider, u.Role, u.Active, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, mapErr(sql.ErrNoRows)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(sql.ErrNoRows)
	}
	return nil
}

// --- InvestorStore ----------------------------------------------------------

type investorRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	WalletAddress string    `db:"wallet_address"`
	Country       string    `db:"country"`
	Accredited    bool      `db:"accredited"`
	KYCStatus     string    `db:"kyc_status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r investorRow) toDomain() investor.Investor {
	return investor.Investor{
		ID:            r.ID,
		UserID:        r.UserID,
		WalletAddress: r.WalletAddress,
		Country:       r.Country,
		Accredited:    r.Accredited,
		KYCStatus:     investor.KYCState(r.KYCStatus),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

const investorColumns = `id, user_id, wallet_address, country, accredited, kyc_status, created_at, updated_at`

func (s *Store) CreateInvestor(ctx context.Context, inv investor.Investor) (investor.Investor, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.KYCStatus == "" {
		inv.KYCStatus = investor.KYCNone
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investors (id, user_id, wallet_address, country, accredited, kyc_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID, inv.UserID, inv.WalletAddress, inv.Country, inv.Accredited, inv.KYCStatus, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return investor.Investor{}, mapErr(err)
	}
	return inv, nil
}

func (s *Store) UpdateInvestor(ctx context.Context, inv investor.Investor) (investor.Investor, error) {
	existing, err := s.GetInvestor(ctx, inv.ID)
	if err != nil {
		return investor.Investor{}, err
	}
	inv.UserID = existing.UserID
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE investors
		SET wallet_address = $2, country = $3, accredited = $4, kyc_status = $5, updated_at = $6
		WHERE id = $1
	`, inv.ID, inv.WalletAddress, inv.Country, inv.Accredited, inv.KYCStatus, inv.UpdatedAt)
	if err != nil {
		return investor.Investor{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return investor.Investor{}, mapErr(sql.ErrNoRows)
	}
	return inv, nil
}

func (s *Store) GetInvestor(ctx context.Context, id string) (investor.Investor, error) {
	var row investorRow
	err := s.db.GetContext(ctx, &row, `SELECT `+investorColumns+` FROM investors WHERE id = $1`, id)
	if err != nil {
		return investor.Investor{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetInvestorByUser(ctx context.Context, userID string) (investor.Investor, error) {
	var row investorRow
	err := s.db.GetContext(ctx, &row, `SELECT `+investorColumns+` FROM investors WHERE user_id = $1`, userID)
	if err != nil {
		return investor.Investor{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListInvestors(ctx context.Context) ([]investor.Investor, error) {
	var rows []investorRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+investorColumns+` FROM investors ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]investor.Investor, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- ClientStore ------------------------------------------------------------

type clientRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	CompanyName  string    `db:"company_name"`
	Registration string    `db:"registration"`
	ContactEmail string    `db:"contact_email"`
	Country      string    `db:"country"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r clientRow) toDomain() client.Client {
	return client.Client{
		ID:           r.ID,
		UserID:       r.UserID,
		CompanyName:  r.CompanyName,
		Registration: r.Registration,
		ContactEmail: r.ContactEmail,
		Country:      r.Country,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const clientColumns = `id, user_id, company_name, registration, contact_email, country, created_at, updated_at`

func (s *Store) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, user_id, company_name, registration, contact_email, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.CompanyName, c.Registration, c.ContactEmail, c.Country, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, c client.Client) (client.Client, error) {
	existing, err := s.GetClient(ctx, c.ID)
	if err != nil {
		return client.Client{}, err
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET company_name = $2, registration = $3, contact_email = $4, country = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.CompanyName, c.Registration, c.ContactEmail, c.Country, c.UpdatedAt)
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return client.Client{}, mapErr(sql.ErrNoRows)
	}
	return c, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (client.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetClientByUser(ctx context.Context, userID string) (client.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, `SELECT `+clientColumns+` FROM clients WHERE user_id = $1`, userID)
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListClients(ctx context.Context) ([]client.Client, error) {
	var rows []clientRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+clientColumns+` FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]client.Client, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
