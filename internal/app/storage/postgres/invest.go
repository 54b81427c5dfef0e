package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/kyc"
)

type investmentRow struct {
	ID          string       `db:"id"`
	InvestorID  string       `db:"investor_id"`
	PropertyID  string       `db:"property_id"`
	TokenID     string       `db:"token_id"`
	Amount      float64      `db:"amount"`
	TokenUnits  string       `db:"token_units"`
	Currency    string       `db:"currency"`
	TxHash      string       `db:"tx_hash"`
	Status      string       `db:"status"`
	FailureNote string       `db:"failure_note"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r investmentRow) toDomain() investment.Investment {
	return investment.Investment{
		ID:          r.ID,
		InvestorID:  r.InvestorID,
		PropertyID:  r.PropertyID,
		TokenID:     r.TokenID,
		Amount:      r.Amount,
		TokenUnits:  r.TokenUnits,
		Currency:    r.Currency,
		TxHash:      r.TxHash,
		Status:      investment.Status(r.Status),
		FailureNote: r.FailureNote,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		CompletedAt: fromNullTime(r.CompletedAt),
	}
}

const investmentColumns = `id, investor_id, property_id, token_id, amount, token_units, currency, COALESCE(tx_hash, '') AS tx_hash, status, failure_note, created_at, updated_at, completed_at`

func (s *Store) CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = investment.StatusPending
	}
	inv.TxHash = strings.ToLower(strings.TrimSpace(inv.TxHash))
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, investor_id, property_id, token_id, amount, token_units, currency, tx_hash, status, failure_note, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, inv.ID, inv.InvestorID, inv.PropertyID, inv.TokenID, inv.Amount, inv.TokenUnits, inv.Currency, inv.TxHash, inv.Status, inv.FailureNote, inv.CreatedAt, inv.UpdatedAt, toNullTime(inv.CompletedAt))
	if err != nil {
		return investment.Investment{}, mapErr(err)
	}
	return inv, nil
}

func (s *Store) UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	existing, err := s.GetInvestment(ctx, inv.ID)
	if err != nil {
		return investment.Investment{}, err
	}
	inv.InvestorID = existing.InvestorID
	inv.PropertyID = existing.PropertyID
	inv.TokenID = existing.TokenID
	inv.TxHash = strings.ToLower(strings.TrimSpace(inv.TxHash))
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE investments
		SET amount = $2, token_units = $3, currency = $4, tx_hash = $5, status = $6, failure_note = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`, inv.ID, inv.Amount, inv.TokenUnits, inv.Currency, inv.TxHash, inv.Status, inv.FailureNote, inv.UpdatedAt, toNullTime(inv.CompletedAt))
	if err != nil {
		return investment.Investment{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return investment.Investment{}, mapErr(sql.ErrNoRows)
	}
	return inv, nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (investment.Investment, error) {
	var row investmentRow
	err := s.db.GetContext(ctx, &row, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id)
	if err != nil {
		return investment.Investment{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetInvestmentByTxHash(ctx context.Context, txHash string) (investment.Investment, error) {
	var row investmentRow
	err := s.db.GetContext(ctx, &row, `SELECT `+investmentColumns+` FROM investments WHERE tx_hash = $1`,
		strings.ToLower(strings.TrimSpace(txHash)))
	if err != nil {
		return investment.Investment{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListInvestments(ctx context.Context, investorID string) ([]investment.Investment, error) {
	var rows []investmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+` FROM investments
		WHERE $1 = '' OR investor_id::text = $1
		ORDER BY created_at
	`, investorID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]investment.Investment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListInvestmentsByProperty(ctx context.Context, propertyID string) ([]investment.Investment, error) {
	var rows []investmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+` FROM investments WHERE property_id = $1 ORDER BY created_at
	`, propertyID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]investment.Investment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- KYCStore ---------------------------------------------------------------

type verificationRow struct {
	ID          string       `db:"id"`
	InvestorID  string       `db:"investor_id"`
	ProviderRef string       `db:"provider_ref"`
	Status      string       `db:"status"`
	Reason      string       `db:"reason"`
	DocumentIDs []byte       `db:"document_ids"`
	SubmittedAt sql.NullTime `db:"submitted_at"`
	DecidedAt   sql.NullTime `db:"decided_at"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func (r verificationRow) toDomain() kyc.Verification {
	v := kyc.Verification{
		ID:          r.ID,
		InvestorID:  r.InvestorID,
		ProviderRef: r.ProviderRef,
		Status:      kyc.Status(r.Status),
		Reason:      r.Reason,
		SubmittedAt: fromNullTime(r.SubmittedAt),
		DecidedAt:   fromNullTime(r.DecidedAt),
		ExpiresAt:   fromNullTime(r.ExpiresAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if len(r.DocumentIDs) > 0 {
		_ = json.Unmarshal(r.DocumentIDs, &v.DocumentIDs)
	}
	return v
}

const verificationColumns = `id, investor_id, provider_ref, status, reason, document_ids, submitted_at, decided_at, expires_at, created_at, updated_at`

func (s *Store) CreateVerification(ctx context.Context, v kyc.Verification) (kyc.Verification, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = kyc.StatusPending
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	docsJSON, err := json.Marshal(keysOrEmpty(v.DocumentIDs))
	if err != nil {
		return kyc.Verification{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kyc_verifications (id, investor_id, provider_ref, status, reason, document_ids, submitted_at, decided_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, v.ID, v.InvestorID, v.ProviderRef, v.Status, v.Reason, docsJSON, toNullTime(v.SubmittedAt), toNullTime(v.DecidedAt), toNullTime(v.ExpiresAt), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return kyc.Verification{}, mapErr(err)
	}
	return v, nil
}

func (s *Store) UpdateVerification(ctx context.Context, v kyc.Verification) (kyc.Verification, error) {
	existing, err := s.GetVerification(ctx, v.ID)
	if err != nil {
		return kyc.Verification{}, err
	}
	v.InvestorID = existing.InvestorID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()

	docsJSON, err := json.Marshal(keysOrEmpty(v.DocumentIDs))
	if err != nil {
		return kyc.Verification{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE kyc_verifications
		SET provider_ref = $2, status = $3, reason = $4, document_ids = $5, submitted_at = $6, decided_at = $7, expires_at = $8, updated_at = $9
		WHERE id = $1
	`, v.ID, v.ProviderRef, v.Status, v.Reason, docsJSON, toNullTime(v.SubmittedAt), toNullTime(v.DecidedAt), toNullTime(v.ExpiresAt), v.UpdatedAt)
	if err != nil {
		return kyc.Verification{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return kyc.Verification{}, mapErr(sql.ErrNoRows)
	}
	return v, nil
}

func (s *Store) GetVerification(ctx context.Context, id string) (kyc.Verification, error) {
	var row verificationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+verificationColumns+` FROM kyc_verifications WHERE id = $1`, id)
	if err != nil {
		return kyc.Verification{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetVerificationByProviderRef(ctx context.Context, ref string) (kyc.Verification, error) {
	var row verificationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+verificationColumns+` FROM kyc_verifications WHERE provider_ref = $1`, ref)
	if err != nil {
		return kyc.Verification{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListVerifications(ctx context.Context, investorID string) ([]kyc.Verification, error) {
	var rows []verificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+verificationColumns+` FROM kyc_verifications
		WHERE $1 = '' OR investor_id::text = $1
		ORDER BY created_at
	`, investorID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]kyc.Verification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListExpiring(ctx context.Context, before time.Time) ([]kyc.Verification, error) {
	var rows []verificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+verificationColumns+` FROM kyc_verifications
		WHERE status = 'approved' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY created_at
	`, before.UTC())
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]kyc.Verification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) SeenWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM kyc_webhook_events WHERE event_id = $1`, eventID)
	if err != nil {
		return false, mapErr(err)
	}
	return count > 0, nil
}

func (s *Store) MarkWebhookEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kyc_webhook_events (event_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, time.Now().UTC())
	return mapErr(err)
}
