package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/storage"
)

// InvestmentStore implementation ----------------------------------------------

func (s *Store) CreateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash := normalizeHash(inv.TxHash); hash != "" {
		if _, exists := s.investmentsByHash[hash]; exists {
			return investment.Investment{}, fmt.Errorf("tx hash %s: %w", hash, storage.ErrConflict)
		}
		inv.TxHash = hash
	}
	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = investment.StatusPending
	}
	s.investments[inv.ID] = inv
	if inv.TxHash != "" {
		s.investmentsByHash[inv.TxHash] = inv.ID
	}
	return inv, nil
}

func (s *Store) UpdateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.investments[inv.ID]
	if !ok {
		return investment.Investment{}, notFound("investment", inv.ID)
	}
	hash := normalizeHash(inv.TxHash)
	switch {
	case hash == "":
		// Clearing the hash frees it for reuse.
		if existing.TxHash != "" {
			delete(s.investmentsByHash, existing.TxHash)
		}
	case hash != existing.TxHash:
		if owner, taken := s.investmentsByHash[hash]; taken && owner != inv.ID {
			return investment.Investment{}, fmt.Errorf("tx hash %s: %w", hash, storage.ErrConflict)
		}
		if existing.TxHash != "" {
			delete(s.investmentsByHash, existing.TxHash)
		}
		s.investmentsByHash[hash] = inv.ID
	}
	inv.TxHash = hash
	inv.InvestorID = existing.InvestorID
	inv.PropertyID = existing.PropertyID
	inv.TokenID = existing.TokenID
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	s.investments[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvestment(_ context.Context, id string) (investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[id]
	if !ok {
		return investment.Investment{}, notFound("investment", id)
	}
	return inv, nil
}

func (s *Store) GetInvestmentByTxHash(_ context.Context, txHash string) (investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.investmentsByHash[normalizeHash(txHash)]
	if !ok {
		return investment.Investment{}, notFound("investment for tx", txHash)
	}
	return s.investments[id], nil
}

func (s *Store) ListInvestments(_ context.Context, investorID string) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []investment.Investment
	for _, inv := range s.investments {
		if investorID == "" || inv.InvestorID == investorID {
			out = append(out, inv)
		}
	}
	sortByCreated(out, func(i investment.Investment) time.Time { return i.CreatedAt })
	return out, nil
}

func (s *Store) ListInvestmentsByProperty(_ context.Context, propertyID string) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []investment.Investment
	for _, inv := range s.investments {
		if inv.PropertyID == propertyID {
			out = append(out, inv)
		}
	}
	sortByCreated(out, func(i investment.Investment) time.Time { return i.CreatedAt })
	return out, nil
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// KYCStore implementation -----------------------------------------------------

func (s *Store) CreateVerification(_ context.Context, v kyc.Verification) (kyc.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ProviderRef != "" {
		if _, exists := s.verificationsByRef[v.ProviderRef]; exists {
			return kyc.Verification{}, fmt.Errorf("provider ref %s: %w", v.ProviderRef, storage.ErrConflict)
		}
	}
	if v.ID == "" {
		v.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = kyc.StatusPending
	}
	s.verifications[v.ID] = v
	if v.ProviderRef != "" {
		s.verificationsByRef[v.ProviderRef] = v.ID
	}
	return v, nil
}

func (s *Store) UpdateVerification(_ context.Context, v kyc.Verification) (kyc.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.verifications[v.ID]
	if !ok {
		return kyc.Verification{}, notFound("verification", v.ID)
	}
	if v.ProviderRef != existing.ProviderRef {
		if existing.ProviderRef != "" {
			delete(s.verificationsByRef, existing.ProviderRef)
		}
		if v.ProviderRef != "" {
			s.verificationsByRef[v.ProviderRef] = v.ID
		}
	}
	v.InvestorID = existing.InvestorID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	s.verifications[v.ID] = v
	return v, nil
}

func (s *Store) GetVerification(_ context.Context, id string) (kyc.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verifications[id]
	if !ok {
		return kyc.Verification{}, notFound("verification", id)
	}
	return v, nil
}

func (s *Store) GetVerificationByProviderRef(_ context.Context, ref string) (kyc.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.verificationsByRef[ref]
	if !ok {
		return kyc.Verification{}, notFound("verification for ref", ref)
	}
	return s.verifications[id], nil
}

func (s *Store) ListVerifications(_ context.Context, investorID string) ([]kyc.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []kyc.Verification
	for _, v := range s.verifications {
		if investorID == "" || v.InvestorID == investorID {
			out = append(out, v)
		}
	}
	sortByCreated(out, func(v kyc.Verification) time.Time { return v.CreatedAt })
	return out, nil
}

func (s *Store) ListExpiring(_ context.Context, before time.Time) ([]kyc.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []kyc.Verification
	for _, v := range s.verifications {
		if v.Status == kyc.StatusApproved && !v.ExpiresAt.IsZero() && v.ExpiresAt.Before(before) {
			out = append(out, v)
		}
	}
	sortByCreated(out, func(v kyc.Verification) time.Time { return v.CreatedAt })
	return out, nil
}

func (s *Store) SeenWebhookEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seenWebhookEventIDs[eventID], nil
}

func (s *Store) MarkWebhookEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenWebhookEventIDs[eventID] = true
	return nil
}
