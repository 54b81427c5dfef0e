package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/storage"
)

func sortByCreated[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).Before(created(items[j]))
	})
}

// PropertyStore implementation ------------------------------------------------

func (s *Store) CreateProperty(_ context.Context, p property.Property) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = property.StatusDraft
	}
	s.properties[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProperty(_ context.Context, p property.Property) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.properties[p.ID]
	if !ok {
		return property.Property{}, notFound("property", p.ID)
	}
	p.ClientID = existing.ClientID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.properties[p.ID] = p
	return p, nil
}

func (s *Store) AddFundedAmount(_ context.Context, id string, amount float64) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return property.Property{}, notFound("property", id)
	}
	if amount > 0 && p.FundedAmount+amount > p.FundingTarget {
		return property.Property{}, fmt.Errorf("funding target exceeded: %w", storage.ErrConflict)
	}
	p.FundedAmount += amount
	if p.FundedAmount < 0 {
		p.FundedAmount = 0
	}
	p.UpdatedAt = time.Now().UTC()
	s.properties[id] = p
	return p, nil
}

func (s *Store) GetProperty(_ context.Context, id string) (property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return property.Property{}, notFound("property", id)
	}
	return p, nil
}

func (s *Store) ListProperties(_ context.Context, clientID string) ([]property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []property.Property
	for _, p := range s.properties {
		if clientID == "" || p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p property.Property) time.Time { return p.CreatedAt })
	return out, nil
}

// TokenStore implementation ---------------------------------------------------

func (s *Store) CreateToken(_ context.Context, t token.Token) (token.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokensByProperty[t.PropertyID]; exists {
		return token.Token{}, fmt.Errorf("token for property %s: %w", t.PropertyID, storage.ErrConflict)
	}
	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tokens[t.ID] = t
	s.tokensByProperty[t.PropertyID] = t.ID
	return t, nil
}

func (s *Store) UpdateToken(_ context.Context, t token.Token) (token.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tokens[t.ID]
	if !ok {
		return token.Token{}, notFound("token", t.ID)
	}
	t.PropertyID = existing.PropertyID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tokens[t.ID] = t
	return t, nil
}

func (s *Store) DeleteToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return notFound("token", id)
	}
	delete(s.tokens, id)
	delete(s.tokensByProperty, t.PropertyID)
	return nil
}

func (s *Store) GetToken(_ context.Context, id string) (token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return token.Token{}, notFound("token", id)
	}
	return t, nil
}

func (s *Store) GetTokenByProperty(_ context.Context, propertyID string) (token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokensByProperty[propertyID]
	if !ok {
		return token.Token{}, notFound("token for property", propertyID)
	}
	return s.tokens[id], nil
}

func (s *Store) ListTokens(_ context.Context) ([]token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]token.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	sortByCreated(out, func(t token.Token) time.Time { return t.CreatedAt })
	return out, nil
}

func (s *Store) UpsertHolding(_ context.Context, h token.Holding) (token.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.holdings {
		if existing.TokenID == h.TokenID && existing.InvestorID == h.InvestorID {
			existing.Wallet = h.Wallet
			existing.Balance = h.Balance
			existing.SyncedAt = h.SyncedAt
			existing.UpdatedAt = now
			s.holdings[id] = existing
			return existing, nil
		}
	}
	if h.ID == "" {
		h.ID = s.nextIDLocked()
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	s.holdings[h.ID] = h
	return h, nil
}

func (s *Store) ListHoldings(_ context.Context, tokenID string) ([]token.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []token.Holding
	for _, h := range s.holdings {
		if h.TokenID == tokenID {
			out = append(out, h)
		}
	}
	sortByCreated(out, func(h token.Holding) time.Time { return h.CreatedAt })
	return out, nil
}

func (s *Store) ListHoldingsByInvestor(_ context.Context, investorID string) ([]token.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []token.Holding
	for _, h := range s.holdings {
		if h.InvestorID == investorID {
			out = append(out, h)
		}
	}
	sortByCreated(out, func(h token.Holding) time.Time { return h.CreatedAt })
	return out, nil
}
