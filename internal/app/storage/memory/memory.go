// Package memory implements the storage interfaces with in-process maps. It
// is safe for concurrent use and backs tests and local development; the
// gateway swaps in the Postgres store when DATABASE_URL is configured.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/domain/visit"
	"github.com/brickvault/platform/internal/app/storage"
)

// Store is the in-memory implementation of every storage interface.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[string]user.User
	usersByEmail map[string]string

	investors       map[string]investor.Investor
	investorsByUser map[string]string

	clients       map[string]client.Client
	clientsByUser map[string]string

	properties map[string]property.Property

	tokens           map[string]token.Token
	tokensByProperty map[string]string
	holdings         map[string]token.Holding

	investments       map[string]investment.Investment
	investmentsByHash map[string]string

	verifications       map[string]kyc.Verification
	verificationsByRef  map[string]string
	seenWebhookEventIDs map[string]bool

	documents     map[string]document.Document
	notifications map[string]notification.Notification
	auditEvents   []audit.Event
	flags         map[string]flag.Flag
	visits        map[string]visit.Visit
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.InvestorStore = (*Store)(nil)
var _ storage.ClientStore = (*Store)(nil)
var _ storage.PropertyStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)
var _ storage.KYCStore = (*Store)(nil)
var _ storage.DocumentStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.FlagStore = (*Store)(nil)
var _ storage.VisitStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:              1,
		users:               make(map[string]user.User),
		usersByEmail:        make(map[string]string),
		investors:           make(map[string]investor.Investor),
		investorsByUser:     make(map[string]string),
		clients:             make(map[string]client.Client),
		clientsByUser:       make(map[string]string),
		properties:          make(map[string]property.Property),
		tokens:              make(map[string]token.Token),
		tokensByProperty:    make(map[string]string),
		holdings:            make(map[string]token.Holding),
		investments:         make(map[string]investment.Investment),
		investmentsByHash:   make(map[string]string),
		verifications:       make(map[string]kyc.Verification),
		verificationsByRef:  make(map[string]string),
		seenWebhookEventIDs: make(map[string]bool),
		documents:           make(map[string]document.Document),
		notifications:       make(map[string]notification.Notification),
		flags:               make(map[string]flag.Flag),
		visits:              make(map[string]visit.Visit),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}
	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email != existing.Email {
		if _, taken := s.usersByEmail[email]; taken {
			return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
		}
		delete(s.usersByEmail, existing.Email)
		s.usersByEmail[email] = u.ID
	}
	u.Email = email
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, notFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sortByCreated(out, func(u user.User) time.Time { return u.CreatedAt })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	delete(s.users, id)
	delete(s.usersByEmail, u.Email)
	return nil
}

// InvestorStore implementation ------------------------------------------------

func (s *Store) CreateInvestor(_ context.Context, inv investor.Investor) (investor.Investor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.investorsByUser[inv.UserID]; exists {
		return investor.Investor{}, fmt.Errorf("investor for user %s: %w", inv.UserID, storage.ErrConflict)
	}
	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.KYCStatus == "" {
		inv.KYCStatus = investor.KYCNone
	}
	s.investors[inv.ID] = inv
	s.investorsByUser[inv.UserID] = inv.ID
	return inv, nil
}

func (s *Store) UpdateInvestor(_ context.Context, inv investor.Investor) (investor.Investor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.investors[inv.ID]
	if !ok {
		return investor.Investor{}, notFound("investor", inv.ID)
	}
	inv.UserID = existing.UserID
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	s.investors[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvestor(_ context.Context, id string) (investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investors[id]
	if !ok {
		return investor.Investor{}, notFound("investor", id)
	}
	return inv, nil
}

func (s *Store) GetInvestorByUser(_ context.Context, userID string) (investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.investorsByUser[userID]
	if !ok {
		return investor.Investor{}, notFound("investor for user", userID)
	}
	return s.investors[id], nil
}

func (s *Store) ListInvestors(_ context.Context) ([]investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]investor.Investor, 0, len(s.investors))
	for _, inv := range s.investors {
		out = append(out, inv)
	}
	sortByCreated(out, func(i investor.Investor) time.Time { return i.CreatedAt })
	return out, nil
}

// ClientStore implementation --------------------------------------------------

func (s *Store) CreateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clientsByUser[c.UserID]; exists {
		return client.Client{}, fmt.Errorf("client for user %s: %w", c.UserID, storage.ErrConflict)
	}
	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.clients[c.ID] = c
	s.clientsByUser[c.UserID] = c.ID
	return c, nil
}

func (s *Store) UpdateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[c.ID]
	if !ok {
		return client.Client{}, notFound("client", c.ID)
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return client.Client{}, notFound("client", id)
	}
	return c, nil
}

func (s *Store) GetClientByUser(_ context.Context, userID string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.clientsByUser[userID]
	if !ok {
		return client.Client{}, notFound("client for user", userID)
	}
	return s.clients[id], nil
}

func (s *Store) ListClients(_ context.Context) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]client.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sortByCreated(out, func(c client.Client) time.Time { return c.CreatedAt })
	return out, nil
}
