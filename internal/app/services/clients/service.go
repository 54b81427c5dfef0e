// Package clients manages seller organisations.
package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Service manages client organisations.
type Service struct {
	users storage.UserStore
	store storage.ClientStore
	log   *logger.Logger
}

// New constructs a client service.
func New(users storage.UserStore, store storage.ClientStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("clients")
	}
	return &Service{users: users, store: store, log: log}
}

// Create registers a seller organisation owned by an existing user.
func (s *Service) Create(ctx context.Context, userID, companyName, registration, contactEmail, country string) (client.Client, error) {
	userID = strings.TrimSpace(userID)
	companyName = strings.TrimSpace(companyName)
	registration = strings.TrimSpace(registration)
	contactEmail = strings.ToLower(strings.TrimSpace(contactEmail))
	country = strings.ToUpper(strings.TrimSpace(country))

	if userID == "" {
		return client.Client{}, fmt.Errorf("user_id is required")
	}
	if companyName == "" {
		return client.Client{}, fmt.Errorf("company_name is required")
	}
	if registration == "" {
		return client.Client{}, fmt.Errorf("registration is required")
	}
	if contactEmail == "" || !strings.Contains(contactEmail, "@") {
		return client.Client{}, fmt.Errorf("valid contact_email is required")
	}
	if len(country) != 2 {
		return client.Client{}, fmt.Errorf("country must be an ISO 3166-1 alpha-2 code")
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return client.Client{}, fmt.Errorf("user validation failed: %w", err)
	}

	created, err := s.store.CreateClient(ctx, client.Client{
		UserID:       userID,
		CompanyName:  companyName,
		Registration: registration,
		ContactEmail: contactEmail,
		Country:      country,
	})
	if err != nil {
		return client.Client{}, err
	}

	s.log.WithField("client_id", created.ID).
		WithField("user_id", userID).
		Info("client registered")
	return created, nil
}

// Update changes mutable organisation details.
func (s *Service) Update(ctx context.Context, id string, companyName, contactEmail *string) (client.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return client.Client{}, err
	}

	if companyName != nil {
		trimmed := strings.TrimSpace(*companyName)
		if trimmed == "" {
			return client.Client{}, fmt.Errorf("company_name cannot be empty")
		}
		c.CompanyName = trimmed
	}
	if contactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*contactEmail))
		if email == "" || !strings.Contains(email, "@") {
			return client.Client{}, fmt.Errorf("valid contact_email is required")
		}
		c.ContactEmail = email
	}

	updated, err := s.store.UpdateClient(ctx, c)
	if err != nil {
		return client.Client{}, err
	}
	s.log.WithField("client_id", id).Info("client updated")
	return updated, nil
}

// Get returns a single client.
func (s *Service) Get(ctx context.Context, id string) (client.Client, error) {
	return s.store.GetClient(ctx, id)
}

// GetByUser returns the client owned by a user.
func (s *Service) GetByUser(ctx context.Context, userID string) (client.Client, error) {
	return s.store.GetClientByUser(ctx, userID)
}

// List returns all clients.
func (s *Service) List(ctx context.Context) ([]client.Client, error) {
	return s.store.ListClients(ctx)
}
