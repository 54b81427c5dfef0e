// Package properties manages the listing lifecycle.
package properties

import (
	"context"
	"fmt"
	"strings"

	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Service manages property listings.
type Service struct {
	clients storage.ClientStore
	store   storage.PropertyStore
	log     *logger.Logger
}

// New constructs a property service.
func New(clients storage.ClientStore, store storage.PropertyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("properties")
	}
	return &Service{clients: clients, store: store, log: log}
}

// CreateParams are the fields accepted when drafting a listing.
type CreateParams struct {
	ClientID      string
	Title         string
	Description   string
	Address       string
	City          string
	Country       string
	Valuation     float64
	FundingTarget float64
}

// Create drafts a new listing for a client. Listings always start in draft.
func (s *Service) Create(ctx context.Context, p CreateParams) (property.Property, error) {
	p.ClientID = strings.TrimSpace(p.ClientID)
	p.Title = strings.TrimSpace(p.Title)
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))

	if p.ClientID == "" {
		return property.Property{}, fmt.Errorf("client_id is required")
	}
	if p.Title == "" {
		return property.Property{}, fmt.Errorf("title is required")
	}
	if p.Valuation <= 0 {
		return property.Property{}, fmt.Errorf("valuation must be positive")
	}
	if p.FundingTarget <= 0 {
		return property.Property{}, fmt.Errorf("funding_target must be positive")
	}
	if p.FundingTarget > p.Valuation {
		return property.Property{}, fmt.Errorf("funding_target cannot exceed valuation")
	}

	if _, err := s.clients.GetClient(ctx, p.ClientID); err != nil {
		return property.Property{}, fmt.Errorf("client validation failed: %w", err)
	}

	created, err := s.store.CreateProperty(ctx, property.Property{
		ClientID:      p.ClientID,
		Title:         p.Title,
		Description:   strings.TrimSpace(p.Description),
		Address:       strings.TrimSpace(p.Address),
		City:          strings.TrimSpace(p.City),
		Country:       p.Country,
		Valuation:     p.Valuation,
		FundingTarget: p.FundingTarget,
		Status:        property.StatusDraft,
	})
	if err != nil {
		return property.Property{}, err
	}

	s.log.WithField("property_id", created.ID).
		WithField("client_id", p.ClientID).
		Info("property drafted")
	return created, nil
}

// Update changes descriptive fields. Valuation and funding target are frozen
// once the listing leaves draft.
func (s *Service) Update(ctx context.Context, id string, title, description *string, valuation, fundingTarget *float64) (property.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return property.Property{}, fmt.Errorf("title cannot be empty")
		}
		p.Title = trimmed
	}
	if description != nil {
		p.Description = strings.TrimSpace(*description)
	}
	if valuation != nil || fundingTarget != nil {
		if p.Status != property.StatusDraft {
			return property.Property{}, fmt.Errorf("financials are frozen after listing")
		}
		if valuation != nil {
			if *valuation <= 0 {
				return property.Property{}, fmt.Errorf("valuation must be positive")
			}
			p.Valuation = *valuation
		}
		if fundingTarget != nil {
			if *fundingTarget <= 0 {
				return property.Property{}, fmt.Errorf("funding_target must be positive")
			}
			p.FundingTarget = *fundingTarget
		}
		if p.FundingTarget > p.Valuation {
			return property.Property{}, fmt.Errorf("funding_target cannot exceed valuation")
		}
	}

	updated, err := s.store.UpdateProperty(ctx, p)
	if err != nil {
		return property.Property{}, err
	}
	s.log.WithField("property_id", id).Info("property updated")
	return updated, nil
}

// Transition moves a listing through its lifecycle. Listing requires a token
// to be attached first so investors always buy into a live contract.
func (s *Service) Transition(ctx context.Context, id string, next property.Status) (property.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	if !p.CanTransition(next) {
		return property.Property{}, fmt.Errorf("cannot transition property from %s to %s", p.Status, next)
	}
	if next == property.StatusListed && p.TokenID == "" {
		return property.Property{}, fmt.Errorf("property has no token attached")
	}

	p.Status = next
	updated, err := s.store.UpdateProperty(ctx, p)
	if err != nil {
		return property.Property{}, err
	}

	s.log.WithField("property_id", id).
		WithField("status", string(next)).
		Info("property transitioned")
	return updated, nil
}

// AttachToken links the issued token contract to the listing. Called by the
// tokens service.
func (s *Service) AttachToken(ctx context.Context, id, tokenID string) (property.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	if p.TokenID != "" && p.TokenID != tokenID {
		return property.Property{}, fmt.Errorf("property already has token %s", p.TokenID)
	}

	p.TokenID = tokenID
	return s.store.UpdateProperty(ctx, p)
}

// AddImage records an uploaded image object key on the listing.
func (s *Service) AddImage(ctx context.Context, id, objectKey string) (property.Property, error) {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return property.Property{}, fmt.Errorf("object key is required")
	}

	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	for _, key := range p.ImageKeys {
		if key == objectKey {
			return p, nil
		}
	}

	p.ImageKeys = append(p.ImageKeys, objectKey)
	return s.store.UpdateProperty(ctx, p)
}

// Get returns a single listing.
func (s *Service) Get(ctx context.Context, id string) (property.Property, error) {
	return s.store.GetProperty(ctx, id)
}

// List returns listings, optionally filtered to one client.
func (s *Service) List(ctx context.Context, clientID string) ([]property.Property, error) {
	return s.store.ListProperties(ctx, clientID)
}
