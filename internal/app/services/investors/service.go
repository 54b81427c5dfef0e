// Package investors manages investor profiles.
package investors

import (
	"context"
	"fmt"
	"strings"

	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/internal/chain"
	"github.com/brickvault/platform/pkg/logger"
)

// Service manages investor profiles.
type Service struct {
	users storage.UserStore
	store storage.InvestorStore
	log   *logger.Logger
}

// New constructs an investor service.
func New(users storage.UserStore, store storage.InvestorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("investors")
	}
	return &Service{users: users, store: store, log: log}
}

// Create opens an investor profile for an existing user. One profile per
// user; the store rejects duplicates.
func (s *Service) Create(ctx context.Context, userID, walletAddress, country string, accredited bool) (investor.Investor, error) {
	userID = strings.TrimSpace(userID)
	walletAddress = strings.ToLower(strings.TrimSpace(walletAddress))
	country = strings.ToUpper(strings.TrimSpace(country))

	if userID == "" {
		return investor.Investor{}, fmt.Errorf("user_id is required")
	}
	if walletAddress != "" && !chain.ValidAddress(walletAddress) {
		return investor.Investor{}, fmt.Errorf("invalid wallet address %q", walletAddress)
	}
	if len(country) != 2 {
		return investor.Investor{}, fmt.Errorf("country must be an ISO 3166-1 alpha-2 code")
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return investor.Investor{}, fmt.Errorf("user validation failed: %w", err)
	}

	created, err := s.store.CreateInvestor(ctx, investor.Investor{
		UserID:        userID,
		WalletAddress: walletAddress,
		Country:       country,
		Accredited:    accredited,
		KYCStatus:     investor.KYCNone,
	})
	if err != nil {
		return investor.Investor{}, err
	}

	s.log.WithField("investor_id", created.ID).
		WithField("user_id", userID).
		Info("investor profile created")
	return created, nil
}

// Update changes wallet and accreditation. Country is immutable once set
// because verifications are bound to it.
func (s *Service) Update(ctx context.Context, id string, walletAddress *string, accredited *bool) (investor.Investor, error) {
	inv, err := s.store.GetInvestor(ctx, id)
	if err != nil {
		return investor.Investor{}, err
	}

	if walletAddress != nil {
		addr := strings.ToLower(strings.TrimSpace(*walletAddress))
		if addr != "" && !chain.ValidAddress(addr) {
			return investor.Investor{}, fmt.Errorf("invalid wallet address %q", addr)
		}
		inv.WalletAddress = addr
	}
	if accredited != nil {
		inv.Accredited = *accredited
	}

	updated, err := s.store.UpdateInvestor(ctx, inv)
	if err != nil {
		return investor.Investor{}, err
	}
	s.log.WithField("investor_id", id).Info("investor profile updated")
	return updated, nil
}

// SetKYCStatus mirrors a verification outcome onto the profile. Called by
// the kyc service, not exposed over the API.
func (s *Service) SetKYCStatus(ctx context.Context, id string, state investor.KYCState) (investor.Investor, error) {
	inv, err := s.store.GetInvestor(ctx, id)
	if err != nil {
		return investor.Investor{}, err
	}
	if inv.KYCStatus == state {
		return inv, nil
	}

	inv.KYCStatus = state
	updated, err := s.store.UpdateInvestor(ctx, inv)
	if err != nil {
		return investor.Investor{}, err
	}
	s.log.WithField("investor_id", id).
		WithField("kyc_status", string(state)).
		Info("investor kyc status updated")
	return updated, nil
}

// Get returns a single investor profile.
func (s *Service) Get(ctx context.Context, id string) (investor.Investor, error) {
	return s.store.GetInvestor(ctx, id)
}

// GetByUser returns the profile owned by a user.
func (s *Service) GetByUser(ctx context.Context, userID string) (investor.Investor, error) {
	return s.store.GetInvestorByUser(ctx, userID)
}

// List returns all investor profiles.
func (s *Service) List(ctx context.Context) ([]investor.Investor, error) {
	return s.store.ListInvestors(ctx)
}
