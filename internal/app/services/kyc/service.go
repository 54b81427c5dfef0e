// Package kyc manages identity verifications: submission to the external
// provider, webhook-driven decisions, and approval expiry.
package kyc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/pkg/logger"
)

// DefaultApprovalValidity is how long an approval lasts when the provider
// does not supply an expiry.
const DefaultApprovalValidity = 365 * 24 * time.Hour

// Provider is the external verification vendor. Satisfied by
// *kycprovider.Client.
type Provider interface {
	StartCheck(ctx context.Context, applicantID, country string) (kycprovider.Check, error)
	GetCheck(ctx context.Context, ref string) (kycprovider.Check, error)
}

// Notifier delivers user notifications; nil disables delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error
}

// Service manages verifications.
type Service struct {
	investors storage.InvestorStore
	store     storage.KYCStore
	provider  Provider
	notifier  Notifier
	log       *logger.Logger
}

// New constructs a KYC service.
func New(investors storage.InvestorStore, store storage.KYCStore, provider Provider, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("kyc")
	}
	return &Service{
		investors: investors,
		store:     store,
		provider:  provider,
		notifier:  notifier,
		log:       log,
	}
}

// Submit opens a verification with the provider for an investor. Only one
// verification may be in flight per investor.
func (s *Service) Submit(ctx context.Context, investorID string, documentIDs []string) (kyc.Verification, error) {
	investorID = strings.TrimSpace(investorID)
	if investorID == "" {
		return kyc.Verification{}, fmt.Errorf("investor_id is required")
	}
	if len(documentIDs) == 0 {
		return kyc.Verification{}, fmt.Errorf("at least one document is required")
	}

	inv, err := s.investors.GetInvestor(ctx, investorID)
	if err != nil {
		return kyc.Verification{}, fmt.Errorf("investor validation failed: %w", err)
	}

	open, err := s.store.ListVerifications(ctx, investorID)
	if err != nil {
		return kyc.Verification{}, err
	}
	for _, v := range open {
		if v.Status == kyc.StatusPending {
			return kyc.Verification{}, fmt.Errorf("verification %s is already in progress", v.ID)
		}
	}

	check, err := s.provider.StartCheck(ctx, investorID, inv.Country)
	if err != nil {
		return kyc.Verification{}, fmt.Errorf("start provider check: %w", err)
	}

	created, err := s.store.CreateVerification(ctx, kyc.Verification{
		InvestorID:  investorID,
		ProviderRef: check.Ref,
		Status:      kyc.StatusPending,
		DocumentIDs: documentIDs,
		SubmittedAt: time.Now().UTC(),
		ExpiresAt:   check.ExpiresAt,
	})
	if err != nil {
		return kyc.Verification{}, err
	}

	if _, err := s.mirrorInvestor(ctx, inv.ID, investor.KYCPending); err != nil {
		return kyc.Verification{}, err
	}

	s.log.WithField("verification_id", created.ID).
		WithField("investor_id", investorID).
		WithField("provider_ref", check.Ref).
		Info("verification submitted")
	return created, nil
}

// HandleWebhook applies a provider decision. Replayed event IDs are
// idempotent no-ops; decisions on unknown references are errors.
func (s *Service) HandleWebhook(ctx context.Context, ev kyc.WebhookEvent) error {
	seen, err := s.store.SeenWebhookEvent(ctx, ev.EventID)
	if err != nil {
		return err
	}
	if seen {
		s.log.WithField("event_id", ev.EventID).Debug("webhook replay ignored")
		return nil
	}

	v, err := s.store.GetVerificationByProviderRef(ctx, ev.ProviderRef)
	if err != nil {
		return fmt.Errorf("unknown provider reference %q: %w", ev.ProviderRef, err)
	}

	// Interim provider states carry no decision; record the event so a
	// replay stays cheap.
	if ev.Status == kyc.StatusPending {
		return s.store.MarkWebhookEvent(ctx, ev.EventID)
	}

	if !kyc.CanTransition(v.Status, ev.Status) {
		return fmt.Errorf("cannot transition verification from %s to %s", v.Status, ev.Status)
	}

	v.Status = ev.Status
	v.Reason = ev.Reason
	v.DecidedAt = ev.OccurredAt
	if ev.Status == kyc.StatusApproved && v.ExpiresAt.IsZero() {
		v.ExpiresAt = time.Now().UTC().Add(DefaultApprovalValidity)
	}
	if _, err := s.store.UpdateVerification(ctx, v); err != nil {
		return err
	}

	state := investor.KYCApproved
	title := "Identity verified"
	body := "Your identity verification was approved. You can now complete investments."
	level := notification.LevelInfo
	if ev.Status == kyc.StatusRejected {
		state = investor.KYCRejected
		title = "Identity verification rejected"
		body = "Your identity verification was rejected."
		if ev.Reason != "" {
			body = fmt.Sprintf("Your identity verification was rejected: %s.", ev.Reason)
		}
		level = notification.LevelWarning
	}

	inv, err := s.mirrorInvestor(ctx, v.InvestorID, state)
	if err != nil {
		return err
	}
	s.notify(ctx, inv.UserID, level, title, body, v.ID)

	if err := s.store.MarkWebhookEvent(ctx, ev.EventID); err != nil {
		return err
	}

	s.log.WithField("verification_id", v.ID).
		WithField("status", string(ev.Status)).
		Info("verification decided")
	return nil
}

// ExpireApprovals moves approvals past their expiry to expired and mirrors
// the change onto the investors. Returns how many were expired.
func (s *Service) ExpireApprovals(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpiring(ctx, now.UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, v := range due {
		if !kyc.CanTransition(v.Status, kyc.StatusExpired) {
			continue
		}
		v.Status = kyc.StatusExpired
		if _, err := s.store.UpdateVerification(ctx, v); err != nil {
			s.log.WithError(err).
				WithField("verification_id", v.ID).
				Warn("verification expiry failed")
			continue
		}

		inv, err := s.mirrorInvestor(ctx, v.InvestorID, investor.KYCExpired)
		if err != nil {
			s.log.WithError(err).
				WithField("investor_id", v.InvestorID).
				Warn("investor kyc mirror failed")
			continue
		}
		s.notify(ctx, inv.UserID, notification.LevelAction, "Identity verification expired",
			"Your identity verification has expired. Re-verify to keep investing.", v.ID)
		expired++
	}

	if expired > 0 {
		s.log.WithField("count", expired).Info("approvals expired")
	}
	return expired, nil
}

// Get returns a single verification.
func (s *Service) Get(ctx context.Context, id string) (kyc.Verification, error) {
	return s.store.GetVerification(ctx, id)
}

// List returns an investor's verifications; empty investorID lists all.
func (s *Service) List(ctx context.Context, investorID string) ([]kyc.Verification, error) {
	return s.store.ListVerifications(ctx, investorID)
}

func (s *Service) mirrorInvestor(ctx context.Context, investorID string, state investor.KYCState) (investor.Investor, error) {
	inv, err := s.investors.GetInvestor(ctx, investorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return investor.Investor{}, fmt.Errorf("investor %s not found", investorID)
		}
		return investor.Investor{}, err
	}
	if inv.KYCStatus == state {
		return inv, nil
	}
	inv.KYCStatus = state
	return s.investors.UpdateInvestor(ctx, inv)
}

func (s *Service) notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, level, title, body, ref); err != nil {
		s.log.WithError(err).Warn("notification delivery failed")
	}
}
