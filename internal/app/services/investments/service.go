// Package investments implements the investment transaction lifecycle:
// pending orders, on-chain submission, completion with funding progress,
// and failure/cancellation paths.
package investments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// ErrDuplicateTxHash is returned when a transaction hash is already attached
// to another investment.
var ErrDuplicateTxHash = errors.New("transaction hash already recorded")

// ErrKYCRequired is returned when the investor is not KYC approved.
var ErrKYCRequired = errors.New("investor KYC approval required")

var txHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// Notifier delivers user notifications. Satisfied by the notifications
// service; nil disables delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error
}

// Service manages investments.
type Service struct {
	investors  storage.InvestorStore
	properties storage.PropertyStore
	tokens     storage.TokenStore
	store      storage.InvestmentStore
	notifier   Notifier
	log        *logger.Logger
}

// New constructs an investment service.
func New(investors storage.InvestorStore, properties storage.PropertyStore, tokens storage.TokenStore, store storage.InvestmentStore, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("investments")
	}
	return &Service{
		investors:  investors,
		properties: properties,
		tokens:     tokens,
		store:      store,
		notifier:   notifier,
		log:        log,
	}
}

// Create opens a pending investment order. The property must currently
// accept investments and the order must fit under the funding target.
func (s *Service) Create(ctx context.Context, investorID, propertyID string, amount float64, currency string) (investment.Investment, error) {
	investorID = strings.TrimSpace(investorID)
	propertyID = strings.TrimSpace(propertyID)
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if amount <= 0 {
		return investment.Investment{}, fmt.Errorf("amount must be positive")
	}
	if currency == "" {
		currency = "EUR"
	}

	if _, err := s.investors.GetInvestor(ctx, investorID); err != nil {
		return investment.Investment{}, fmt.Errorf("investor validation failed: %w", err)
	}

	prop, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("property validation failed: %w", err)
	}
	if !prop.Investable() {
		return investment.Investment{}, fmt.Errorf("property %s does not accept investments in status %s", propertyID, prop.Status)
	}
	if prop.FundedAmount+amount > prop.FundingTarget {
		remaining := prop.FundingTarget - prop.FundedAmount
		return investment.Investment{}, fmt.Errorf("amount exceeds remaining funding capacity %.2f", remaining)
	}

	tok, err := s.tokens.GetTokenByProperty(ctx, propertyID)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("property has no token: %w", err)
	}

	created, err := s.store.CreateInvestment(ctx, investment.Investment{
		InvestorID: investorID,
		PropertyID: propertyID,
		TokenID:    tok.ID,
		Amount:     amount,
		TokenUnits: strconv.FormatFloat(amount/tok.PricePerToken, 'f', -1, 64),
		Currency:   currency,
		Status:     investment.StatusPending,
	})
	if err != nil {
		return investment.Investment{}, err
	}

	s.log.WithField("investment_id", created.ID).
		WithField("property_id", propertyID).
		WithField("amount", amount).
		Info("investment created")
	return created, nil
}

// Submit attaches the on-chain transfer hash and moves the order to
// processing. A hash may appear on at most one investment platform-wide.
func (s *Service) Submit(ctx context.Context, id, txHash string) (investment.Investment, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))
	if !txHashPattern.MatchString(txHash) {
		return investment.Investment{}, fmt.Errorf("malformed transaction hash %q", txHash)
	}

	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return investment.Investment{}, err
	}
	if !investment.CanTransition(inv.Status, investment.StatusProcessing) {
		return investment.Investment{}, fmt.Errorf("cannot submit investment in status %s", inv.Status)
	}

	if existing, err := s.store.GetInvestmentByTxHash(ctx, txHash); err == nil && existing.ID != id {
		return investment.Investment{}, ErrDuplicateTxHash
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return investment.Investment{}, err
	}

	inv.TxHash = txHash
	inv.Status = investment.StatusProcessing
	updated, err := s.store.UpdateInvestment(ctx, inv)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return investment.Investment{}, ErrDuplicateTxHash
		}
		return investment.Investment{}, err
	}

	s.log.WithField("investment_id", id).
		WithField("tx_hash", txHash).
		Info("investment submitted")
	return updated, nil
}

// Complete settles a processing investment: the investor must hold a current
// KYC approval and the transfer hash must be recorded. The completed amount
// is added to the property's funding progress; the order that reaches the
// target moves the property to funded.
func (s *Service) Complete(ctx context.Context, id string) (investment.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return investment.Investment{}, err
	}
	if !investment.CanTransition(inv.Status, investment.StatusCompleted) {
		return investment.Investment{}, fmt.Errorf("cannot complete investment in status %s", inv.Status)
	}
	if inv.TxHash == "" {
		return investment.Investment{}, fmt.Errorf("investment has no transaction hash")
	}

	holder, err := s.investors.GetInvestor(ctx, inv.InvestorID)
	if err != nil {
		return investment.Investment{}, err
	}
	if holder.KYCStatus != investor.KYCApproved {
		return investment.Investment{}, ErrKYCRequired
	}

	// The increment is guarded at the store so concurrent completions
	// cannot overshoot the funding target, and it lands before the status
	// flip so a completed investment is always counted.
	prop, err := s.properties.AddFundedAmount(ctx, inv.PropertyID, inv.Amount)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return investment.Investment{}, fmt.Errorf("completion would exceed funding target")
		}
		return investment.Investment{}, err
	}

	inv.Status = investment.StatusCompleted
	inv.CompletedAt = time.Now().UTC()
	updated, err := s.store.UpdateInvestment(ctx, inv)
	if err != nil {
		if _, rbErr := s.properties.AddFundedAmount(ctx, inv.PropertyID, -inv.Amount); rbErr != nil {
			s.log.WithError(rbErr).
				WithField("property_id", inv.PropertyID).
				Warn("funding progress rollback failed")
		}
		return investment.Investment{}, err
	}

	if prop.FundedAmount >= prop.FundingTarget && prop.CanTransition(property.StatusFunded) {
		prop.Status = property.StatusFunded
		if _, err := s.properties.UpdateProperty(ctx, prop); err != nil {
			s.log.WithError(err).
				WithField("property_id", prop.ID).
				Warn("funded status flip failed")
		}
	}

	s.notify(ctx, holder.UserID, notification.LevelInfo, "Investment completed",
		fmt.Sprintf("Your investment of %.2f %s in %s is complete.", inv.Amount, inv.Currency, prop.Title),
		updated.ID)

	s.log.WithField("investment_id", id).
		WithField("property_id", prop.ID).
		WithField("funded_amount", prop.FundedAmount).
		Info("investment completed")
	return updated, nil
}

// Fail marks a processing investment as failed with an operator note.
func (s *Service) Fail(ctx context.Context, id, note string) (investment.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return investment.Investment{}, err
	}
	if !investment.CanTransition(inv.Status, investment.StatusFailed) {
		return investment.Investment{}, fmt.Errorf("cannot fail investment in status %s", inv.Status)
	}

	inv.Status = investment.StatusFailed
	inv.FailureNote = strings.TrimSpace(note)
	updated, err := s.store.UpdateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, err
	}

	if holder, err := s.investors.GetInvestor(ctx, inv.InvestorID); err == nil {
		s.notify(ctx, holder.UserID, notification.LevelWarning, "Investment failed",
			fmt.Sprintf("Your investment of %.2f %s could not be settled.", inv.Amount, inv.Currency),
			updated.ID)
	}

	s.log.WithField("investment_id", id).
		WithField("note", inv.FailureNote).
		Warn("investment failed")
	return updated, nil
}

// Cancel withdraws a pending order before submission.
func (s *Service) Cancel(ctx context.Context, id string) (investment.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return investment.Investment{}, err
	}
	if !investment.CanTransition(inv.Status, investment.StatusCancelled) {
		return investment.Investment{}, fmt.Errorf("cannot cancel investment in status %s", inv.Status)
	}

	inv.Status = investment.StatusCancelled
	updated, err := s.store.UpdateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, err
	}
	s.log.WithField("investment_id", id).Info("investment cancelled")
	return updated, nil
}

// Progress summarises a property's funding state.
type Progress struct {
	PropertyID    string
	FundingTarget float64
	FundedAmount  float64
	Percent       float64
	Completed     int
	Pending       int
}

// PropertyProgress returns funding progress from the property record plus
// counts of live orders.
func (s *Service) PropertyProgress(ctx context.Context, propertyID string) (Progress, error) {
	prop, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return Progress{}, err
	}

	invs, err := s.store.ListInvestmentsByProperty(ctx, propertyID)
	if err != nil {
		return Progress{}, err
	}

	progress := Progress{
		PropertyID:    propertyID,
		FundingTarget: prop.FundingTarget,
		FundedAmount:  prop.FundedAmount,
	}
	if prop.FundingTarget > 0 {
		progress.Percent = 100 * prop.FundedAmount / prop.FundingTarget
	}
	for _, inv := range invs {
		switch inv.Status {
		case investment.StatusCompleted:
			progress.Completed++
		case investment.StatusPending, investment.StatusProcessing:
			progress.Pending++
		}
	}
	return progress, nil
}

// Get returns a single investment.
func (s *Service) Get(ctx context.Context, id string) (investment.Investment, error) {
	return s.store.GetInvestment(ctx, id)
}

// List returns an investor's investments; empty investorID lists everything.
func (s *Service) List(ctx context.Context, investorID string) ([]investment.Investment, error) {
	return s.store.ListInvestments(ctx, investorID)
}

// ListByProperty returns the investments into one property.
func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]investment.Investment, error) {
	return s.store.ListInvestmentsByProperty(ctx, propertyID)
}

func (s *Service) notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, level, title, body, ref); err != nil {
		s.log.WithError(err).Warn("notification delivery failed")
	}
}
