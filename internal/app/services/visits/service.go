// Package visits manages property viewing bookings and their reminders.
package visits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/visit"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// ReminderWindow is how far ahead of the visit the reminder goes out.
const ReminderWindow = 24 * time.Hour

// Notifier delivers user notifications; nil disables delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error
}

// Service manages visit bookings.
type Service struct {
	investors  storage.InvestorStore
	properties storage.PropertyStore
	store      storage.VisitStore
	notifier   Notifier
	log        *logger.Logger
}

// New constructs a visit service.
func New(investors storage.InvestorStore, properties storage.PropertyStore, store storage.VisitStore, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("visits")
	}
	return &Service{
		investors:  investors,
		properties: properties,
		store:      store,
		notifier:   notifier,
		log:        log,
	}
}

// Book requests a visit. The scheduled time must be in the future.
func (s *Service) Book(ctx context.Context, propertyID, investorID string, scheduledAt time.Time, note string) (visit.Visit, error) {
	propertyID = strings.TrimSpace(propertyID)
	investorID = strings.TrimSpace(investorID)

	if scheduledAt.IsZero() || !scheduledAt.After(time.Now()) {
		return visit.Visit{}, fmt.Errorf("scheduled_at must be in the future")
	}
	if _, err := s.properties.GetProperty(ctx, propertyID); err != nil {
		return visit.Visit{}, fmt.Errorf("property validation failed: %w", err)
	}
	if _, err := s.investors.GetInvestor(ctx, investorID); err != nil {
		return visit.Visit{}, fmt.Errorf("investor validation failed: %w", err)
	}

	created, err := s.store.CreateVisit(ctx, visit.Visit{
		PropertyID:  propertyID,
		InvestorID:  investorID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      visit.StatusRequested,
		Note:        strings.TrimSpace(note),
	})
	if err != nil {
		return visit.Visit{}, err
	}

	s.log.WithField("visit_id", created.ID).
		WithField("property_id", propertyID).
		Info("visit requested")
	return created, nil
}

// Transition moves a booking through its lifecycle.
func (s *Service) Transition(ctx context.Context, id string, next visit.Status) (visit.Visit, error) {
	v, err := s.store.GetVisit(ctx, id)
	if err != nil {
		return visit.Visit{}, err
	}
	if !visit.CanTransition(v.Status, next) {
		return visit.Visit{}, fmt.Errorf("cannot transition visit from %s to %s", v.Status, next)
	}

	v.Status = next
	updated, err := s.store.UpdateVisit(ctx, v)
	if err != nil {
		return visit.Visit{}, err
	}

	if next == visit.StatusConfirmed {
		if inv, err := s.investors.GetInvestor(ctx, v.InvestorID); err == nil {
			s.notify(ctx, inv.UserID, notification.LevelInfo, "Visit confirmed",
				fmt.Sprintf("Your property visit on %s is confirmed.", v.ScheduledAt.Format("2 Jan 2006 15:04 MST")),
				updated.ID)
		}
	}

	s.log.WithField("visit_id", id).
		WithField("status", string(next)).
		Info("visit transitioned")
	return updated, nil
}

// Reschedule moves a non-terminal booking to a new time and resets its
// reminder.
func (s *Service) Reschedule(ctx context.Context, id string, scheduledAt time.Time) (visit.Visit, error) {
	if scheduledAt.IsZero() || !scheduledAt.After(time.Now()) {
		return visit.Visit{}, fmt.Errorf("scheduled_at must be in the future")
	}

	v, err := s.store.GetVisit(ctx, id)
	if err != nil {
		return visit.Visit{}, err
	}
	if v.Status == visit.StatusCompleted || v.Status == visit.StatusCancelled {
		return visit.Visit{}, fmt.Errorf("cannot reschedule visit in status %s", v.Status)
	}

	v.ScheduledAt = scheduledAt.UTC()
	v.ReminderSent = false
	return s.store.UpdateVisit(ctx, v)
}

// SendReminders notifies investors of confirmed visits inside the reminder
// window. Returns how many reminders went out.
func (s *Service) SendReminders(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListDueReminders(ctx, now.UTC(), now.UTC().Add(ReminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, v := range due {
		inv, err := s.investors.GetInvestor(ctx, v.InvestorID)
		if err != nil {
			s.log.WithError(err).
				WithField("visit_id", v.ID).
				Warn("reminder investor lookup failed")
			continue
		}

		s.notify(ctx, inv.UserID, notification.LevelAction, "Visit reminder",
			fmt.Sprintf("Reminder: your property visit is scheduled for %s.", v.ScheduledAt.Format("2 Jan 2006 15:04 MST")),
			v.ID)

		v.ReminderSent = true
		if _, err := s.store.UpdateVisit(ctx, v); err != nil {
			s.log.WithError(err).
				WithField("visit_id", v.ID).
				Warn("reminder bookkeeping failed")
			continue
		}
		sent++
	}

	if sent > 0 {
		s.log.WithField("count", sent).Info("visit reminders sent")
	}
	return sent, nil
}

// Get returns a single booking.
func (s *Service) Get(ctx context.Context, id string) (visit.Visit, error) {
	return s.store.GetVisit(ctx, id)
}

// List returns bookings filtered by property and/or investor; empty filters
// list everything.
func (s *Service) List(ctx context.Context, propertyID, investorID string) ([]visit.Visit, error) {
	return s.store.ListVisits(ctx, propertyID, investorID)
}

func (s *Service) notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, level, title, body, ref); err != nil {
		s.log.WithError(err).Warn("notification delivery failed")
	}
}
