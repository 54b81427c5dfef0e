package visits

import (
	"context"
	"testing"
	"time"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/visit"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/pkg/logger"
)

type recordingNotifier struct {
	titles []string
}

func (r *recordingNotifier) Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error {
	r.titles = append(r.titles, title)
	return nil
}

func newFixture(t *testing.T) (*Service, *memory.Store, *recordingNotifier, property.Property, investor.Investor) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	c, err := store.CreateClient(ctx, client.Client{UserID: "user-c", CompanyName: "Tower", Registration: "HRB 1", ContactEmail: "x@t.example", Country: "DE"})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	p, err := store.CreateProperty(ctx, property.Property{
		ClientID: c.ID, Title: "Tower One", Valuation: 1000, FundingTarget: 500, Status: property.StatusListed,
	})
	if err != nil {
		t.Fatalf("seed property: %v", err)
	}
	inv, err := store.CreateInvestor(ctx, investor.Investor{UserID: "user-i", Country: "DE"})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}

	notifier := &recordingNotifier{}
	return New(store, store, store, notifier, logger.Nop()), store, notifier, p, inv
}

func TestBookAndConfirm(t *testing.T) {
	svc, _, notifier, p, inv := newFixture(t)
	ctx := context.Background()

	v, err := svc.Book(ctx, p.ID, inv.ID, time.Now().Add(48*time.Hour), "morning preferred")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if v.Status != visit.StatusRequested {
		t.Fatalf("expected requested, got %q", v.Status)
	}

	confirmed, err := svc.Transition(ctx, v.ID, visit.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != visit.StatusConfirmed {
		t.Fatalf("expected confirmed, got %q", confirmed.Status)
	}
	if len(notifier.titles) != 1 || notifier.titles[0] != "Visit confirmed" {
		t.Fatalf("expected confirmation notification, got %v", notifier.titles)
	}
}

func TestBookRejectsPastTime(t *testing.T) {
	svc, _, _, p, inv := newFixture(t)

	if _, err := svc.Book(context.Background(), p.ID, inv.ID, time.Now().Add(-time.Hour), ""); err == nil {
		t.Fatal("expected past time to be rejected")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	svc, _, _, p, inv := newFixture(t)
	ctx := context.Background()

	v, err := svc.Book(ctx, p.ID, inv.ID, time.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.Transition(ctx, v.ID, visit.StatusCompleted); err == nil {
		t.Fatal("expected requested->completed to be rejected")
	}
}

func TestSendReminders(t *testing.T) {
	svc, store, notifier, p, inv := newFixture(t)
	ctx := context.Background()

	soon, err := svc.Book(ctx, p.ID, inv.ID, time.Now().Add(6*time.Hour), "")
	if err != nil {
		t.Fatalf("book soon: %v", err)
	}
	far, err := svc.Book(ctx, p.ID, inv.ID, time.Now().Add(72*time.Hour), "")
	if err != nil {
		t.Fatalf("book far: %v", err)
	}
	if _, err := svc.Transition(ctx, soon.ID, visit.StatusConfirmed); err != nil {
		t.Fatalf("confirm soon: %v", err)
	}
	if _, err := svc.Transition(ctx, far.ID, visit.StatusConfirmed); err != nil {
		t.Fatalf("confirm far: %v", err)
	}
	notifier.titles = nil

	sent, err := svc.SendReminders(ctx, time.Now())
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder inside the window, got %d", sent)
	}
	if len(notifier.titles) != 1 || notifier.titles[0] != "Visit reminder" {
		t.Fatalf("expected reminder notification, got %v", notifier.titles)
	}

	// The reminder is sent once.
	sent, err = svc.SendReminders(ctx, time.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected no repeat reminders, got %d", sent)
	}

	marked, err := store.GetVisit(ctx, soon.ID)
	if err != nil {
		t.Fatalf("get visit: %v", err)
	}
	if !marked.ReminderSent {
		t.Fatal("expected ReminderSent recorded")
	}
}

func TestRescheduleResetsReminder(t *testing.T) {
	svc, store, _, p, inv := newFixture(t)
	ctx := context.Background()

	v, err := svc.Book(ctx, p.ID, inv.ID, time.Now().Add(6*time.Hour), "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.Transition(ctx, v.ID, visit.StatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.SendReminders(ctx, time.Now()); err != nil {
		t.Fatalf("send reminders: %v", err)
	}

	moved, err := svc.Reschedule(ctx, v.ID, time.Now().Add(5*time.Hour))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.ReminderSent {
		t.Fatal("expected reminder reset after reschedule")
	}

	sent, err := svc.SendReminders(ctx, time.Now())
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected reminder re-sent for new time, got %d", sent)
	}

	stored, err := store.GetVisit(ctx, v.ID)
	if err != nil {
		t.Fatalf("get visit: %v", err)
	}
	if !stored.ReminderSent {
		t.Fatal("expected reminder recorded again")
	}
}
