package kyc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/pkg/logger"
)

type fakeProvider struct {
	nextRef string
	started int
	fail    bool
}

func (f *fakeProvider) StartCheck(ctx context.Context, applicantID, country string) (kycprovider.Check, error) {
	if f.fail {
		return kycprovider.Check{}, fmt.Errorf("provider unavailable")
	}
	f.started++
	return kycprovider.Check{Ref: f.nextRef, Status: kyc.StatusPending}, nil
}

func (f *fakeProvider) GetCheck(ctx context.Context, ref string) (kycprovider.Check, error) {
	return kycprovider.Check{Ref: ref, Status: kyc.StatusPending}, nil
}

type recordingNotifier struct {
	delivered []string
}

func (r *recordingNotifier) Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error {
	r.delivered = append(r.delivered, title)
	return nil
}

func newFixture(t *testing.T) (*Service, *memory.Store, *fakeProvider, *recordingNotifier, investor.Investor) {
	t.Helper()
	store := memory.New()

	inv, err := store.CreateInvestor(context.Background(), investor.Investor{
		UserID: "user-1", Country: "DE", KYCStatus: investor.KYCNone,
	})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}

	provider := &fakeProvider{nextRef: "chk_1"}
	notifier := &recordingNotifier{}
	return New(store, store, provider, notifier, logger.Nop()), store, provider, notifier, inv
}

func submit(t *testing.T, svc *Service, investorID string) kyc.Verification {
	t.Helper()
	v, err := svc.Submit(context.Background(), investorID, []string{"doc-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return v
}

func TestSubmitOpensProviderCheck(t *testing.T) {
	svc, store, provider, _, inv := newFixture(t)
	ctx := context.Background()

	v := submit(t, svc, inv.ID)
	if v.ProviderRef != "chk_1" {
		t.Fatalf("expected provider ref chk_1, got %q", v.ProviderRef)
	}
	if provider.started != 1 {
		t.Fatalf("expected one provider check, got %d", provider.started)
	}

	mirrored, err := store.GetInvestor(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get investor: %v", err)
	}
	if mirrored.KYCStatus != investor.KYCPending {
		t.Fatalf("expected investor pending, got %q", mirrored.KYCStatus)
	}

	// A second submission while one is pending is rejected.
	if _, err := svc.Submit(ctx, inv.ID, []string{"doc-2"}); err == nil {
		t.Fatal("expected concurrent submission to be rejected")
	}
}

func TestWebhookApproves(t *testing.T) {
	svc, store, _, notifier, inv := newFixture(t)
	ctx := context.Background()
	v := submit(t, svc, inv.ID)

	err := svc.HandleWebhook(ctx, kyc.WebhookEvent{
		EventID: "evt_1", ProviderRef: v.ProviderRef,
		Status: kyc.StatusApproved, OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	decided, err := store.GetVerification(ctx, v.ID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if decided.Status != kyc.StatusApproved {
		t.Fatalf("expected approved, got %q", decided.Status)
	}
	if decided.ExpiresAt.IsZero() {
		t.Fatal("expected default expiry to be stamped")
	}

	mirrored, err := store.GetInvestor(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get investor: %v", err)
	}
	if mirrored.KYCStatus != investor.KYCApproved {
		t.Fatalf("expected investor approved, got %q", mirrored.KYCStatus)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.delivered))
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	svc, _, _, notifier, inv := newFixture(t)
	ctx := context.Background()
	v := submit(t, svc, inv.ID)

	ev := kyc.WebhookEvent{
		EventID: "evt_1", ProviderRef: v.ProviderRef,
		Status: kyc.StatusApproved, OccurredAt: time.Now().UTC(),
	}
	if err := svc.HandleWebhook(ctx, ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleWebhook(ctx, ev); err != nil {
		t.Fatalf("replay should be a no-op, got %v", err)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.delivered))
	}
}

func TestWebhookRejectsUnknownRef(t *testing.T) {
	svc, _, _, _, _ := newFixture(t)

	err := svc.HandleWebhook(context.Background(), kyc.WebhookEvent{
		EventID: "evt_x", ProviderRef: "chk_unknown", Status: kyc.StatusApproved,
	})
	if err == nil {
		t.Fatal("expected unknown reference to be rejected")
	}
}

func TestWebhookRejectsDecisionOnDecided(t *testing.T) {
	svc, _, _, _, inv := newFixture(t)
	ctx := context.Background()
	v := submit(t, svc, inv.ID)

	if err := svc.HandleWebhook(ctx, kyc.WebhookEvent{
		EventID: "evt_1", ProviderRef: v.ProviderRef, Status: kyc.StatusRejected,
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// A later, different event trying to approve a rejected verification is
	// an invalid transition, not a replay.
	err := svc.HandleWebhook(ctx, kyc.WebhookEvent{
		EventID: "evt_2", ProviderRef: v.ProviderRef, Status: kyc.StatusApproved,
	})
	if err == nil {
		t.Fatal("expected invalid transition to be rejected")
	}
}

func TestExpireApprovals(t *testing.T) {
	svc, store, _, notifier, inv := newFixture(t)
	ctx := context.Background()
	v := submit(t, svc, inv.ID)

	if err := svc.HandleWebhook(ctx, kyc.WebhookEvent{
		EventID: "evt_1", ProviderRef: v.ProviderRef, Status: kyc.StatusApproved,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Nothing is due yet.
	n, err := svc.ExpireApprovals(ctx, time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing expired, got %d", n)
	}

	n, err = svc.ExpireApprovals(ctx, time.Now().Add(2*DefaultApprovalValidity))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expiry, got %d", n)
	}

	mirrored, err := store.GetInvestor(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get investor: %v", err)
	}
	if mirrored.KYCStatus != investor.KYCExpired {
		t.Fatalf("expected investor expired, got %q", mirrored.KYCStatus)
	}
	if len(notifier.delivered) != 2 {
		t.Fatalf("expected approval and expiry notifications, got %d", len(notifier.delivered))
	}
}
