package investments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/pkg/logger"
)

type recordingNotifier struct {
	delivered []notification.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID string, level notification.Level, title, body, ref string) error {
	r.delivered = append(r.delivered, notification.Notification{
		UserID: userID, Level: level, Title: title, Body: body, Ref: ref,
	})
	return nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	notifier *recordingNotifier
	investor investor.Investor
	property property.Property
}

func newFixture(t *testing.T, kycState investor.KYCState) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	c, err := store.CreateClient(ctx, client.Client{UserID: "user-c", CompanyName: "Tower", Registration: "HRB 1", ContactEmail: "x@t.example", Country: "DE"})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	prop, err := store.CreateProperty(ctx, property.Property{
		ClientID: c.ID, Title: "Tower One", Valuation: 2000, FundingTarget: 1000,
		Status: property.StatusFunding,
	})
	if err != nil {
		t.Fatalf("seed property: %v", err)
	}
	tok, err := store.CreateToken(ctx, token.Token{
		PropertyID: prop.ID, ContractAddress: "0x" + strings.Repeat("ab", 20),
		Name: "Tower", Symbol: "TWR", Decimals: 18, TotalSupply: "1000", PricePerToken: 10,
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	prop.TokenID = tok.ID
	if prop, err = store.UpdateProperty(ctx, prop); err != nil {
		t.Fatalf("link token: %v", err)
	}
	inv, err := store.CreateInvestor(ctx, investor.Investor{
		UserID: "user-i", WalletAddress: "0x" + strings.Repeat("cd", 20),
		Country: "DE", KYCStatus: kycState,
	})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}

	notifier := &recordingNotifier{}
	return &fixture{
		svc:      New(store, store, store, store, notifier, logger.Nop()),
		store:    store,
		notifier: notifier,
		investor: inv,
		property: prop,
	}
}

func txHash(seed byte) string {
	return "0x" + strings.Repeat(string([]byte{'a' + seed%6}), 64)
}

func TestCreateComputesTokenUnits(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)

	inv, err := f.svc.Create(context.Background(), f.investor.ID, f.property.ID, 500, "eur")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Status != investment.StatusPending {
		t.Fatalf("expected pending, got %q", inv.Status)
	}
	if inv.TokenUnits != "50" {
		t.Fatalf("expected 50 token units, got %q", inv.TokenUnits)
	}
	if inv.Currency != "EUR" {
		t.Fatalf("expected currency upper-cased, got %q", inv.Currency)
	}
}

func TestCreateRejectsOverFunding(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)

	if _, err := f.svc.Create(context.Background(), f.investor.ID, f.property.ID, 1500, "EUR"); err == nil {
		t.Fatal("expected order above funding target to be rejected")
	}
}

func TestCreateRequiresInvestableProperty(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	f.property.Status = property.StatusDraft
	if _, err := f.store.UpdateProperty(ctx, f.property); err != nil {
		t.Fatalf("update property: %v", err)
	}

	if _, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR"); err == nil {
		t.Fatal("expected draft property to be rejected")
	}
}

func TestSubmitRejectsDuplicateHash(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if _, err := f.svc.Submit(ctx, first.ID, txHash(0)); err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if _, err := f.svc.Submit(ctx, second.ID, txHash(0)); !errors.Is(err, ErrDuplicateTxHash) {
		t.Fatalf("expected ErrDuplicateTxHash, got %v", err)
	}

	// Re-submitting the same hash on the same order is not a duplicate, but
	// the order has already left pending.
	if _, err := f.svc.Submit(ctx, first.ID, txHash(0)); err == nil {
		t.Fatal("expected second submit on processing order to be rejected")
	}
}

func TestSubmitNormalizesAndValidatesHash(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Submit(ctx, inv.ID, "0xZZ"); err == nil {
		t.Fatal("expected malformed hash to be rejected")
	}

	upper := "0x" + strings.Repeat("AB", 32)
	submitted, err := f.svc.Submit(ctx, inv.ID, upper)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.TxHash != strings.ToLower(upper) {
		t.Fatalf("expected lowercased hash, got %q", submitted.TxHash)
	}
}

func TestCompleteRequiresKYC(t *testing.T) {
	f := newFixture(t, investor.KYCPending)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Submit(ctx, inv.ID, txHash(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.Complete(ctx, inv.ID); !errors.Is(err, ErrKYCRequired) {
		t.Fatalf("expected ErrKYCRequired, got %v", err)
	}
}

func TestCompleteUpdatesFundingAndNotifies(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 400, "EUR")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Submit(ctx, inv.ID, txHash(2)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	completed, err := f.svc.Complete(ctx, inv.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.CompletedAt.IsZero() {
		t.Fatal("expected CompletedAt to be stamped")
	}

	prop, err := f.store.GetProperty(ctx, f.property.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if prop.FundedAmount != 400 {
		t.Fatalf("expected funded amount 400, got %v", prop.FundedAmount)
	}
	if prop.Status != property.StatusFunding {
		t.Fatalf("expected property still funding, got %q", prop.Status)
	}

	if len(f.notifier.delivered) != 1 || f.notifier.delivered[0].UserID != f.investor.UserID {
		t.Fatalf("expected one notification to investor, got %+v", f.notifier.delivered)
	}
}

func TestCompletionReachingTargetFundsProperty(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 1000, "EUR")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Submit(ctx, inv.ID, txHash(3)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Complete(ctx, inv.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	prop, err := f.store.GetProperty(ctx, f.property.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if prop.Status != property.StatusFunded {
		t.Fatalf("expected property funded, got %q", prop.Status)
	}
}

func TestConcurrentCompletionsCannotOvershootTarget(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	// Two 600-unit orders against a 1000 target: only one may settle.
	var ids [2]string
	for i := range ids {
		inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 600, "EUR")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if _, err := f.svc.Submit(ctx, inv.ID, txHash(byte(10+i))); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids[i] = inv.ID
	}

	errs := make(chan error, len(ids))
	for _, id := range ids {
		go func(id string) {
			_, err := f.svc.Complete(ctx, id)
			errs <- err
		}(id)
	}
	var failures int
	for range ids {
		if err := <-errs; err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one completion to be rejected, got %d failures", failures)
	}

	prop, err := f.store.GetProperty(ctx, f.property.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if prop.FundedAmount > prop.FundingTarget {
		t.Fatalf("funding overshot target: %v > %v", prop.FundedAmount, prop.FundingTarget)
	}
	if prop.FundedAmount != 600 {
		t.Fatalf("expected funded amount 600, got %v", prop.FundedAmount)
	}

	// The rejected order is untouched and can still fail or retry later.
	var completed, processing int
	for _, id := range ids {
		inv, err := f.svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get investment: %v", err)
		}
		switch inv.Status {
		case investment.StatusCompleted:
			completed++
		case investment.StatusProcessing:
			processing++
		}
	}
	if completed != 1 || processing != 1 {
		t.Fatalf("expected one completed and one processing, got %d/%d", completed, processing)
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := f.svc.Cancel(ctx, inv.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != investment.StatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if _, err := f.svc.Cancel(ctx, inv.ID); err == nil {
		t.Fatal("expected cancel on terminal order to be rejected")
	}
}

func TestPropertyProgress(t *testing.T) {
	f := newFixture(t, investor.KYCApproved)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 250, "EUR")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := f.svc.Submit(ctx, first.ID, txHash(4)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Complete(ctx, first.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.investor.ID, f.property.ID, 100, "EUR"); err != nil {
		t.Fatalf("create second: %v", err)
	}

	progress, err := f.svc.PropertyProgress(ctx, f.property.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.FundedAmount != 250 || progress.Percent != 25 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	if progress.Completed != 1 || progress.Pending != 1 {
		t.Fatalf("unexpected order counts: %+v", progress)
	}
}
