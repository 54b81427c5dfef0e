package properties

import (
	"context"
	"testing"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.Store, client.Client) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, logger.Nop())

	c, err := store.CreateClient(context.Background(), client.Client{
		UserID:       "user-1",
		CompanyName:  "Tower Holdings",
		Registration: "HRB 1234",
		ContactEmail: "ops@tower.example",
		Country:      "DE",
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return svc, store, c
}

func draft(t *testing.T, svc *Service, clientID string) property.Property {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateParams{
		ClientID:      clientID,
		Title:         "Tower One",
		City:          "Berlin",
		Country:       "de",
		Valuation:     2_000_000,
		FundingTarget: 500_000,
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	return p
}

func TestCreateStartsInDraft(t *testing.T) {
	svc, _, c := newTestService(t)

	p := draft(t, svc, c.ID)
	if p.Status != property.StatusDraft {
		t.Fatalf("expected draft, got %q", p.Status)
	}
	if p.Country != "DE" {
		t.Fatalf("expected country upper-cased, got %q", p.Country)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{ClientID: c.ID, Title: "X", Valuation: 100, FundingTarget: 200, Country: "DE"}); err == nil {
		t.Fatal("expected target above valuation to be rejected")
	}
	if _, err := svc.Create(ctx, CreateParams{ClientID: "missing", Title: "X", Valuation: 100, FundingTarget: 50, Country: "DE"}); err == nil {
		t.Fatal("expected unknown client to be rejected")
	}
}

func TestListingRequiresToken(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	p := draft(t, svc, c.ID)

	if _, err := svc.Transition(ctx, p.ID, property.StatusListed); err == nil {
		t.Fatal("expected listing without token to be rejected")
	}

	if _, err := svc.AttachToken(ctx, p.ID, "token-1"); err != nil {
		t.Fatalf("attach token: %v", err)
	}
	listed, err := svc.Transition(ctx, p.ID, property.StatusListed)
	if err != nil {
		t.Fatalf("transition to listed: %v", err)
	}
	if !listed.Investable() {
		t.Fatal("expected listed property to be investable")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	svc, _, c := newTestService(t)
	p := draft(t, svc, c.ID)

	if _, err := svc.Transition(context.Background(), p.ID, property.StatusFunded); err == nil {
		t.Fatal("expected draft->funded to be rejected")
	}
}

func TestFinancialsFrozenAfterListing(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	p := draft(t, svc, c.ID)

	if _, err := svc.AttachToken(ctx, p.ID, "token-1"); err != nil {
		t.Fatalf("attach token: %v", err)
	}
	if _, err := svc.Transition(ctx, p.ID, property.StatusListed); err != nil {
		t.Fatalf("transition: %v", err)
	}

	valuation := 3_000_000.0
	if _, err := svc.Update(ctx, p.ID, nil, nil, &valuation, nil); err == nil {
		t.Fatal("expected valuation change after listing to be rejected")
	}

	title := "Tower One Renamed"
	updated, err := svc.Update(ctx, p.ID, &title, nil, nil, nil)
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("expected title updated, got %q", updated.Title)
	}
}

func TestAddImageDeduplicates(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	p := draft(t, svc, c.ID)

	if _, err := svc.AddImage(ctx, p.ID, "properties/p1/front.jpg"); err != nil {
		t.Fatalf("add image: %v", err)
	}
	updated, err := svc.AddImage(ctx, p.ID, "properties/p1/front.jpg")
	if err != nil {
		t.Fatalf("add image again: %v", err)
	}
	if len(updated.ImageKeys) != 1 {
		t.Fatalf("expected 1 image key, got %d", len(updated.ImageKeys))
	}
}
