package admin

import (
	"context"
	"testing"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/pkg/logger"
)

func TestOverview(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, store, store, logger.Nop())
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Email: "a@x.example", Name: "A", Role: user.RoleAdmin, Active: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	inv, err := store.CreateInvestor(ctx, investor.Investor{UserID: "u-1", Country: "DE", KYCStatus: investor.KYCApproved})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}
	c, err := store.CreateClient(ctx, client.Client{UserID: "u-2", CompanyName: "T", Registration: "R", ContactEmail: "t@x.example", Country: "DE"})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	p, err := store.CreateProperty(ctx, property.Property{
		ClientID: c.ID, Title: "P1", Valuation: 1000, FundingTarget: 500, FundedAmount: 200,
		Status: property.StatusFunding,
	})
	if err != nil {
		t.Fatalf("seed property: %v", err)
	}
	if _, err := store.CreateInvestment(ctx, investment.Investment{
		InvestorID: inv.ID, PropertyID: p.ID, Amount: 200, Currency: "EUR",
		Status: investment.StatusCompleted,
	}); err != nil {
		t.Fatalf("seed investment: %v", err)
	}
	if _, err := store.CreateInvestment(ctx, investment.Investment{
		InvestorID: inv.ID, PropertyID: p.ID, Amount: 50, Currency: "EUR",
		Status: investment.StatusPending,
	}); err != nil {
		t.Fatalf("seed pending investment: %v", err)
	}
	if _, err := store.CreateVerification(ctx, kyc.Verification{
		InvestorID: inv.ID, ProviderRef: "chk_1", Status: kyc.StatusApproved,
	}); err != nil {
		t.Fatalf("seed verification: %v", err)
	}

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if overview.Users != 1 || overview.Investors != 1 || overview.Clients != 1 {
		t.Fatalf("unexpected counts: %+v", overview)
	}
	if overview.PropertiesByStatus["funding"] != 1 {
		t.Fatalf("unexpected property breakdown: %v", overview.PropertiesByStatus)
	}
	if overview.InvestmentVolume != 200 {
		t.Fatalf("expected completed volume 200, got %v", overview.InvestmentVolume)
	}
	if overview.InvestmentsByState["pending"] != 1 || overview.InvestmentsByState["completed"] != 1 {
		t.Fatalf("unexpected investment breakdown: %v", overview.InvestmentsByState)
	}
	if overview.KYCFunnel["approved"] != 1 || overview.KYCFunnel["rejected"] != 0 {
		t.Fatalf("unexpected funnel: %v", overview.KYCFunnel)
	}
	if overview.TotalFundedAmount != 200 || overview.TotalFundingTarget != 500 {
		t.Fatalf("unexpected funding totals: %+v", overview)
	}
}

func TestHealthSamplesHost(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, store, store, logger.Nop())

	health, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Goroutines <= 0 {
		t.Fatalf("expected goroutine count, got %d", health.Goroutines)
	}
	if health.CollectedAt.IsZero() {
		t.Fatal("expected sample timestamp")
	}
}
