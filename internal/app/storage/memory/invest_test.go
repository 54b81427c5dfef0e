package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/storage"
)

func testHash(seed byte) string {
	return "0x" + strings.Repeat(string([]byte{'a' + seed%6}), 64)
}

func TestUpdateInvestmentHashIndex(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.CreateInvestment(ctx, investment.Investment{InvestorID: "inv-1", PropertyID: "p-1", Amount: 100})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	first.TxHash = testHash(0)
	if first, err = store.UpdateInvestment(ctx, first); err != nil {
		t.Fatalf("set hash: %v", err)
	}

	// The hash is reserved while attached.
	second, err := store.CreateInvestment(ctx, investment.Investment{InvestorID: "inv-2", PropertyID: "p-1", Amount: 50})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	second.TxHash = testHash(0)
	if _, err := store.UpdateInvestment(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict on taken hash, got %v", err)
	}

	// Clearing the hash releases the reservation.
	first.TxHash = ""
	if _, err := store.UpdateInvestment(ctx, first); err != nil {
		t.Fatalf("clear hash: %v", err)
	}
	second.TxHash = testHash(0)
	if _, err := store.UpdateInvestment(ctx, second); err != nil {
		t.Fatalf("expected cleared hash to be reusable, got %v", err)
	}
	if _, err := store.GetInvestmentByTxHash(ctx, testHash(0)); err != nil {
		t.Fatalf("lookup by reused hash: %v", err)
	}
}

func TestAddFundedAmountGuardsTarget(t *testing.T) {
	store := New()
	ctx := context.Background()

	p, err := store.CreateProperty(ctx, property.Property{
		ClientID: "c-1", Title: "Tower", Valuation: 2000, FundingTarget: 1000,
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}

	if _, err := store.AddFundedAmount(ctx, p.ID, 600); err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if _, err := store.AddFundedAmount(ctx, p.ID, 600); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict past target, got %v", err)
	}
	updated, err := store.AddFundedAmount(ctx, p.ID, 400)
	if err != nil {
		t.Fatalf("increment to target: %v", err)
	}
	if updated.FundedAmount != 1000 {
		t.Fatalf("funded amount = %v, want 1000", updated.FundedAmount)
	}

	// Negative adjustments roll progress back and floor at zero.
	rolled, err := store.AddFundedAmount(ctx, p.ID, -2000)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.FundedAmount != 0 {
		t.Fatalf("funded amount = %v, want 0", rolled.FundedAmount)
	}

	if _, err := store.AddFundedAmount(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
