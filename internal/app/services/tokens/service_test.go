package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/services/properties"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/internal/chain"
	"github.com/brickvault/platform/pkg/logger"
)

type fakeChain struct {
	meta     chain.TokenMetadata
	balances map[string]int64
	failMeta bool
}

func (f *fakeChain) TokenMetadata(ctx context.Context, contract string) (*chain.TokenMetadata, error) {
	if f.failMeta {
		return nil, fmt.Errorf("node unavailable")
	}
	meta := f.meta
	return &meta, nil
}

func (f *fakeChain) BalanceOf(ctx context.Context, contract, holder string) (*big.Int, error) {
	return big.NewInt(f.balances[holder]), nil
}

func contractAddr() string { return "0x" + strings.Repeat("ab", 20) }
func walletAddr() string   { return "0x" + strings.Repeat("cd", 20) }

func newTestService(t *testing.T, reader ChainReader) (*Service, *memory.Store, property.Property) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	c, err := store.CreateClient(ctx, client.Client{UserID: "user-1", CompanyName: "Tower", Registration: "HRB 1", ContactEmail: "x@t.example", Country: "DE"})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	p, err := store.CreateProperty(ctx, property.Property{
		ClientID: c.ID, Title: "Tower One", Valuation: 1000, FundingTarget: 500, Status: property.StatusDraft,
	})
	if err != nil {
		t.Fatalf("seed property: %v", err)
	}
	props := properties.New(store, store, logger.Nop())
	return New(props, store, store, reader, logger.Nop()), store, p
}

func TestAttachReadsContractMetadata(t *testing.T) {
	fake := &fakeChain{meta: chain.TokenMetadata{
		Name: "Tower One Fund", Symbol: "TWR1", Decimals: 18, TotalSupply: big.NewInt(1_000_000),
	}}
	svc, _, p := newTestService(t, fake)

	tok, err := svc.Attach(context.Background(), p.ID, contractAddr(), 10.5, 11155111)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if tok.Symbol != "TWR1" || tok.Decimals != 18 {
		t.Fatalf("unexpected metadata: %+v", tok)
	}
	if tok.TotalSupply != "1000000" {
		t.Fatalf("expected supply 1000000, got %q", tok.TotalSupply)
	}

	// A second token on the same property is rejected.
	if _, err := svc.Attach(context.Background(), p.ID, contractAddr(), 10.5, 11155111); err == nil {
		t.Fatal("expected duplicate attach to be rejected")
	}
}

func TestAttachLinksTokenToProperty(t *testing.T) {
	fake := &fakeChain{meta: chain.TokenMetadata{
		Name: "Tower One Fund", Symbol: "TWR1", Decimals: 18, TotalSupply: big.NewInt(1_000_000),
	}}
	svc, store, p := newTestService(t, fake)
	ctx := context.Background()

	tok, err := svc.Attach(ctx, p.ID, contractAddr(), 10.5, 11155111)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	linked, err := store.GetProperty(ctx, p.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if linked.TokenID != tok.ID {
		t.Fatalf("property token = %q, want %q", linked.TokenID, tok.ID)
	}

	// With the token linked, the listing can leave draft.
	props := properties.New(store, store, logger.Nop())
	listed, err := props.Transition(ctx, p.ID, property.StatusListed)
	if err != nil {
		t.Fatalf("transition to listed: %v", err)
	}
	if listed.Status != property.StatusListed {
		t.Fatalf("status = %q, want listed", listed.Status)
	}
}

func TestAttachRejectsBadInput(t *testing.T) {
	svc, _, p := newTestService(t, &fakeChain{})
	ctx := context.Background()

	if _, err := svc.Attach(ctx, p.ID, "not-an-address", 1, 1); err == nil {
		t.Fatal("expected invalid address to be rejected")
	}
	if _, err := svc.Attach(ctx, p.ID, contractAddr(), 0, 1); err == nil {
		t.Fatal("expected zero price to be rejected")
	}
	if _, err := svc.Attach(ctx, "missing", contractAddr(), 1, 1); err == nil {
		t.Fatal("expected unknown property to be rejected")
	}
}

func TestAttachSurfacesNodeFailure(t *testing.T) {
	svc, _, p := newTestService(t, &fakeChain{failMeta: true})

	if _, err := svc.Attach(context.Background(), p.ID, contractAddr(), 1, 1); err == nil {
		t.Fatal("expected node failure to surface")
	}
}

func TestTrackHoldingAndSync(t *testing.T) {
	fake := &fakeChain{
		meta:     chain.TokenMetadata{Name: "Tower", Symbol: "TWR", Decimals: 18, TotalSupply: big.NewInt(100)},
		balances: map[string]int64{walletAddr(): 250},
	}
	svc, store, p := newTestService(t, fake)
	ctx := context.Background()

	tok, err := svc.Attach(ctx, p.ID, contractAddr(), 1, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	inv, err := store.CreateInvestor(ctx, investor.Investor{
		UserID: "user-2", WalletAddress: walletAddr(), Country: "DE", KYCStatus: investor.KYCApproved,
	})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}

	holding, err := svc.TrackHolding(ctx, tok.ID, inv.ID)
	if err != nil {
		t.Fatalf("track holding: %v", err)
	}
	if holding.Balance != "250" {
		t.Fatalf("expected balance 250, got %q", holding.Balance)
	}

	fake.balances[walletAddr()] = 400
	if _, err := svc.Sync(ctx, tok.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	portfolio, err := svc.Portfolio(ctx, inv.ID)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(portfolio) != 1 || portfolio[0].Balance != "400" {
		t.Fatalf("expected refreshed balance 400, got %+v", portfolio)
	}
}

type submittingChain struct {
	fakeChain
	receipt chain.Receipt
	lastRaw string
	sendErr error
}

func (f *submittingChain) SendRawTransactionAndWait(ctx context.Context, signedTx string, pollInterval, waitTimeout time.Duration) (*chain.Receipt, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.lastRaw = signedTx
	r := f.receipt
	return &r, nil
}

func TestSubmitTransactionRelaysAndResyncs(t *testing.T) {
	fake := &submittingChain{
		fakeChain: fakeChain{meta: chain.TokenMetadata{Name: "T", Symbol: "T", Decimals: 18, TotalSupply: big.NewInt(2_000_000)}},
		receipt:   chain.Receipt{TxHash: "0xabc", Status: "0x1"},
	}
	svc, _, p := newTestService(t, fake)
	ctx := context.Background()

	tok, err := svc.Attach(ctx, p.ID, contractAddr(), 1, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	fake.meta.TotalSupply = big.NewInt(3_000_000)
	receipt, err := svc.SubmitTransaction(ctx, tok.ID, "0xsignedmint")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !receipt.Succeeded() {
		t.Fatalf("expected mined receipt, got %+v", receipt)
	}
	if fake.lastRaw != "0xsignedmint" {
		t.Fatalf("raw tx not relayed, got %q", fake.lastRaw)
	}

	// The successful submission refreshed the supply.
	refreshed, err := svc.Get(ctx, tok.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if refreshed.TotalSupply != "3000000" {
		t.Fatalf("expected resynced supply, got %q", refreshed.TotalSupply)
	}
}

func TestSubmitTransactionRejectsBadInput(t *testing.T) {
	fake := &submittingChain{
		fakeChain: fakeChain{meta: chain.TokenMetadata{Name: "T", Symbol: "T", TotalSupply: big.NewInt(1)}},
	}
	svc, _, p := newTestService(t, fake)
	ctx := context.Background()

	tok, err := svc.Attach(ctx, p.ID, contractAddr(), 1, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := svc.SubmitTransaction(ctx, tok.ID, "not-hex"); err == nil {
		t.Fatal("expected unprefixed payload to be rejected")
	}
	if _, err := svc.SubmitTransaction(ctx, "missing", "0xdead"); err == nil {
		t.Fatal("expected unknown token to be rejected")
	}

	// A read-only chain client cannot submit.
	readOnly, _, p2 := newTestService(t, &fakeChain{meta: chain.TokenMetadata{Name: "T", Symbol: "T", TotalSupply: big.NewInt(1)}})
	tok2, err := readOnly.Attach(ctx, p2.ID, contractAddr(), 1, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := readOnly.SubmitTransaction(ctx, tok2.ID, "0xdead"); err == nil {
		t.Fatal("expected read-only client to be rejected")
	}
}

func TestTrackHoldingRequiresWallet(t *testing.T) {
	fake := &fakeChain{meta: chain.TokenMetadata{Name: "T", Symbol: "T", Decimals: 0, TotalSupply: big.NewInt(1)}}
	svc, store, p := newTestService(t, fake)
	ctx := context.Background()

	tok, err := svc.Attach(ctx, p.ID, contractAddr(), 1, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	inv, err := store.CreateInvestor(ctx, investor.Investor{UserID: "user-3", Country: "DE"})
	if err != nil {
		t.Fatalf("seed investor: %v", err)
	}

	if _, err := svc.TrackHolding(ctx, tok.ID, inv.ID); err == nil {
		t.Fatal("expected missing wallet to be rejected")
	}
}
