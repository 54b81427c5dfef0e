// Package tokens manages ERC-20 token records and the holdings ledger
// mirrored from chain state.
package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/internal/chain"
	"github.com/brickvault/platform/pkg/logger"
)

// ChainReader is the chain access the service needs. Satisfied by
// *chain.Client.
type ChainReader interface {
	TokenMetadata(ctx context.Context, contract string) (*chain.TokenMetadata, error)
	BalanceOf(ctx context.Context, contract, holder string) (*big.Int, error)
}

// Properties is the listing access the service needs. Satisfied by
// *properties.Service.
type Properties interface {
	Get(ctx context.Context, id string) (property.Property, error)
	AttachToken(ctx context.Context, id, tokenID string) (property.Property, error)
}

// ChainSubmitter broadcasts signed transactions. *chain.Client implements it;
// readers that cannot submit simply don't.
type ChainSubmitter interface {
	SendRawTransactionAndWait(ctx context.Context, signedTx string, pollInterval, waitTimeout time.Duration) (*chain.Receipt, error)
}

// Service manages token records.
type Service struct {
	properties Properties
	investors  storage.InvestorStore
	store      storage.TokenStore
	reader     ChainReader
	log        *logger.Logger
}

// New constructs a token service.
func New(properties Properties, investors storage.InvestorStore, store storage.TokenStore, reader ChainReader, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tokens")
	}
	return &Service{
		properties: properties,
		investors:  investors,
		store:      store,
		reader:     reader,
		log:        log,
	}
}

// Attach registers a deployed contract as the token backing a property and
// pulls its metadata from the node. One token per property.
func (s *Service) Attach(ctx context.Context, propertyID, contractAddress string, pricePerToken float64, chainID int64) (token.Token, error) {
	propertyID = strings.TrimSpace(propertyID)
	contractAddress = strings.ToLower(strings.TrimSpace(contractAddress))

	if propertyID == "" {
		return token.Token{}, fmt.Errorf("property_id is required")
	}
	if !chain.ValidAddress(contractAddress) {
		return token.Token{}, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	if pricePerToken <= 0 {
		return token.Token{}, fmt.Errorf("price_per_token must be positive")
	}

	if _, err := s.properties.Get(ctx, propertyID); err != nil {
		return token.Token{}, fmt.Errorf("property validation failed: %w", err)
	}
	if existing, err := s.store.GetTokenByProperty(ctx, propertyID); err == nil {
		return token.Token{}, fmt.Errorf("property already backed by token %s", existing.ID)
	}

	meta, err := s.reader.TokenMetadata(ctx, contractAddress)
	if err != nil {
		return token.Token{}, fmt.Errorf("read contract metadata: %w", err)
	}

	created, err := s.store.CreateToken(ctx, token.Token{
		PropertyID:      propertyID,
		ContractAddress: contractAddress,
		Name:            meta.Name,
		Symbol:          meta.Symbol,
		Decimals:        meta.Decimals,
		TotalSupply:     meta.TotalSupply.String(),
		PricePerToken:   pricePerToken,
		ChainID:         chainID,
		SyncedAt:        time.Now().UTC(),
	})
	if err != nil {
		return token.Token{}, err
	}

	// Link the token back onto the listing so it can be moved to listed.
	if _, err := s.properties.AttachToken(ctx, propertyID, created.ID); err != nil {
		if delErr := s.store.DeleteToken(ctx, created.ID); delErr != nil {
			s.log.WithError(delErr).
				WithField("token_id", created.ID).
				Warn("orphaned token cleanup failed")
		}
		return token.Token{}, fmt.Errorf("link token to property: %w", err)
	}

	s.log.WithField("token_id", created.ID).
		WithField("property_id", propertyID).
		WithField("symbol", created.Symbol).
		Info("token attached")
	return created, nil
}

// Sync refreshes contract metadata and the balances of every tracked holder.
func (s *Service) Sync(ctx context.Context, tokenID string) (token.Token, error) {
	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return token.Token{}, err
	}

	meta, err := s.reader.TokenMetadata(ctx, tok.ContractAddress)
	if err != nil {
		return token.Token{}, fmt.Errorf("read contract metadata: %w", err)
	}
	tok.Name = meta.Name
	tok.Symbol = meta.Symbol
	tok.Decimals = meta.Decimals
	tok.TotalSupply = meta.TotalSupply.String()
	tok.SyncedAt = time.Now().UTC()

	tok, err = s.store.UpdateToken(ctx, tok)
	if err != nil {
		return token.Token{}, err
	}

	holdings, err := s.store.ListHoldings(ctx, tok.ID)
	if err != nil {
		return token.Token{}, err
	}
	for _, h := range holdings {
		if h.Wallet == "" {
			continue
		}
		balance, err := s.reader.BalanceOf(ctx, tok.ContractAddress, h.Wallet)
		if err != nil {
			s.log.WithError(err).
				WithField("token_id", tok.ID).
				WithField("wallet", h.Wallet).
				Warn("holding balance refresh failed")
			continue
		}
		h.Balance = balance.String()
		h.SyncedAt = time.Now().UTC()
		if _, err := s.store.UpsertHolding(ctx, h); err != nil {
			s.log.WithError(err).
				WithField("token_id", tok.ID).
				Warn("holding upsert failed")
		}
	}

	s.log.WithField("token_id", tok.ID).
		WithField("holders", len(holdings)).
		Info("token synced")
	return tok, nil
}

// TrackHolding starts mirroring an investor's balance of a token. The
// balance is read immediately and kept fresh by the sync runner.
func (s *Service) TrackHolding(ctx context.Context, tokenID, investorID string) (token.Holding, error) {
	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return token.Holding{}, err
	}
	inv, err := s.investors.GetInvestor(ctx, investorID)
	if err != nil {
		return token.Holding{}, fmt.Errorf("investor validation failed: %w", err)
	}
	if inv.WalletAddress == "" {
		return token.Holding{}, fmt.Errorf("investor has no wallet address")
	}

	holding := token.Holding{
		TokenID:    tokenID,
		InvestorID: investorID,
		Wallet:     inv.WalletAddress,
		Balance:    "0",
	}
	if balance, err := s.reader.BalanceOf(ctx, tok.ContractAddress, inv.WalletAddress); err == nil {
		holding.Balance = balance.String()
		holding.SyncedAt = time.Now().UTC()
	} else {
		s.log.WithError(err).
			WithField("token_id", tokenID).
			Warn("initial balance read failed")
	}

	return s.store.UpsertHolding(ctx, holding)
}

// SubmitTransaction broadcasts a pre-signed mint or transfer transaction for
// a token's contract and waits for the receipt. Signing happens at the node
// provider; the platform only relays the raw payload. A mined receipt
// triggers a metadata and balance resync so supply changes land immediately.
func (s *Service) SubmitTransaction(ctx context.Context, tokenID, signedTx string) (*chain.Receipt, error) {
	signedTx = strings.TrimSpace(signedTx)
	if signedTx == "" || !strings.HasPrefix(signedTx, "0x") {
		return nil, fmt.Errorf("signed_tx must be a 0x-prefixed raw transaction")
	}

	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	submitter, ok := s.reader.(ChainSubmitter)
	if !ok {
		return nil, fmt.Errorf("node provider does not support transaction submission")
	}

	receipt, err := submitter.SendRawTransactionAndWait(ctx, signedTx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("submit transaction: %w", err)
	}

	s.log.WithField("token_id", tok.ID).
		WithField("tx_hash", receipt.TxHash).
		WithField("succeeded", receipt.Succeeded()).
		Info("token transaction submitted")

	if receipt.Succeeded() {
		if _, err := s.Sync(ctx, tok.ID); err != nil {
			s.log.WithError(err).
				WithField("token_id", tok.ID).
				Warn("post-submission sync failed")
		}
	}
	return receipt, nil
}

// Get returns a single token.
func (s *Service) Get(ctx context.Context, id string) (token.Token, error) {
	return s.store.GetToken(ctx, id)
}

// GetByProperty returns the token backing a property.
func (s *Service) GetByProperty(ctx context.Context, propertyID string) (token.Token, error) {
	return s.store.GetTokenByProperty(ctx, propertyID)
}

// List returns all tokens.
func (s *Service) List(ctx context.Context) ([]token.Token, error) {
	return s.store.ListTokens(ctx)
}

// Holdings returns the tracked holders of a token.
func (s *Service) Holdings(ctx context.Context, tokenID string) ([]token.Holding, error) {
	return s.store.ListHoldings(ctx, tokenID)
}

// Portfolio returns an investor's tracked holdings across all tokens.
func (s *Service) Portfolio(ctx context.Context, investorID string) ([]token.Holding, error) {
	return s.store.ListHoldingsByInvestor(ctx, investorID)
}
