package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// TokenMetadata is the on-chain state of an ERC-20 contract the platform
// mirrors into its token records.
type TokenMetadata struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// selector returns the 4-byte ABI selector for a function signature.
func selector(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil)[:4])
}

// padAddress left-pads an address to a 32-byte ABI word.
func padAddress(addr string) string {
	return strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

// TokenMetadata reads name, symbol, decimals and totalSupply from an ERC-20
// contract.
func (c *Client) TokenMetadata(ctx context.Context, contract string) (*TokenMetadata, error) {
	if !ValidAddress(contract) {
		return nil, fmt.Errorf("invalid contract address %q", contract)
	}

	name, err := c.callString(ctx, contract, "name()")
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	symbol, err := c.callString(ctx, contract, "symbol()")
	if err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	decimals, err := c.callUint(ctx, contract, "decimals()")
	if err != nil {
		return nil, fmt.Errorf("read decimals: %w", err)
	}
	if decimals.Cmp(big.NewInt(255)) > 0 {
		return nil, fmt.Errorf("decimals out of range: %s", decimals)
	}
	supply, err := c.callUint(ctx, contract, "totalSupply()")
	if err != nil {
		return nil, fmt.Errorf("read totalSupply: %w", err)
	}

	return &TokenMetadata{
		Name:        name,
		Symbol:      symbol,
		Decimals:    uint8(decimals.Uint64()),
		TotalSupply: supply,
	}, nil
}

// BalanceOf reads the token balance of holder in base units.
func (c *Client) BalanceOf(ctx context.Context, contract, holder string) (*big.Int, error) {
	if !ValidAddress(contract) {
		return nil, fmt.Errorf("invalid contract address %q", contract)
	}
	if !ValidAddress(holder) {
		return nil, fmt.Errorf("invalid holder address %q", holder)
	}

	data := selector("balanceOf(address)") + padAddress(holder)
	out, err := c.EthCall(ctx, contract, data)
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

func (c *Client) callUint(ctx context.Context, contract, signature string) (*big.Int, error) {
	out, err := c.EthCall(ctx, contract, selector(signature))
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

func (c *Client) callString(ctx context.Context, contract, signature string) (string, error) {
	out, err := c.EthCall(ctx, contract, selector(signature))
	if err != nil {
		return "", err
	}
	return decodeString(out)
}

// decodeUint decodes a single ABI uint256 return value.
func decodeUint(out string) (*big.Int, error) {
	out = strings.TrimPrefix(out, "0x")
	if out == "" {
		return nil, fmt.Errorf("empty return data")
	}
	n, ok := new(big.Int).SetString(out, 16)
	if !ok {
		return nil, fmt.Errorf("invalid uint return data %q", out)
	}
	return n, nil
}

// decodeString decodes a single ABI-encoded dynamic string return value:
// a 32-byte offset word, a 32-byte length word, then the padded bytes.
func decodeString(out string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(out, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid return data: %w", err)
	}
	if len(raw) < 64 {
		return "", fmt.Errorf("return data too short for string")
	}

	// Bounds are compared without addition so hostile offset or length
	// words cannot wrap around uint64.
	offsetWord := new(big.Int).SetBytes(raw[:32])
	if !offsetWord.IsUint64() || offsetWord.Uint64() > uint64(len(raw))-32 {
		return "", fmt.Errorf("string offset out of range")
	}
	offset := offsetWord.Uint64()
	lengthWord := new(big.Int).SetBytes(raw[offset : offset+32])
	start := offset + 32
	if !lengthWord.IsUint64() || lengthWord.Uint64() > uint64(len(raw))-start {
		return "", fmt.Errorf("string length out of range")
	}
	length := lengthWord.Uint64()
	return string(raw[start : start+length]), nil
}
