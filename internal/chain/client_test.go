package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeNode answers eth_* calls with canned results keyed by method, and
// eth_call results keyed by the 4-byte selector in the call data.
type fakeNode struct {
	results     map[string]interface{}
	callResults map[string]string
}

func (f *fakeNode) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_call":
			call := req.Params[0].(map[string]interface{})
			data := call["data"].(string)
			out, ok := f.callResults[data[:10]]
			if !ok {
				writeRPCError(w, req.ID, -32000, "execution reverted")
				return
			}
			result = out
		default:
			out, ok := f.results[req.Method]
			if !ok {
				writeRPCError(w, req.ID, -32601, "method not found")
				return
			}
			result = out
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
}

func writeRPCError(w http.ResponseWriter, id, code int, msg string) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]interface{}{"code": code, "message": msg},
	})
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(node.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{RPCURL: srv.URL, ChainID: 11155111})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// abiString encodes s as a single ABI dynamic string return value.
func abiString(s string) string {
	padded := []byte(s)
	if rem := len(padded) % 32; rem != 0 {
		padded = append(padded, make([]byte, 32-rem)...)
	}
	return "0x" +
		fmt.Sprintf("%064x", 32) +
		fmt.Sprintf("%064x", len(s)) +
		hex.EncodeToString(padded)
}

func abiUint(n int64) string {
	return "0x" + fmt.Sprintf("%064x", big.NewInt(n))
}

func TestBlockNumber(t *testing.T) {
	client := newTestClient(t, &fakeNode{
		results: map[string]interface{}{"eth_blockNumber": "0x4b7"},
	})

	height, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("block number: %v", err)
	}
	if height != 1207 {
		t.Fatalf("expected height 1207, got %d", height)
	}
}

func TestCallRPCError(t *testing.T) {
	client := newTestClient(t, &fakeNode{results: map[string]interface{}{}})

	_, err := client.Call(context.Background(), "eth_getBalance", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("expected rpc error -32601, got %v", err)
	}
}

func TestTokenMetadata(t *testing.T) {
	client := newTestClient(t, &fakeNode{
		callResults: map[string]string{
			"0x06fdde03": abiString("Brick Tower Fund"), // name()
			"0x95d89b41": abiString("BRCK"),             // symbol()
			"0x313ce567": abiUint(18),                   // decimals()
			"0x18160ddd": abiUint(1_000_000),            // totalSupply()
		},
	})

	meta, err := client.TokenMetadata(context.Background(), "0x"+strings.Repeat("ab", 20))
	if err != nil {
		t.Fatalf("token metadata: %v", err)
	}
	if meta.Name != "Brick Tower Fund" || meta.Symbol != "BRCK" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.Decimals != 18 {
		t.Fatalf("expected 18 decimals, got %d", meta.Decimals)
	}
	if meta.TotalSupply.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected supply 1000000, got %s", meta.TotalSupply)
	}
}

func TestTokenMetadataRejectsBadAddress(t *testing.T) {
	client := newTestClient(t, &fakeNode{})

	if _, err := client.TokenMetadata(context.Background(), "not-an-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}
}

func TestBalanceOf(t *testing.T) {
	node := &fakeNode{
		callResults: map[string]string{
			"0x70a08231": abiUint(42_500), // balanceOf(address)
		},
	}
	client := newTestClient(t, node)

	balance, err := client.BalanceOf(context.Background(),
		"0x"+strings.Repeat("ab", 20), "0x"+strings.Repeat("cd", 20))
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance.Cmp(big.NewInt(42_500)) != 0 {
		t.Fatalf("expected 42500, got %s", balance)
	}
}

func TestWaitForReceiptPendingThenMined(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls++
		if calls < 3 {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"0xfeed","blockNumber":"0x10","status":"0x1","gasUsed":"0x5208"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := client.WaitForReceipt(ctx, "0xfeed", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait for receipt: %v", err)
	}
	if !receipt.Succeeded() {
		t.Fatalf("expected success receipt, got %+v", receipt)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", calls)
	}
}

func TestDecodeStringRejectsTruncated(t *testing.T) {
	if _, err := decodeString("0x" + fmt.Sprintf("%064x", 32)); err == nil {
		t.Fatal("expected error for truncated string data")
	}
}

// Hostile return data must error, never panic: a node under someone else's
// control can hand back arbitrary words.
func TestDecodeStringRejectsHostileWords(t *testing.T) {
	maxWord := strings.Repeat("f", 64)
	zeroWord := fmt.Sprintf("%064x", 0)
	offset32 := fmt.Sprintf("%064x", 32)

	cases := map[string]string{
		"overflowing offset": "0x" + maxWord + zeroWord,
		"offset past end":    "0x" + fmt.Sprintf("%064x", 1<<20) + zeroWord,
		"overflowing length": "0x" + offset32 + maxWord,
		"length past end":    "0x" + offset32 + fmt.Sprintf("%064x", 1<<20),
	}
	for name, payload := range cases {
		if _, err := decodeString(payload); err == nil {
			t.Errorf("%s: expected error, got none", name)
		}
	}
}
