// Package chain provides Ethereum JSON-RPC access for token issuance and
// holdings tracking.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/brickvault/platform/internal/app/metrics"
)

// Client talks to an Ethereum JSON-RPC endpoint.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	chainID    int64
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	ChainID int64 // Mainnet: 1, Sepolia: 11155111
	Timeout time.Duration
}

// NewClient creates an Ethereum RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		chainID: cfg.ChainID,
	}, nil
}

// ChainID returns the configured chain identifier.
func (c *Client) ChainID() int64 { return c.chainID }

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      int             `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call makes a JSON-RPC call to the node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordChainCall(method, time.Since(start), err == nil)
	}()

	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// BlockNumber returns the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// EthCall executes a read-only contract call at the latest block and returns
// the raw return data.
func (c *Client) EthCall(ctx context.Context, to string, data string) (string, error) {
	call := map[string]string{"to": to, "data": data}
	result, err := c.Call(ctx, "eth_call", []interface{}{call, "latest"})
	if err != nil {
		return "", err
	}

	var out string
	if err := json.Unmarshal(result, &out); err != nil {
		return "", err
	}
	return out, nil
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx string) (string, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{signedTx})
	if err != nil {
		return "", err
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", err
	}
	return strings.ToLower(hash), nil
}

// Receipt is a mined-transaction receipt. Only the fields the platform reads
// are decoded.
type Receipt struct {
	TxHash      string `json:"transactionHash"`
	BlockNumber string `json:"blockNumber"`
	Status      string `json:"status"`
	GasUsed     string `json:"gasUsed"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool { return r.Status == "0x1" }

// GetTransactionReceipt returns the receipt for a mined transaction, or nil
// when the transaction is still pending.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if string(result) == "null" {
		return nil, nil
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DefaultTxWaitTimeout bounds how long WaitForReceipt polls by default.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default receipt polling interval.
const DefaultPollInterval = 2 * time.Second

// WaitForReceipt polls until the transaction is mined or the context is done.
// A pending transaction is retried until the deadline expires.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string, pollInterval time.Duration) (*Receipt, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.GetTransactionReceipt(ctx, txHash)
			if err != nil {
				return nil, err
			}
			if receipt == nil {
				continue
			}
			return receipt, nil
		}
	}
}

// SendRawTransactionAndWait broadcasts a signed transaction and waits for its
// receipt. A waitTimeout of 0 uses DefaultTxWaitTimeout.
func (c *Client) SendRawTransactionAndWait(ctx context.Context, signedTx string, pollInterval, waitTimeout time.Duration) (*Receipt, error) {
	txHash, err := c.SendRawTransaction(ctx, signedTx)
	if err != nil {
		return nil, err
	}

	if waitTimeout <= 0 {
		waitTimeout = DefaultTxWaitTimeout
	}

	wctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	return c.WaitForReceipt(wctx, txHash, pollInterval)
}

func parseHexUint(raw json.RawMessage) (uint64, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, err
	}
	n, ok := new(big.Int).SetString(strings.TrimPrefix(hex, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", hex)
	}
	return n.Uint64(), nil
}
