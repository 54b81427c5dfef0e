// Package kycprovider integrates the external identity verification vendor:
// starting checks over its REST API and authenticating its status webhooks.
package kycprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/brickvault/platform/internal/app/domain/kyc"
)

// Client talks to the verification vendor's REST API.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret []byte
	httpClient    *http.Client
}

// Config holds vendor credentials.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// New creates a vendor client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: []byte(cfg.WebhookSecret),
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

// Check is the vendor's view of a verification session.
type Check struct {
	Ref       string
	Status    kyc.Status
	Reason    string
	ExpiresAt time.Time
}

// StartCheck opens a verification session for an applicant and returns the
// vendor reference used to correlate webhooks.
func (c *Client) StartCheck(ctx context.Context, applicantID, country string) (Check, error) {
	payload, err := json.Marshal(map[string]string{
		"applicant_id": applicantID,
		"country":      country,
	})
	if err != nil {
		return Check{}, err
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/checks", payload)
	if err != nil {
		return Check{}, err
	}
	return parseCheck(body)
}

// GetCheck fetches the current state of a verification session.
func (c *Client) GetCheck(ctx context.Context, ref string) (Check, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/checks/"+ref, nil)
	if err != nil {
		return Check{}, err
	}
	return parseCheck(body)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("vendor returned %d: %s", resp.StatusCode, msg)
	}
	return body, nil
}

// parseCheck reads the fields the platform cares about out of a vendor check
// document. The vendor adds fields freely, so parsing is path-based rather
// than struct-based.
func parseCheck(body []byte) (Check, error) {
	doc := gjson.ParseBytes(body)
	ref := doc.Get("id").String()
	if ref == "" {
		return Check{}, fmt.Errorf("vendor response missing check id")
	}

	check := Check{
		Ref:    ref,
		Status: mapStatus(doc.Get("result.status").String()),
		Reason: doc.Get("result.reason").String(),
	}
	if expiry := doc.Get("expires_at").String(); expiry != "" {
		ts, err := time.Parse(time.RFC3339, expiry)
		if err != nil {
			return Check{}, fmt.Errorf("invalid expires_at: %w", err)
		}
		check.ExpiresAt = ts.UTC()
	}
	return check, nil
}

func mapStatus(vendor string) kyc.Status {
	switch vendor {
	case "clear", "approved":
		return kyc.StatusApproved
	case "consider", "rejected":
		return kyc.StatusRejected
	default:
		return kyc.StatusPending
	}
}

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Kyc-Signature"

// Sign computes the hex HMAC-SHA256 of a webhook body. Exposed so tests and
// local tooling can produce valid signatures.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook body against the signature header value
// using a constant-time comparison.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// ParseWebhook validates and decodes a webhook body into the event the
// platform processes. It does not verify the signature; callers do that
// against the raw body first.
func ParseWebhook(body []byte) (kyc.WebhookEvent, error) {
	doc := gjson.ParseBytes(body)

	ev := kyc.WebhookEvent{
		EventID:     doc.Get("event_id").String(),
		ProviderRef: doc.Get("check_id").String(),
		Status:      mapStatus(doc.Get("result.status").String()),
		Reason:      doc.Get("result.reason").String(),
	}
	if ev.EventID == "" {
		return kyc.WebhookEvent{}, fmt.Errorf("webhook missing event_id")
	}
	if ev.ProviderRef == "" {
		return kyc.WebhookEvent{}, fmt.Errorf("webhook missing check_id")
	}

	if occurred := doc.Get("occurred_at").String(); occurred != "" {
		ts, err := time.Parse(time.RFC3339, occurred)
		if err != nil {
			return kyc.WebhookEvent{}, fmt.Errorf("invalid occurred_at: %w", err)
		}
		ev.OccurredAt = ts.UTC()
	} else {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev, nil
}
