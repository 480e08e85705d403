// Package wave is a minimal client for the Wave mobile-money checkout API.
package wave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL    string `json:"baseUrl" mapstructure:"base_url"`
	APIKey     string `json:"apiKey" mapstructure:"api_key"`
	MerchantID string `json:"merchantId" mapstructure:"merchant_id"`
	Currency   string `json:"currency" mapstructure:"currency"`
}

type Client struct {
	// baseURL is the base url of the Wave backend.
	baseURL string

	// apiKey authenticates requests against the Wave backend.
	apiKey string

	// merchantID is sent with every checkout session.
	merchantID string

	// currency used when the caller does not specify one.
	currency string

	// hc is the http client.
	hc *http.Client
}

func NewClient(c *Config) *Client {
	return &Client{
		baseURL:    c.BaseURL,
		apiKey:     c.APIKey,
		merchantID: c.MerchantID,
		currency:   c.Currency,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type CheckoutRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ClientReference string          `json:"client_reference"`
	Mobile          string          `json:"mobile"`
	MerchantID      string          `json:"merchant_id"`
	Description     string          `json:"description,omitempty"`
}

type CheckoutSession struct {
	ID              string `json:"id"`
	ClientReference string `json:"client_reference"`
	Status          string `json:"checkout_status"`
	TransactionID   string `json:"transaction_id"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// CreateCheckout starts a checkout session for the given reference.
func (c *Client) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if req.MerchantID == "" {
		req.MerchantID = c.merchantID
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckout fetches the current state of a checkout session by the
// caller's client reference.
func (c *Client) GetCheckout(ctx context.Context, clientReference string) (*CheckoutSession, error) {
	var session CheckoutSession
	path := fmt.Sprintf("/v1/checkout/sessions?client_reference=%s", clientReference)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Refund reverses a completed checkout session.
func (c *Client) Refund(ctx context.Context, clientReference string) error {
	path := fmt.Sprintf("/v1/checkout/sessions/%s/refund", clientReference)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wave: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("wave: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("wave: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("wave: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wave: decode response: %w", err)
	}
	return nil
}
