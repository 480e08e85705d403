package bank

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider identifies a mobile-money payment provider.
type Provider string

const (
	ProviderWave        Provider = "wave"
	ProviderOrangeMoney Provider = "orange_money"
	ProviderFreeMoney   Provider = "free_money"
	ProviderMock        Provider = "mock"
)

// PaymentRequest is a provider-agnostic payment initiation.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference"`
	Phone       string          `json:"phone"`
	Description string          `json:"description,omitempty"`
}

// PaymentIntent is the provider's answer to an initiation.
type PaymentIntent struct {
	Reference   string `json:"reference"`
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
}

// TransactionStatus is the provider's answer to a confirmation query.
type TransactionStatus struct {
	Reference     string          `json:"reference"`
	ProviderTxnID string          `json:"provider_txn_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Transaction status values shared by all providers.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Gateway is the common interface for all payment providers.
type Gateway interface {
	// GetProvider returns the provider behind this gateway.
	GetProvider() Provider

	// Initiate starts a payment and returns the provider's intent.
	Initiate(ctx context.Context, req *PaymentRequest) (*PaymentIntent, error)

	// Confirm queries the outcome of a previously initiated payment.
	Confirm(ctx context.Context, reference string) (*TransactionStatus, error)

	// Refund returns a succeeded payment to the payer.
	Refund(ctx context.Context, reference string) error

	// Close gracefully closes any provider connections.
	Close(ctx context.Context) error
}
