package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodWave        PaymentMethod = "wave"
	MethodOrangeMoney PaymentMethod = "orange_money"
	MethodFreeMoney   PaymentMethod = "free_money"
	MethodCreditCard  PaymentMethod = "credit_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodWave, MethodOrangeMoney, MethodFreeMoney, MethodCreditCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID            string          `json:"id" db:"id"`
	Reference     string          `json:"reference" db:"reference"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Method        PaymentMethod   `json:"method" db:"method"`
	Status        PaymentStatus   `json:"status" db:"status"`
	Phone         string          `json:"phone,omitempty" db:"phone"`
	ProviderTxnID string          `json:"provider_txn_id,omitempty" db:"provider_txn_id"`
	FailureReason string          `json:"failure_reason,omitempty" db:"failure_reason"`
	UserID        string          `json:"user_id" db:"user_id"`
	SucceededAt   *time.Time      `json:"succeeded_at,omitempty" db:"succeeded_at"`
	FailedAt      *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty" db:"refunded_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// MarkSucceeded transitions Pending -> Succeeded.
func (p *Payment) MarkSucceeded(providerTxnID string, at time.Time) error {
	if p.Status != PaymentPending {
		return fmt.Errorf("payment %s: cannot succeed from %s", p.Reference, p.Status)
	}
	p.Status = PaymentSucceeded
	p.ProviderTxnID = providerTxnID
	p.SucceededAt = &at
	return nil
}

// MarkFailed transitions Pending -> Failed.
func (p *Payment) MarkFailed(reason string, at time.Time) error {
	if p.Status != PaymentPending {
		return fmt.Errorf("payment %s: cannot fail from %s", p.Reference, p.Status)
	}
	p.Status = PaymentFailed
	p.FailureReason = reason
	p.FailedAt = &at
	return nil
}

// MarkRefunded transitions Succeeded -> Refunded.
func (p *Payment) MarkRefunded(at time.Time) error {
	if p.Status != PaymentSucceeded {
		return fmt.Errorf("payment %s: cannot refund from %s", p.Reference, p.Status)
	}
	p.Status = PaymentRefunded
	p.RefundedAt = &at
	return nil
}
