package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"match-ticketing/internal/services/bank"
	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/models"
	"match-ticketing/monitoring"
	"match-ticketing/utils"
)

// PaymentService owns payment records and the conversation with the payment
// provider. Every gateway call runs through a circuit breaker with a bounded
// timeout; a stuck provider must never block a purchase indefinitely.
type PaymentService struct {
	payments store.PaymentStore
	gateway  bank.Gateway
	breaker  *utils.CircuitBreaker
	notifier *Notifier
	timeout  time.Duration
	now      func() time.Time
}

func NewPaymentService(payments store.PaymentStore, gateway bank.Gateway, notifier *Notifier, timeout time.Duration) *PaymentService {
	return &PaymentService{
		payments: payments,
		gateway:  gateway,
		breaker:  utils.NewCircuitBreaker(string(gateway.GetProvider())),
		notifier: notifier,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Collect creates a Pending payment record and runs it through the gateway.
// On provider success the record transitions to Succeeded and is returned;
// on provider failure the record transitions to Failed and ErrPaymentFailed
// is returned. The Pending record is persisted before the provider is
// contacted, so a crash mid-call leaves an auditable trail.
func (s *PaymentService) Collect(ctx context.Context, userID string, amount decimal.Decimal, method models.PaymentMethod, phone string) (*models.Payment, error) {
	reference, err := s.generateReference()
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		Reference: reference,
		Amount:    amount,
		Method:    method,
		Status:    models.PaymentPending,
		Phone:     phone,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.payments.InsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment record: %w", err)
	}

	txn, err := s.confirmWithProvider(ctx, payment)
	if err != nil {
		s.failPayment(ctx, payment, err.Error())
		monitoring.TrackPayment("collect", "provider_error")
		return nil, fmt.Errorf("%w: %v", status.ErrPaymentFailed, err)
	}
	if txn.Status != bank.StatusSuccess {
		s.failPayment(ctx, payment, txn.FailureReason)
		monitoring.TrackPayment("collect", "declined")
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentFailed, txn.FailureReason)
	}

	if err := payment.MarkSucceeded(txn.ProviderTxnID, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.payments.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("record payment success: %w", err)
	}
	monitoring.TrackPayment("collect", "success")

	logrus.WithFields(logrus.Fields{
		"reference": payment.Reference,
		"provider":  s.gateway.GetProvider(),
		"amount":    amount.String(),
	}).Info("payment collected")

	return payment, nil
}

// confirmWithProvider initiates and synchronously confirms the payment with
// the provider, both legs bounded by the configured timeout and guarded by
// the circuit breaker.
func (s *PaymentService) confirmWithProvider(ctx context.Context, payment *models.Payment) (*bank.TransactionStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.breaker.Execute(callCtx, func() (interface{}, error) {
		if _, err := s.gateway.Initiate(callCtx, &bank.PaymentRequest{
			Amount:      payment.Amount,
			Reference:   payment.Reference,
			Phone:       payment.Phone,
			Description: "match ticket",
		}); err != nil {
			return nil, err
		}
		return s.gateway.Confirm(callCtx, payment.Reference)
	})
	if err != nil {
		return nil, err
	}
	return result.(*bank.TransactionStatus), nil
}

// Refund compensates a succeeded payment whose ticket could never be issued.
// The record is marked Refunded even when the provider call fails, so the
// reconciliation job can retry from an honest state.
func (s *PaymentService) Refund(ctx context.Context, payment *models.Payment) error {
	if err := payment.MarkRefunded(s.now().UTC()); err != nil {
		return err
	}
	if err := s.payments.UpdatePayment(ctx, payment); err != nil {
		return fmt.Errorf("record refund: %w", err)
	}

	if err := s.gateway.Refund(ctx, payment.Reference); err != nil {
		monitoring.TrackPayment("refund", "provider_error")
		logrus.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"error":     err,
		}).Error("provider refund failed, needs manual reconciliation")
		return fmt.Errorf("provider refund: %w", err)
	}
	monitoring.TrackPayment("refund", "success")

	s.notifier.NotifyUser(payment.UserID, map[string]any{
		"type":      "payment_refunded",
		"reference": payment.Reference,
		"amount":    payment.Amount.String(),
	})
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.payments.GetPayment(ctx, id)
}

func (s *PaymentService) failPayment(ctx context.Context, payment *models.Payment, reason string) {
	if err := payment.MarkFailed(reason, s.now().UTC()); err != nil {
		logrus.WithField("reference", payment.Reference).Warn(err)
		return
	}
	if err := s.payments.UpdatePayment(ctx, payment); err != nil {
		logrus.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"error":     err,
		}).Error("failed to record payment failure")
	}
}

// generateReference builds PAY-yyyyMMdd-XXXXXXXX.
func (s *PaymentService) generateReference() (string, error) {
	code, err := utils.GenerateCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%s-%s", s.now().UTC().Format("20060102"), code), nil
}
