package bank

import (
	"context"

	"match-ticketing/internal/services/bank/wave"
)

// WaveAdapter adapts the wave client to the Gateway interface.
type WaveAdapter struct {
	client *wave.Client
}

func NewWaveAdapter(_ context.Context, config *wave.Config) (*WaveAdapter, error) {
	return &WaveAdapter{client: wave.NewClient(config)}, nil
}

func (a *WaveAdapter) GetProvider() Provider { return ProviderWave }

func (a *WaveAdapter) Initiate(ctx context.Context, req *PaymentRequest) (*PaymentIntent, error) {
	session, err := a.client.CreateCheckout(ctx, &wave.CheckoutRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		ClientReference: req.Reference,
		Mobile:          req.Phone,
		Description:     req.Description,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		Reference:   req.Reference,
		ProviderRef: session.ID,
		Status:      mapWaveStatus(session.Status),
	}, nil
}

func (a *WaveAdapter) Confirm(ctx context.Context, reference string) (*TransactionStatus, error) {
	session, err := a.client.GetCheckout(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &TransactionStatus{
		Reference:     reference,
		ProviderTxnID: session.TransactionID,
		Status:        mapWaveStatus(session.Status),
		FailureReason: session.ErrorMessage,
	}, nil
}

func (a *WaveAdapter) Refund(ctx context.Context, reference string) error {
	return a.client.Refund(ctx, reference)
}

func (a *WaveAdapter) Close(_ context.Context) error { return nil }

func mapWaveStatus(s string) string {
	switch s {
	case "complete":
		return StatusSuccess
	case "open", "processing":
		return StatusPending
	default:
		return StatusFailed
	}
}
