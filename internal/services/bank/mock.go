package bank

import (
	"context"
	"fmt"
	"sync"

	"match-ticketing/utils"
)

// MockGateway confirms every payment immediately. It backs development mode
// and tests; failures can be injected per reference.
type MockGateway struct {
	mu       sync.Mutex
	intents  map[string]*PaymentRequest
	failNext map[string]string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents:  make(map[string]*PaymentRequest),
		failNext: make(map[string]string),
	}
}

func (g *MockGateway) GetProvider() Provider { return ProviderMock }

// FailWith makes the next Confirm for the reference report the failure.
func (g *MockGateway) FailWith(reference, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[reference] = reason
}

func (g *MockGateway) Initiate(_ context.Context, req *PaymentRequest) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *req
	g.intents[req.Reference] = &cp
	return &PaymentIntent{
		Reference:   req.Reference,
		ProviderRef: fmt.Sprintf("mock-%s", req.Reference),
		Status:      StatusPending,
	}, nil
}

func (g *MockGateway) Confirm(_ context.Context, reference string) (*TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[reference]
	if !ok {
		return nil, fmt.Errorf("bank: unknown reference %s", reference)
	}
	if reason, ok := g.failNext[reference]; ok {
		delete(g.failNext, reference)
		return &TransactionStatus{
			Reference:     reference,
			Status:        StatusFailed,
			Amount:        intent.Amount,
			FailureReason: reason,
		}, nil
	}

	txnID, err := utils.GenerateCode(4)
	if err != nil {
		return nil, err
	}
	return &TransactionStatus{
		Reference:     reference,
		ProviderTxnID: "MOCK-" + txnID,
		Status:        StatusSuccess,
		Amount:        intent.Amount,
	}, nil
}

func (g *MockGateway) Refund(_ context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[reference]; !ok {
		return fmt.Errorf("bank: unknown reference %s", reference)
	}
	return nil
}

func (g *MockGateway) Close(_ context.Context) error { return nil }
