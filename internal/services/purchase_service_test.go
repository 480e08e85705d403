package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-ticketing/internal/capacity"
	"match-ticketing/internal/services/bank"
	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/internal/token"
	"match-ticketing/models"
)

// recordingGateway is a bank.Gateway that records calls and can decline
// confirmations on demand.
type recordingGateway struct {
	mu            sync.Mutex
	declineReason string
	initiated     int
	refunded      []string
}

func (g *recordingGateway) GetProvider() bank.Provider { return bank.ProviderMock }

func (g *recordingGateway) Initiate(_ context.Context, req *bank.PaymentRequest) (*bank.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated++
	return &bank.PaymentIntent{
		Reference:   req.Reference,
		ProviderRef: "stub-" + req.Reference,
		Status:      bank.StatusPending,
	}, nil
}

func (g *recordingGateway) Confirm(_ context.Context, reference string) (*bank.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declineReason != "" {
		return &bank.TransactionStatus{
			Reference:     reference,
			Status:        bank.StatusFailed,
			FailureReason: g.declineReason,
		}, nil
	}
	return &bank.TransactionStatus{
		Reference:     reference,
		ProviderTxnID: "STUB-0001",
		Status:        bank.StatusSuccess,
	}, nil
}

func (g *recordingGateway) Refund(_ context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, reference)
	return nil
}

func (g *recordingGateway) Close(_ context.Context) error { return nil }

func newPurchaseFixture(t *testing.T) (*PurchaseService, *store.Memory, *recordingGateway) {
	t.Helper()
	codec, err := token.NewCodec(testSigningKey)
	require.NoError(t, err)
	st := store.NewMemory()
	gateway := &recordingGateway{}

	tickets := NewTicketService(st, codec, capacity.NewLedger(st), capacity.NewLocalLocker(), "GM")
	payments := NewPaymentService(st, gateway, nil, 2*time.Second)
	purchases := NewPurchaseService(st, tickets, payments, nil)
	return purchases, st, gateway
}

func TestPurchase_PaidTicket(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	match := seedMatch(t, st, 100)
	ctx := context.Background()

	ticket, err := purchases.Purchase(ctx, PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketStandard,
		OwnerID: "user-1",
		Method:  models.MethodWave,
		Phone:   "+221771234567",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TicketValid, ticket.Status)
	assert.True(t, ticket.Price.Equal(decimal.NewFromInt(5000)))
	require.NotEmpty(t, ticket.PaymentID)
	assert.Equal(t, 1, gateway.initiated)

	payment, err := st.GetPayment(ctx, ticket.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "user-1", payment.UserID)
}

func TestPurchase_FreeTicketSkipsPayment(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	match := seedMatch(t, st, 100)
	ctx := context.Background()

	ticket, err := purchases.Purchase(ctx, PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketFree,
		OwnerID: "user-1",
	})
	require.NoError(t, err)

	assert.True(t, ticket.Price.IsZero())
	assert.Empty(t, ticket.PaymentID)
	assert.Equal(t, 0, gateway.initiated)
}

func TestPurchase_PaymentDeclined(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	match := seedMatch(t, st, 100)
	gateway.declineReason = "insufficient funds"
	ctx := context.Background()

	_, err := purchases.Purchase(ctx, PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketStandard,
		OwnerID: "user-1",
		Method:  models.MethodWave,
		Phone:   "+221771234567",
	})
	assert.ErrorIs(t, err, status.ErrPaymentFailed)

	// No seat may be consumed by a declined payment.
	count, err := st.CountIssued(ctx, match.ID, []models.TicketType{models.TicketStandard, models.TicketFree})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPurchase_RefundWhenIssuanceFails(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	ctx := context.Background()

	// Sales open, price resolvable, but zero seats: payment clears first and
	// the issuance failure must trigger a compensating refund.
	match := seedMatch(t, st, 0)

	_, err := purchases.Purchase(ctx, PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketStandard,
		OwnerID: "user-1",
		Method:  models.MethodWave,
		Phone:   "+221771234567",
	})
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
	assert.Len(t, gateway.refunded, 1)
}

// Two buyers race for the last seat; exactly one gets a Valid ticket.
func TestPurchase_TwoBuyersLastSeat(t *testing.T) {
	purchases, st, _ := newPurchaseFixture(t)
	match := seedMatch(t, st, 1)
	ctx := context.Background()

	results := make(chan error, 2)
	for _, buyer := range []string{"user-1", "user-2"} {
		go func(buyer string) {
			_, err := purchases.Purchase(ctx, PurchaseRequest{
				MatchID: match.ID,
				Class:   models.TicketStandard,
				OwnerID: buyer,
				Method:  models.MethodWave,
				Phone:   "+221771234567",
			})
			results <- err
		}(buyer)
	}

	var won, lost int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, status.ErrCapacityExceeded)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	count, err := st.CountIssued(ctx, match.ID, []models.TicketType{models.TicketStandard, models.TicketFree})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurchase_SalesClosedBeforePayment(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	ctx := context.Background()

	cutoff := time.Now().Add(time.Hour)
	match := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            "ASC Jaraaf",
		TeamB:            "Casa Sports",
		KickoffAt:        time.Now().Add(3 * time.Hour),
		Status:           models.MatchScheduled,
		StandardPrice:    decimal.NewFromInt(5000),
		StandardCapacity: 100,
		SaleCutoff:       &cutoff,
	}
	require.NoError(t, st.InsertMatch(ctx, match))

	// The fail-fast check reads the service clock, not the wall clock.
	purchases.now = func() time.Time { return cutoff.Add(time.Minute) }

	_, err := purchases.Purchase(ctx, PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketStandard,
		OwnerID: "user-1",
		Method:  models.MethodWave,
	})
	assert.ErrorIs(t, err, status.ErrSalesClosed)
	assert.Equal(t, 0, gateway.initiated)
}

func TestPurchase_UnknownMatch(t *testing.T) {
	purchases, _, _ := newPurchaseFixture(t)

	_, err := purchases.Purchase(context.Background(), PurchaseRequest{
		MatchID: uuid.NewString(),
		Class:   models.TicketStandard,
		OwnerID: "user-1",
	})
	assert.ErrorIs(t, err, status.ErrMatchNotFound)
}

func TestPurchase_VIPWithoutTier(t *testing.T) {
	purchases, st, gateway := newPurchaseFixture(t)
	match := seedMatch(t, st, 100)

	_, err := purchases.Purchase(context.Background(), PurchaseRequest{
		MatchID: match.ID,
		Class:   models.TicketVIP,
		OwnerID: "user-1",
	})
	assert.ErrorIs(t, err, status.ErrInvalidClass)
	assert.Equal(t, 0, gateway.initiated)
}
