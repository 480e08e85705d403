package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-ticketing/internal/capacity"
	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/internal/token"
	"match-ticketing/models"
)

const testSigningKey = "unit-test-signing-key"

func newTicketFixture(t *testing.T) (*TicketService, *store.Memory) {
	t.Helper()
	codec, err := token.NewCodec(testSigningKey)
	require.NoError(t, err)
	st := store.NewMemory()
	service := NewTicketService(st, codec, capacity.NewLedger(st), capacity.NewLocalLocker(), "GM")
	return service, st
}

func seedMatch(t *testing.T, st *store.Memory, standardCap int) *models.Match {
	t.Helper()
	match := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            "ASC Jaraaf",
		TeamB:            "Casa Sports",
		KickoffAt:        time.Now().Add(72 * time.Hour),
		Status:           models.MatchScheduled,
		StandardPrice:    decimal.NewFromInt(5000),
		StandardCapacity: standardCap,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, st.InsertMatch(context.Background(), match))
	return match
}

func TestTicketService_Issue(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 100)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "pay-1", Holder{Name: "Moussa Ndiaye", Phone: "+221771234567"})
	require.NoError(t, err)

	assert.Equal(t, models.TicketValid, ticket.Status)
	assert.Equal(t, models.TicketStandard, ticket.Type)
	assert.Equal(t, "user-1", ticket.UserID)
	assert.Equal(t, "pay-1", ticket.PaymentID)
	assert.Equal(t, "Moussa Ndiaye", ticket.HolderName)
	assert.True(t, strings.HasPrefix(ticket.Serial, "GM-"))

	// The embedded token must verify and point back at this ticket.
	decoded, ok := service.codec.Decode(ticket.Token)
	require.True(t, ok)
	assert.Equal(t, ticket.ID, decoded)

	stored, err := st.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Serial, stored.Serial)
}

func TestTicketService_IssueUnknownMatch(t *testing.T) {
	service, _ := newTicketFixture(t)

	_, err := service.Issue(context.Background(), uuid.NewString(), models.TicketStandard,
		"user-1", decimal.Zero, "", Holder{})
	assert.ErrorIs(t, err, status.ErrMatchNotFound)
}

func TestTicketService_IssueCapacityExhausted(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
			decimal.NewFromInt(5000), "", Holder{})
		require.NoError(t, err)
	}

	_, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-2",
		decimal.NewFromInt(5000), "", Holder{})
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
}

// With one seat left and many concurrent buyers, exactly one issuance wins.
func TestTicketService_ConcurrentIssueLastSeat(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 1)
	ctx := context.Background()

	const buyers = 20
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Issue(ctx, match.ID, models.TicketStandard, uuid.NewString(),
				decimal.NewFromInt(5000), "", Holder{})
		}(i)
	}
	wg.Wait()

	issued := 0
	for _, err := range errs {
		if err == nil {
			issued++
		} else {
			assert.ErrorIs(t, err, status.ErrCapacityExceeded)
		}
	}
	assert.Equal(t, 1, issued)

	count, err := st.CountIssued(ctx, match.ID, []models.TicketType{models.TicketStandard, models.TicketFree})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTicketService_RedeemOnce(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 10)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "", Holder{})
	require.NoError(t, err)

	redeemed, err := service.Redeem(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, redeemed.Status)
	require.NotNil(t, redeemed.UsedAt)
	firstUse := *redeemed.UsedAt

	// The second redeem fails and must not move the use timestamp.
	again, err := service.Redeem(ctx, ticket.ID)
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)
	require.NotNil(t, again)
	require.NotNil(t, again.UsedAt)
	assert.Equal(t, firstUse, *again.UsedAt)
}

func TestTicketService_ConcurrentRedeem(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 10)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "", Holder{})
	require.NoError(t, err)

	const scanners = 10
	var wg sync.WaitGroup
	errs := make([]error, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Redeem(ctx, ticket.ID)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, status.ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestTicketService_RedeemUnknownTicket(t *testing.T) {
	service, _ := newTicketFixture(t)

	_, err := service.Redeem(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestTicketService_Cancel(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 10)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "", Holder{})
	require.NoError(t, err)

	// Only the owner may cancel.
	err = service.Cancel(ctx, ticket.ID, "someone-else")
	assert.ErrorIs(t, err, status.ErrForbidden)

	require.NoError(t, service.Cancel(ctx, ticket.ID, "user-1"))

	stored, err := st.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)

	// Cancelling twice is a no-op.
	assert.NoError(t, service.Cancel(ctx, ticket.ID, "user-1"))
}

func TestTicketService_CancelUsedTicket(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 10)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "", Holder{})
	require.NoError(t, err)

	_, err = service.Redeem(ctx, ticket.ID)
	require.NoError(t, err)

	err = service.Cancel(ctx, ticket.ID, "user-1")
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)
}

func TestTicketService_CancelledSeatReleased(t *testing.T) {
	service, st := newTicketFixture(t)
	match := seedMatch(t, st, 1)
	ctx := context.Background()

	ticket, err := service.Issue(ctx, match.ID, models.TicketStandard, "user-1",
		decimal.NewFromInt(5000), "", Holder{})
	require.NoError(t, err)

	_, err = service.Issue(ctx, match.ID, models.TicketStandard, "user-2",
		decimal.NewFromInt(5000), "", Holder{})
	require.ErrorIs(t, err, status.ErrCapacityExceeded)

	require.NoError(t, service.Cancel(ctx, ticket.ID, "user-1"))

	_, err = service.Issue(ctx, match.ID, models.TicketStandard, "user-2",
		decimal.NewFromInt(5000), "", Holder{})
	assert.NoError(t, err)
}

func TestTicketService_ExpireConcluded(t *testing.T) {
	service, st := newTicketFixture(t)
	ctx := context.Background()

	match := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            "Stade de Mbour",
		TeamB:            "Teungueth FC",
		KickoffAt:        time.Now().Add(-5 * time.Hour),
		Status:           models.MatchFinished,
		StandardPrice:    decimal.NewFromInt(3000),
		StandardCapacity: 10,
	}
	require.NoError(t, st.InsertMatch(ctx, match))

	valid := &models.Ticket{
		ID:      uuid.NewString(),
		Serial:  "GM-20260315-EXP01",
		Token:   "t1",
		Type:    models.TicketStandard,
		Status:  models.TicketValid,
		MatchID: match.ID,
		UserID:  "user-1",
	}
	used := &models.Ticket{
		ID:      uuid.NewString(),
		Serial:  "GM-20260315-EXP02",
		Token:   "t2",
		Type:    models.TicketStandard,
		Status:  models.TicketUsed,
		MatchID: match.ID,
		UserID:  "user-2",
	}
	require.NoError(t, st.InsertTicket(ctx, valid))
	require.NoError(t, st.InsertTicket(ctx, used))

	service.expireConcluded(ctx)

	stored, err := st.GetTicket(ctx, valid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketExpired, stored.Status)

	// Used tickets keep their state for the audit trail.
	stored, err = st.GetTicket(ctx, used.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, stored.Status)
}

func TestTicketService_ExpireSkipsPostponedMatch(t *testing.T) {
	service, st := newTicketFixture(t)
	ctx := context.Background()

	match := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            "Jaraaf",
		TeamB:            "Casa Sports",
		KickoffAt:        time.Now().Add(-5 * time.Hour),
		Status:           models.MatchPostponed,
		StandardPrice:    decimal.NewFromInt(3000),
		StandardCapacity: 10,
	}
	require.NoError(t, st.InsertMatch(ctx, match))

	ticket := &models.Ticket{
		ID:      uuid.NewString(),
		Serial:  "GM-20260315-PST01",
		Token:   "t3",
		Type:    models.TicketStandard,
		Status:  models.TicketValid,
		MatchID: match.ID,
		UserID:  "user-1",
	}
	require.NoError(t, st.InsertTicket(ctx, ticket))

	service.expireConcluded(ctx)

	// The match will still be played, so the ticket stays redeemable.
	stored, err := st.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketValid, stored.Status)
}

func TestTicketService_SerialFormat(t *testing.T) {
	service, _ := newTicketFixture(t)
	service.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	serial, err := service.generateSerial()
	require.NoError(t, err)

	parts := strings.Split(serial, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "GM", parts[0])
	assert.Equal(t, "20260315", parts[1])
	assert.Len(t, parts[2], 5)
}
