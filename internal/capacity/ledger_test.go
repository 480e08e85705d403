package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/models"
)

func testMatch(standardCap int, vipCap *int) *models.Match {
	vipPrice := decimal.NewFromInt(25000)
	m := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            "ASC Jaraaf",
		TeamB:            "Casa Sports",
		KickoffAt:        time.Now().Add(48 * time.Hour),
		Status:           models.MatchScheduled,
		StandardPrice:    decimal.NewFromInt(5000),
		StandardCapacity: standardCap,
	}
	if vipCap != nil {
		m.VIPCapacity = vipCap
		m.VIPPrice = &vipPrice
	}
	return m
}

func seedTickets(t *testing.T, st *store.Memory, match *models.Match, class models.TicketType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := st.InsertTicket(context.Background(), &models.Ticket{
			ID:      uuid.NewString(),
			Serial:  uuid.NewString(),
			Token:   uuid.NewString(),
			Type:    class,
			Status:  models.TicketValid,
			MatchID: match.ID,
			UserID:  "seed-user",
		})
		require.NoError(t, err)
	}
}

func TestLedger_ReserveWithinCapacity(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)

	seedTickets(t, st, match, models.TicketStandard, 9)

	err := ledger.TryReserve(context.Background(), match, models.TicketStandard)
	assert.NoError(t, err)
}

func TestLedger_CapacityExceeded(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)

	seedTickets(t, st, match, models.TicketStandard, 10)

	err := ledger.TryReserve(context.Background(), match, models.TicketStandard)
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
}

func TestLedger_FreeTicketsShareStandardPool(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)

	seedTickets(t, st, match, models.TicketStandard, 6)
	seedTickets(t, st, match, models.TicketFree, 4)

	err := ledger.TryReserve(context.Background(), match, models.TicketStandard)
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)

	err = ledger.TryReserve(context.Background(), match, models.TicketFree)
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
}

func TestLedger_VIPPoolIsSeparate(t *testing.T) {
	vipCap := 2
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(1, &vipCap)

	seedTickets(t, st, match, models.TicketStandard, 1)

	// Standard sold out, VIP still open.
	assert.ErrorIs(t, ledger.TryReserve(context.Background(), match, models.TicketStandard), status.ErrCapacityExceeded)
	assert.NoError(t, ledger.TryReserve(context.Background(), match, models.TicketVIP))
}

func TestLedger_VIPWithoutTier(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)

	err := ledger.TryReserve(context.Background(), match, models.TicketVIP)
	assert.ErrorIs(t, err, status.ErrInvalidClass)
}

func TestLedger_UnknownClass(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)

	err := ledger.TryReserve(context.Background(), match, models.TicketType("platinum"))
	assert.ErrorIs(t, err, status.ErrInvalidClass)
}

func TestLedger_SalesClosedAfterCutoff(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)
	cutoff := time.Now().Add(-time.Hour)
	match.SaleCutoff = &cutoff

	err := ledger.TryReserve(context.Background(), match, models.TicketStandard)
	assert.ErrorIs(t, err, status.ErrSalesClosed)
}

func TestLedger_SalesClosedForCancelledMatch(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(10, nil)
	match.Status = models.MatchCancelled

	err := ledger.TryReserve(context.Background(), match, models.TicketStandard)
	assert.ErrorIs(t, err, status.ErrSalesClosed)
}

// Cancelled and expired tickets release their seat back to the pool.
func TestLedger_ReleasedSeatsAreReusable(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(1, nil)

	ticket := &models.Ticket{
		ID:      uuid.NewString(),
		Serial:  "GM-20260315-AAAAA",
		Token:   "tok",
		Type:    models.TicketStandard,
		Status:  models.TicketValid,
		MatchID: match.ID,
		UserID:  "u1",
	}
	require.NoError(t, st.InsertTicket(context.Background(), ticket))
	assert.ErrorIs(t, ledger.TryReserve(context.Background(), match, models.TicketStandard), status.ErrCapacityExceeded)

	done, err := st.MarkCancelled(context.Background(), ticket.ID, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	assert.NoError(t, ledger.TryReserve(context.Background(), match, models.TicketStandard))
}

// Used tickets keep counting against capacity.
func TestLedger_UsedSeatsStayCounted(t *testing.T) {
	st := store.NewMemory()
	ledger := NewLedger(st)
	match := testMatch(1, nil)

	ticket := &models.Ticket{
		ID:      uuid.NewString(),
		Serial:  "GM-20260315-BBBBB",
		Token:   "tok2",
		Type:    models.TicketStandard,
		Status:  models.TicketValid,
		MatchID: match.ID,
		UserID:  "u1",
	}
	require.NoError(t, st.InsertTicket(context.Background(), ticket))

	done, err := st.MarkUsed(context.Background(), ticket.ID, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	assert.ErrorIs(t, ledger.TryReserve(context.Background(), match, models.TicketStandard), status.ErrCapacityExceeded)
}
