// Package capacity enforces per-match, per-class issuance limits. The ledger
// is a counter over the ticket store, not a separate table: issued seats are
// tickets in the Valid or Used state.
package capacity

import (
	"context"
	"time"

	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/models"
)

type Ledger struct {
	tickets store.TicketStore
	now     func() time.Time
}

func NewLedger(tickets store.TicketStore) *Ledger {
	return &Ledger{tickets: tickets, now: time.Now}
}

// pool returns the ticket types that share a seat allocation with t. Free
// tickets draw from the standard allocation.
func pool(t models.TicketType) []models.TicketType {
	if t == models.TicketVIP {
		return []models.TicketType{models.TicketVIP}
	}
	return []models.TicketType{models.TicketStandard, models.TicketFree}
}

// TryReserve reports whether a seat of the given class may be issued for the
// match right now. It performs no mutation; the caller must hold the match
// lock across this check and the subsequent ticket insert.
func (l *Ledger) TryReserve(ctx context.Context, match *models.Match, class models.TicketType) error {
	if !class.Valid() {
		return status.ErrInvalidClass
	}
	if !match.SalesOpen(l.now()) {
		return status.ErrSalesClosed
	}
	limit, ok := match.Capacity(class)
	if !ok {
		return status.ErrInvalidClass
	}

	issued, err := l.tickets.CountIssued(ctx, match.ID, pool(class))
	if err != nil {
		return err
	}
	if issued >= limit {
		return status.ErrCapacityExceeded
	}
	return nil
}
