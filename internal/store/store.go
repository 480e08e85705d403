// Package store holds the persistence ports for the ticketing core and their
// sqlite and in-memory implementations. The services issue read/write intents
// against these interfaces; nothing above this package speaks SQL.
package store

import (
	"context"
	"errors"
	"time"

	"match-ticketing/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: unique constraint violated")
)

type TicketStore interface {
	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListUserTickets(ctx context.Context, userID string) ([]*models.Ticket, error)
	ListMatchTickets(ctx context.Context, matchID string) ([]*models.Ticket, error)

	// CountIssued counts tickets of the given types that occupy a seat
	// (state Valid or Used) for a match.
	CountIssued(ctx context.Context, matchID string, types []models.TicketType) (int, error)

	// MarkUsed commits Valid->Used for the ticket and reports whether this
	// call performed the transition. A false return with a nil error means
	// the ticket was not in the Valid state.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkCancelled commits Valid->Cancelled, same contract as MarkUsed.
	MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error)

	// ExpireMatchTickets moves every Valid ticket of the match to Expired
	// and returns how many were affected.
	ExpireMatchTickets(ctx context.Context, matchID string) (int, error)
}

type MatchStore interface {
	InsertMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListMatches(ctx context.Context) ([]*models.Match, error)

	// ListConcluded returns matches that are finished or cancelled, or whose
	// kickoff is older than the given instant. Used by the expiry sweeper.
	ListConcluded(ctx context.Context, kickoffBefore time.Time) ([]*models.Match, error)
}

type PaymentStore interface {
	InsertPayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
}

// Store bundles the three ports; both implementations satisfy it.
type Store interface {
	TicketStore
	MatchStore
	PaymentStore
}
