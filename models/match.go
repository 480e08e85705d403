package models

import (
	"time"

	"github.com/shopspring/decimal"

	"match-ticketing/internal/status"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
	MatchPostponed  MatchStatus = "postponed"
	MatchCancelled  MatchStatus = "cancelled"
)

type Match struct {
	ID            string          `json:"id" db:"id"`
	TeamA         string          `json:"team_a" db:"team_a"`
	TeamB         string          `json:"team_b" db:"team_b"`
	KickoffAt     time.Time       `json:"kickoff_at" db:"kickoff_at"`
	Stadium       string          `json:"stadium" db:"stadium"`
	City          string          `json:"city" db:"city"`
	Competition   string          `json:"competition" db:"competition"`
	Status        MatchStatus     `json:"status" db:"status"`
	StandardPrice decimal.Decimal `json:"standard_price" db:"standard_price"`
	// VIPPrice is nil when the match has no VIP tier.
	VIPPrice         *decimal.Decimal `json:"vip_price,omitempty" db:"vip_price"`
	StandardCapacity int              `json:"standard_capacity" db:"standard_capacity"`
	// VIPCapacity is nil when the match has no VIP tier.
	VIPCapacity *int `json:"vip_capacity,omitempty" db:"vip_capacity"`
	// SaleCutoff is nil when sales stay open until the match is over.
	SaleCutoff *time.Time `json:"sale_cutoff,omitempty" db:"sale_cutoff"`
	CreatedBy  string     `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// SalesOpen reports whether tickets may still be issued at the given time.
func (m *Match) SalesOpen(now time.Time) bool {
	if m.Status == MatchCancelled {
		return false
	}
	if m.SaleCutoff != nil && now.After(*m.SaleCutoff) {
		return false
	}
	return true
}

// ResolvePrice returns the price for a ticket type, or ErrInvalidClass when
// the match has no such tier.
func (m *Match) ResolvePrice(t TicketType) (decimal.Decimal, error) {
	switch t {
	case TicketStandard:
		return m.StandardPrice, nil
	case TicketVIP:
		if m.VIPPrice == nil {
			return decimal.Zero, status.ErrInvalidClass
		}
		return *m.VIPPrice, nil
	case TicketFree:
		return decimal.Zero, nil
	default:
		return decimal.Zero, status.ErrInvalidClass
	}
}

// Capacity returns the seat limit for a ticket type. Free tickets draw from
// the standard allocation. ok is false when the tier does not exist.
func (m *Match) Capacity(t TicketType) (limit int, ok bool) {
	switch t {
	case TicketStandard, TicketFree:
		return m.StandardCapacity, true
	case TicketVIP:
		if m.VIPCapacity == nil {
			return 0, false
		}
		return *m.VIPCapacity, true
	default:
		return 0, false
	}
}
