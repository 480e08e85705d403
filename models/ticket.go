package models

import (
	"time"

	"github.com/shopspring/decimal"

	"match-ticketing/internal/status"
)

type TicketType string

const (
	TicketStandard TicketType = "standard"
	TicketVIP      TicketType = "vip"
	TicketFree     TicketType = "free"
)

func (t TicketType) Valid() bool {
	switch t {
	case TicketStandard, TicketVIP, TicketFree:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
	TicketExpired   TicketStatus = "expired"
)

// Counted reports whether a ticket in this state occupies a seat for
// capacity purposes.
func (s TicketStatus) Counted() bool {
	return s == TicketValid || s == TicketUsed
}

type Ticket struct {
	ID          string          `json:"id" db:"id"`
	Serial      string          `json:"serial" db:"serial"`
	Type        TicketType      `json:"type" db:"type"`
	Status      TicketStatus    `json:"status" db:"status"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Token       string          `json:"token" db:"token"`
	HolderName  string          `json:"holder_name,omitempty" db:"holder_name"`
	HolderPhone string          `json:"holder_phone,omitempty" db:"holder_phone"`
	UserID      string          `json:"user_id" db:"user_id"`
	MatchID     string          `json:"match_id" db:"match_id"`
	PaymentID   string          `json:"payment_id,omitempty" db:"payment_id"`
	UsedAt      *time.Time      `json:"used_at,omitempty" db:"used_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Redeem transitions the ticket to Used. The only legal source state is
// Valid; any other state reports the error describing the current state so
// repeated redeems are deterministic.
func (t *Ticket) Redeem(at time.Time) error {
	switch t.Status {
	case TicketValid:
		t.Status = TicketUsed
		t.UsedAt = &at
		return nil
	case TicketUsed:
		return status.ErrAlreadyUsed
	case TicketCancelled:
		return status.ErrCancelled
	default:
		return status.ErrExpired
	}
}

// Cancel transitions the ticket to Cancelled. Used tickets cannot be
// cancelled; cancelling an already-cancelled ticket is a no-op.
func (t *Ticket) Cancel(at time.Time) error {
	switch t.Status {
	case TicketValid:
		t.Status = TicketCancelled
		t.CancelledAt = &at
		return nil
	case TicketCancelled:
		return nil
	case TicketUsed:
		return status.ErrAlreadyUsed
	default:
		return status.ErrExpired
	}
}

// Expire transitions the ticket to Expired. Only Valid tickets expire;
// terminal states are left untouched.
func (t *Ticket) Expire() bool {
	if t.Status != TicketValid {
		return false
	}
	t.Status = TicketExpired
	return true
}
