package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"match-ticketing/internal/status"
	"match-ticketing/internal/token"
	"match-ticketing/models"
	"match-ticketing/monitoring"
)

// ScanReason tells gate staff why a ticket was or was not admitted.
type ScanReason string

const (
	ReasonAdmitted       ScanReason = "admitted"
	ReasonInvalidToken   ScanReason = "invalid_token"
	ReasonTicketNotFound ScanReason = "ticket_not_found"
	ReasonAlreadyUsed    ScanReason = "already_used"
	ReasonCancelled      ScanReason = "cancelled"
	ReasonExpired        ScanReason = "expired"
)

type ScanResult struct {
	Admitted bool           `json:"admitted"`
	Reason   ScanReason     `json:"reason"`
	Message  string         `json:"message"`
	Ticket   *models.Ticket `json:"ticket,omitempty"`
}

// ScanService validates a presented admission token and commits the
// at-most-once Valid->Used transition.
type ScanService struct {
	codec   *token.Codec
	tickets *TicketService
}

func NewScanService(codec *token.Codec, tickets *TicketService) *ScanService {
	return &ScanService{codec: codec, tickets: tickets}
}

// Scan admits the ticket behind the token exactly once. Every outcome is a
// result, not an error: gates keep scanning whatever people present.
func (s *ScanService) Scan(ctx context.Context, presented string) (*ScanResult, error) {
	started := time.Now()
	result, err := s.scan(ctx, presented)
	if err != nil {
		return nil, err
	}
	monitoring.TrackScan(string(result.Reason), time.Since(started))
	return result, nil
}

func (s *ScanService) scan(ctx context.Context, presented string) (*ScanResult, error) {
	ticketID, ok := s.codec.Decode(presented)
	if !ok {
		return &ScanResult{
			Admitted: false,
			Reason:   ReasonInvalidToken,
			Message:  "admission token is not valid",
		}, nil
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return &ScanResult{
				Admitted: false,
				Reason:   ReasonTicketNotFound,
				Message:  "ticket not found",
			}, nil
		}
		return nil, err
	}

	// The signature only proves the token was issued by us at some point.
	// The stored token is authoritative: a mismatch means a stale token for
	// a reissued ticket id.
	if ticket.Token != presented {
		return &ScanResult{
			Admitted: false,
			Reason:   ReasonTicketNotFound,
			Message:  "ticket not found",
		}, nil
	}

	redeemed, err := s.tickets.Redeem(ctx, ticketID)
	switch {
	case err == nil:
		logrus.WithField("serial", redeemed.Serial).Info("ticket admitted")
		return &ScanResult{
			Admitted: true,
			Reason:   ReasonAdmitted,
			Message:  "valid ticket, entry authorized",
			Ticket:   redeemed,
		}, nil

	case errors.Is(err, status.ErrAlreadyUsed):
		msg := "ticket already used"
		if redeemed != nil && redeemed.UsedAt != nil {
			msg = fmt.Sprintf("ticket already used at %s", redeemed.UsedAt.UTC().Format("02/01/2006 15:04"))
		}
		return &ScanResult{
			Admitted: false,
			Reason:   ReasonAlreadyUsed,
			Message:  msg,
			Ticket:   redeemed,
		}, nil

	case errors.Is(err, status.ErrCancelled):
		return &ScanResult{
			Admitted: false,
			Reason:   ReasonCancelled,
			Message:  "ticket cancelled",
			Ticket:   redeemed,
		}, nil

	case errors.Is(err, status.ErrExpired):
		return &ScanResult{
			Admitted: false,
			Reason:   ReasonExpired,
			Message:  "ticket expired",
			Ticket:   redeemed,
		}, nil

	default:
		return nil, err
	}
}
