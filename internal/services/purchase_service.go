package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/models"
	"match-ticketing/monitoring"
)

// PurchaseRequest is everything a buyer submits for one ticket.
type PurchaseRequest struct {
	MatchID string
	Class   models.TicketType
	OwnerID string
	Method  models.PaymentMethod
	Phone   string
	Holder  Holder
}

// PurchaseService coordinates payment confirmation and ticket issuance as
// one logical unit of work. Money is only taken before the seat is reserved;
// the match lock is never held across a provider call.
type PurchaseService struct {
	matches  store.MatchStore
	tickets  *TicketService
	payments *PaymentService
	notifier *Notifier
	now      func() time.Time
}

func NewPurchaseService(matches store.MatchStore, tickets *TicketService, payments *PaymentService, notifier *Notifier) *PurchaseService {
	return &PurchaseService{
		matches:  matches,
		tickets:  tickets,
		payments: payments,
		notifier: notifier,
		now:      time.Now,
	}
}

// Purchase resolves the price, collects payment when the class is paid, then
// issues the ticket under the capacity ledger. A paid-but-unissuable ticket
// triggers a refund instead of silently dropping the money.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*models.Ticket, error) {
	match, err := s.matches.GetMatch(ctx, req.MatchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrMatchNotFound
		}
		return nil, err
	}

	// Fail fast before any money moves. The authoritative check repeats
	// under the match lock inside Issue.
	if !match.SalesOpen(s.now()) {
		return nil, status.ErrSalesClosed
	}
	price, err := match.ResolvePrice(req.Class)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	if price.IsPositive() {
		payment, err = s.payments.Collect(ctx, req.OwnerID, price, req.Method, req.Phone)
		if err != nil {
			monitoring.TrackPurchase("payment_failed")
			return nil, err
		}
	}

	paymentID := ""
	if payment != nil {
		paymentID = payment.ID
	}

	ticket, err := s.tickets.Issue(ctx, req.MatchID, req.Class, req.OwnerID, price, paymentID, req.Holder)
	if err != nil {
		if payment != nil {
			s.compensate(ctx, payment, err)
		}
		monitoring.TrackPurchase("rejected")
		return nil, err
	}

	monitoring.TrackPurchase("success")
	s.notifier.NotifyUser(req.OwnerID, map[string]any{
		"type":     "ticket_issued",
		"serial":   ticket.Serial,
		"match_id": ticket.MatchID,
	})

	return ticket, nil
}

// compensate refunds a payment whose ticket could not be issued. Refund
// failures are logged for manual reconciliation; they never mask the
// issuance error returned to the caller.
func (s *PurchaseService) compensate(ctx context.Context, payment *models.Payment, cause error) {
	logrus.WithFields(logrus.Fields{
		"reference": payment.Reference,
		"cause":     cause,
	}).Warn("issuance failed after payment success, refunding")

	if err := s.payments.Refund(ctx, payment); err != nil {
		logrus.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"error":     err,
		}).Error("compensating refund failed")
	}
}
