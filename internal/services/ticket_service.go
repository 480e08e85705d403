package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"match-ticketing/internal/capacity"
	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/internal/token"
	"match-ticketing/models"
	"match-ticketing/monitoring"
	"match-ticketing/utils"
)

// serialAttempts bounds retries when a generated serial collides with an
// existing one.
const serialAttempts = 5

// Holder carries the optional on-ticket contact details.
type Holder struct {
	Name  string
	Phone string
}

// TicketService owns the ticket state machine: issuance under the capacity
// ledger, redemption, cancellation and expiry.
type TicketService struct {
	store        store.Store
	codec        *token.Codec
	ledger       *capacity.Ledger
	locker       capacity.MatchLocker
	serialPrefix string
	now          func() time.Time
}

func NewTicketService(st store.Store, codec *token.Codec, ledger *capacity.Ledger, locker capacity.MatchLocker, serialPrefix string) *TicketService {
	return &TicketService{
		store:        st,
		codec:        codec,
		ledger:       ledger,
		locker:       locker,
		serialPrefix: serialPrefix,
		now:          time.Now,
	}
}

// Issue creates a Valid ticket for the match. The capacity check and the
// insert run under the per-match lock, so two purchases racing for the last
// seat cannot both win.
func (s *TicketService) Issue(ctx context.Context, matchID string, class models.TicketType, ownerID string, price decimal.Decimal, paymentID string, holder Holder) (*models.Ticket, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrMatchNotFound
		}
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("acquire match lock: %w", err)
	}
	defer unlock()

	if err := s.ledger.TryReserve(ctx, match, class); err != nil {
		if errors.Is(err, status.ErrCapacityExceeded) {
			monitoring.TrackCapacityRejection(matchID)
		}
		return nil, err
	}

	ticket, err := s.createTicket(ctx, match, class, ownerID, price, paymentID, holder)
	if err != nil {
		return nil, err
	}

	monitoring.TrackTicketIssued(matchID, string(class))
	logrus.WithFields(logrus.Fields{
		"serial":   ticket.Serial,
		"match_id": matchID,
		"type":     class,
	}).Info("ticket issued")

	return ticket, nil
}

// createTicket allocates id, serial and token, and inserts. Serial
// collisions are retried; a token collision means the same ticket id was
// generated twice and is not survivable.
func (s *TicketService) createTicket(ctx context.Context, match *models.Match, class models.TicketType, ownerID string, price decimal.Decimal, paymentID string, holder Holder) (*models.Ticket, error) {
	for attempt := 0; attempt < serialAttempts; attempt++ {
		serial, err := s.generateSerial()
		if err != nil {
			return nil, err
		}
		id := uuid.NewString()
		admissionToken, err := s.codec.Encode(id, serial)
		if err != nil {
			return nil, err
		}

		ticket := &models.Ticket{
			ID:          id,
			Serial:      serial,
			Type:        class,
			Status:      models.TicketValid,
			Price:       price,
			Token:       admissionToken,
			HolderName:  holder.Name,
			HolderPhone: holder.Phone,
			UserID:      ownerID,
			MatchID:     match.ID,
			PaymentID:   paymentID,
			CreatedAt:   s.now().UTC(),
		}

		err = s.store.InsertTicket(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("insert ticket: %w", err)
		}
	}
	return nil, fmt.Errorf("ticket serial allocation kept colliding after %d attempts", serialAttempts)
}

// Redeem transitions Valid->Used exactly once. The conditional store update
// is the serialization point: of N concurrent redeems only one observes the
// Valid state. Non-Valid tickets are returned alongside the state error so
// the scanner can show when the ticket was first used.
func (s *TicketService) Redeem(ctx context.Context, ticketID string) (*models.Ticket, error) {
	done, err := s.store.MarkUsed(ctx, ticketID, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrTicketNotFound
		}
		return nil, err
	}

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrTicketNotFound
		}
		return nil, err
	}
	if done {
		return ticket, nil
	}

	switch ticket.Status {
	case models.TicketUsed:
		return ticket, status.ErrAlreadyUsed
	case models.TicketCancelled:
		return ticket, status.ErrCancelled
	default:
		return ticket, status.ErrExpired
	}
}

// Cancel transitions Valid->Cancelled for the ticket owner. Used tickets
// cannot be cancelled; cancelling twice is a deterministic no-op.
func (s *TicketService) Cancel(ctx context.Context, ticketID, requesterID string) error {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return status.ErrTicketNotFound
		}
		return err
	}
	if ticket.UserID != requesterID {
		return status.ErrForbidden
	}

	done, err := s.store.MarkCancelled(ctx, ticketID, s.now().UTC())
	if err != nil {
		return err
	}
	if done {
		logrus.WithField("serial", ticket.Serial).Info("ticket cancelled")
		return nil
	}

	current, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	switch current.Status {
	case models.TicketCancelled:
		return nil
	case models.TicketUsed:
		return status.ErrAlreadyUsed
	default:
		return status.ErrExpired
	}
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) ListUserTickets(ctx context.Context, userID string) ([]*models.Ticket, error) {
	return s.store.ListUserTickets(ctx, userID)
}

func (s *TicketService) ListMatchTickets(ctx context.Context, matchID string) ([]*models.Ticket, error) {
	return s.store.ListMatchTickets(ctx, matchID)
}

// RunExpirySweeper periodically expires Valid tickets of concluded matches.
// Blocks until ctx is cancelled.
func (s *TicketService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval).Info("expiry sweeper started")
	for {
		select {
		case <-ticker.C:
			s.expireConcluded(ctx)
		case <-ctx.Done():
			logrus.Info("expiry sweeper stopping")
			return
		}
	}
}

func (s *TicketService) expireConcluded(ctx context.Context) {
	// A match is past redeeming once kickoff is more than a match-length ago.
	cutoff := s.now().Add(-3 * time.Hour)
	matches, err := s.store.ListConcluded(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("expiry sweep: list concluded matches")
		return
	}

	for _, match := range matches {
		expired, err := s.store.ExpireMatchTickets(ctx, match.ID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"match_id": match.ID,
				"error":    err,
			}).Error("expiry sweep: expire tickets")
			continue
		}
		if expired > 0 {
			monitoring.TrackTicketsExpired(match.ID, expired)
			logrus.WithFields(logrus.Fields{
				"match_id": match.ID,
				"expired":  expired,
			}).Info("expired tickets for concluded match")
		}
	}
}

// generateSerial builds PREFIX-yyyyMMdd-XXXXX.
func (s *TicketService) generateSerial() (string, error) {
	suffix, err := utils.GenerateSerialSuffix(5)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", s.serialPrefix, s.now().UTC().Format("20060102"), suffix), nil
}
