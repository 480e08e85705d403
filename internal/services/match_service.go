package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"match-ticketing/internal/status"
	"match-ticketing/internal/store"
	"match-ticketing/models"
)

// MatchService covers the minimal match surface the ticketing core needs:
// creating a sellable match and reading it back. Editing and deleting
// matches is out of scope here.
type MatchService struct {
	matches store.MatchStore
	now     func() time.Time
}

func NewMatchService(matches store.MatchStore) *MatchService {
	return &MatchService{matches: matches, now: time.Now}
}

type CreateMatchRequest struct {
	TeamA            string
	TeamB            string
	KickoffAt        time.Time
	Stadium          string
	City             string
	Competition      string
	StandardPrice    decimal.Decimal
	VIPPrice         *decimal.Decimal
	StandardCapacity int
	VIPCapacity      *int
	SaleCutoff       *time.Time
	CreatedBy        string
}

func (s *MatchService) CreateMatch(ctx context.Context, req CreateMatchRequest) (*models.Match, error) {
	if req.TeamA == "" || req.TeamB == "" {
		return nil, fmt.Errorf("both team names are required")
	}
	if req.StandardCapacity <= 0 {
		return nil, fmt.Errorf("standard capacity must be positive")
	}
	if req.StandardPrice.IsNegative() {
		return nil, fmt.Errorf("standard price must not be negative")
	}
	if (req.VIPPrice == nil) != (req.VIPCapacity == nil) {
		return nil, fmt.Errorf("vip price and vip capacity must be set together")
	}
	if req.VIPCapacity != nil && *req.VIPCapacity <= 0 {
		return nil, fmt.Errorf("vip capacity must be positive")
	}

	match := &models.Match{
		ID:               uuid.NewString(),
		TeamA:            req.TeamA,
		TeamB:            req.TeamB,
		KickoffAt:        req.KickoffAt,
		Stadium:          req.Stadium,
		City:             req.City,
		Competition:      req.Competition,
		Status:           models.MatchScheduled,
		StandardPrice:    req.StandardPrice,
		VIPPrice:         req.VIPPrice,
		StandardCapacity: req.StandardCapacity,
		VIPCapacity:      req.VIPCapacity,
		SaleCutoff:       req.SaleCutoff,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.matches.InsertMatch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *MatchService) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	match, err := s.matches.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *MatchService) ListMatches(ctx context.Context) ([]*models.Match, error) {
	return s.matches.ListMatches(ctx)
}
