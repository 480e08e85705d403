package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"match-ticketing/internal/services"
)

type MatchHandler struct {
	matches *services.MatchService
}

func NewMatchHandler(matches *services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

type createMatchRequest struct {
	TeamA            string           `json:"team_a"`
	TeamB            string           `json:"team_b"`
	KickoffAt        time.Time        `json:"kickoff_at"`
	Stadium          string           `json:"stadium"`
	City             string           `json:"city"`
	Competition      string           `json:"competition"`
	StandardPrice    decimal.Decimal  `json:"standard_price"`
	VIPPrice         *decimal.Decimal `json:"vip_price"`
	StandardCapacity int              `json:"standard_capacity"`
	VIPCapacity      *int             `json:"vip_capacity"`
	SaleCutoff       *time.Time       `json:"sale_cutoff"`
}

// CreateMatch registers a match and opens its ticket sale.
func (h *MatchHandler) CreateMatch(c echo.Context) error {
	var req createMatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	match, err := h.matches.CreateMatch(c.Request().Context(), services.CreateMatchRequest{
		TeamA:            req.TeamA,
		TeamB:            req.TeamB,
		KickoffAt:        req.KickoffAt,
		Stadium:          req.Stadium,
		City:             req.City,
		Competition:      req.Competition,
		StandardPrice:    req.StandardPrice,
		VIPPrice:         req.VIPPrice,
		StandardCapacity: req.StandardCapacity,
		VIPCapacity:      req.VIPCapacity,
		SaleCutoff:       req.SaleCutoff,
		CreatedBy:        currentUserID(c),
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, match)
}

// GetMatch returns one match by id.
func (h *MatchHandler) GetMatch(c echo.Context) error {
	match, err := h.matches.GetMatch(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, match)
}

// ListMatches returns every match, soonest kickoff first.
func (h *MatchHandler) ListMatches(c echo.Context) error {
	matches, err := h.matches.ListMatches(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}
