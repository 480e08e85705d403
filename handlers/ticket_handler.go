package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"match-ticketing/internal/services"
	"match-ticketing/internal/status"
	"match-ticketing/models"
)

type TicketHandler struct {
	purchases *services.PurchaseService
	tickets   *services.TicketService
	scans     *services.ScanService
}

func NewTicketHandler(purchases *services.PurchaseService, tickets *services.TicketService, scans *services.ScanService) *TicketHandler {
	return &TicketHandler{
		purchases: purchases,
		tickets:   tickets,
		scans:     scans,
	}
}

type purchaseRequest struct {
	MatchID       string `json:"match_id"`
	Type          string `json:"type"`
	PaymentMethod string `json:"payment_method"`
	Phone         string `json:"phone"`
	HolderName    string `json:"holder_name"`
	HolderPhone   string `json:"holder_phone"`
}

// PurchaseTicket buys one ticket for the authenticated user.
func (h *TicketHandler) PurchaseTicket(c echo.Context) error {
	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.MatchID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "match_id is required"})
	}

	ticket, err := h.purchases.Purchase(c.Request().Context(), services.PurchaseRequest{
		MatchID: req.MatchID,
		Class:   models.TicketType(req.Type),
		OwnerID: currentUserID(c),
		Method:  models.PaymentMethod(req.PaymentMethod),
		Phone:   req.Phone,
		Holder: services.Holder{
			Name:  req.HolderName,
			Phone: req.HolderPhone,
		},
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, ticket)
}

// GetTicket returns one ticket. Only the owner may read it.
func (h *TicketHandler) GetTicket(c echo.Context) error {
	ticket, err := h.tickets.GetTicket(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return writeError(c, err)
	}
	if ticket.UserID != currentUserID(c) {
		return writeError(c, status.ErrForbidden)
	}
	return c.JSON(http.StatusOK, ticket)
}

// TicketQR renders the admission token as a scannable PNG. Only the
// owner may fetch it, same as GetTicket.
func (h *TicketHandler) TicketQR(c echo.Context) error {
	ticket, err := h.tickets.GetTicket(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return writeError(c, err)
	}
	if ticket.UserID != currentUserID(c) {
		return writeError(c, status.ErrForbidden)
	}

	png, err := qrcode.Encode(ticket.Token, qrcode.Medium, 256)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// MyTickets lists every ticket owned by the authenticated user.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	tickets, err := h.tickets.ListUserTickets(c.Request().Context(), currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// MatchTickets lists every ticket issued for a match. Meant for staff
// dashboards, not buyers.
func (h *TicketHandler) MatchTickets(c echo.Context) error {
	tickets, err := h.tickets.ListMatchTickets(c.Request().Context(), c.PathParam("matchId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

type scanRequest struct {
	Token string `json:"token"`
}

// ScanTicket validates an admission token at the gate. The response is
// always 200 with an admitted flag: a rejected token is a normal outcome
// for a scanner, not a transport error.
func (h *TicketHandler) ScanTicket(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.scans.Scan(c.Request().Context(), req.Token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CancelTicket voids an unused ticket. Cancelling twice is a no-op.
func (h *TicketHandler) CancelTicket(c echo.Context) error {
	err := h.tickets.Cancel(c.Request().Context(), c.PathParam("id"), currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP statuses. Anything outside the
// known taxonomy is a 500 and gets logged with its cause.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, status.ErrMatchNotFound), errors.Is(err, status.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, status.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, status.ErrInvalidClass), errors.Is(err, status.ErrInvalidToken):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case status.IsClientError(err):
		// Sales closed, capacity exhausted and lifecycle conflicts.
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, status.ErrPaymentFailed):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled request error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
