package status

import "errors"

var (
	ErrMatchNotFound    = errors.New("match: match not found")
	ErrTicketNotFound   = errors.New("ticket: ticket not found")
	ErrForbidden        = errors.New("ticket: not the ticket owner")
	ErrSalesClosed      = errors.New("match: ticket sales closed")
	ErrCapacityExceeded = errors.New("match: no tickets available")
	ErrInvalidClass     = errors.New("match: ticket type not available")
	ErrPaymentFailed    = errors.New("payment: payment failed")
	ErrAlreadyUsed      = errors.New("ticket: ticket already used")
	ErrCancelled        = errors.New("ticket: ticket cancelled")
	ErrExpired          = errors.New("ticket: ticket expired")
	ErrInvalidToken     = errors.New("token: invalid admission token")
)

var clientErrors = []error{
	ErrMatchNotFound,
	ErrTicketNotFound,
	ErrForbidden,
	ErrSalesClosed,
	ErrCapacityExceeded,
	ErrInvalidClass,
	ErrAlreadyUsed,
	ErrCancelled,
	ErrExpired,
	ErrInvalidToken,
}

// IsClientError reports whether err was caused by the caller. Provider-side
// failures (ErrPaymentFailed) are excluded so callers can treat them as
// retryable.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
