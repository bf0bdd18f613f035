package httpadapter

import (
	"net/http"

	"github.com/printpoint/handoff/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyConsumed):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrExpired), domain.IsKind(err, domain.ErrInvalidCode):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrDelivery):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// redemptionErrorBody hides which check failed: a wrong code, an expired
// code and an unknown document all read the same to the kiosk, so the
// response cannot be used to probe for valid document ids.
func redemptionErrorBody(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case domain.IsKind(err, domain.ErrInvalidCode),
		domain.IsKind(err, domain.ErrExpired),
		domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound, "invalid or expired code"
	case domain.IsKind(err, domain.ErrAlreadyConsumed):
		return http.StatusConflict, "document already printed"
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrDelivery):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
