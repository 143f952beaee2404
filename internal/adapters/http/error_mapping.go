package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

const msgInternalError = "Internal server error"

type httpStatusCarrier interface {
	HTTPStatus() int
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrPaymentVerification):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionState), domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstream):
		var carrier httpStatusCarrier
		if errors.As(err, &carrier) && carrier.HTTPStatus() >= 400 && carrier.HTTPStatus() <= 599 {
			return carrier.HTTPStatus()
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err. Internal and configuration
// failures never leak their cause.
func errorMessage(err error) string {
	if msg := domain.PublicMessage(err, ""); msg != "" {
		return msg
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "Please fix the highlighted fields"
	}
	switch {
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "Authentication required"
	case domain.IsKind(err, domain.ErrNotFound):
		return "Not found"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "Invalid request"
	case domain.IsKind(err, domain.ErrSessionState):
		return "Session is not ready for this action"
	case domain.IsKind(err, domain.ErrConflict):
		return "This request conflicts with the current state"
	case domain.IsKind(err, domain.ErrTemporary):
		return "Service temporarily unavailable. Please try again."
	case domain.IsKind(err, domain.ErrUpstream):
		return "Upstream service error"
	default:
		return msgInternalError
	}
}
