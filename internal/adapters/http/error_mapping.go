package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUsageExhausted):
		return http.StatusPaymentRequired
	case domain.IsKind(err, domain.ErrNoRun):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrRejectedInput):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrTransport):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrExtractionFailed), domain.IsKind(err, domain.ErrInterpretationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns text that is safe to show to the caller.
func errorMessage(err error) string {
	var failure *domain.Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	switch mapErrorToHTTPStatus(err) {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusNotFound:
		return "No document has been processed yet."
	default:
		return "Something went wrong. Please try again."
	}
}
