package loose

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/resilience"
)

// ToFailure maps a client error onto the user-facing error taxonomy.
// Context errors pass through untouched so callers can tell cancellation apart.
func ToFailure(service string, kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var failure *domain.Failure
	if errors.As(err, &failure) {
		return err
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return domain.NewFailure(kind, httpErr.Message, err)
	}
	if resilience.IsCircuitOpen(err) {
		return domain.NewFailure(domain.ErrTransport,
			fmt.Sprintf("The %s service is temporarily unavailable. Please try again shortly.", service), err)
	}
	return domain.NewFailure(domain.ErrTransport,
		fmt.Sprintf("Could not reach the %s service. Check your connection and try again.", service), err)
}

// CountsAgainstBreaker reports whether err suggests the service is unhealthy.
func CountsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError || httpErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
