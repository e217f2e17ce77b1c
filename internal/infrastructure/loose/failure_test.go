package loose

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

func TestToFailureUsesServiceMessage(t *testing.T) {
	err := ToFailure("OCR", domain.ErrExtractionFailed, &HTTPStatusError{StatusCode: 422, Message: "Unreadable image"})
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if domain.UserMessage(err) != "Unreadable image" {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}
}

func TestToFailureMarksNetworkErrorsAsTransport(t *testing.T) {
	err := ToFailure("OCR", domain.ErrExtractionFailed, errors.New("dial tcp 127.0.0.1:1: connect: connection refused"))
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	err = ToFailure("OCR", domain.ErrExtractionFailed, gobreaker.ErrOpenState)
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport for open circuit, got %v", err)
	}
}

func TestToFailureKeepsContextErrors(t *testing.T) {
	if err := ToFailure("OCR", domain.ErrExtractionFailed, context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCountsAgainstBreaker(t *testing.T) {
	if CountsAgainstBreaker(&HTTPStatusError{StatusCode: http.StatusBadRequest}) {
		t.Fatalf("4xx must not trip the breaker")
	}
	if !CountsAgainstBreaker(&HTTPStatusError{StatusCode: http.StatusBadGateway}) {
		t.Fatalf("5xx must count")
	}
	if CountsAgainstBreaker(context.Canceled) {
		t.Fatalf("cancellation must not count")
	}
}
