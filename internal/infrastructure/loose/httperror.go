package loose

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 2048

// HTTPStatusError is a non-2xx response from a collaborator service.
// Message is safe to show to the user.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, e.Message)
}

// ReadHTTPError builds an HTTPStatusError whose Message is the most specific
// text available: detail, message, error, raw body, then a status line.
func ReadHTTPError(service, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	raw := strings.TrimSpace(string(body))

	msg := ""
	if obj, err := Decode(body); err == nil {
		msg = FirstString(obj, "detail", "message", "error", "detail.message", "error.message")
	}
	if msg == "" {
		msg = raw
	}
	if msg == "" {
		msg = fmt.Sprintf("%s %s failed with HTTP %d.", service, operation, resp.StatusCode)
	}
	return &HTTPStatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    msg,
	}
}
