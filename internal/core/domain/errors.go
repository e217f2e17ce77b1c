package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRejectedInput        = errors.New("rejected input")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrInterpretationFailed = errors.New("interpretation failed")
	ErrTransport            = errors.New("transport failure")
	ErrBusy                 = errors.New("pipeline busy")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUsageExhausted       = errors.New("usage exhausted")
	ErrNoRun                = errors.New("no pipeline run")
)

const (
	MsgUnsupportedFile = "Unsupported file. Upload a photo, a PDF, or a text file."
	MsgEmptyOCR        = "OCR returned no text — try a clearer photo or PDF"
	MsgOCRTimeout      = "OCR is taking too long. Please try again or upload a smaller/clearer document."
	MsgOCRJobFailed    = "OCR job failed."
	MsgNoJobID         = "OCR start did not return a job_id."
	MsgUsageExhausted  = "You've used your free runs."
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Failure is an error carrying a message that can be shown to the user as is.
type Failure struct {
	Kind    error
	Message string
	Err     error
}

func NewFailure(kind error, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: strings.TrimSpace(message), Err: cause}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() []error {
	out := make([]error, 0, 2)
	if f.Kind != nil {
		out = append(out, f.Kind)
	}
	if f.Err != nil {
		out = append(out, f.Err)
	}
	return out
}

// UserMessage returns the most specific user-facing message carried by err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var failure *Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return err.Error()
}
