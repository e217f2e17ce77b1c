package ports

import (
	"context"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// PipelineService is the inbound contract for running one submission at a time.
type PipelineService interface {
	Run(ctx context.Context, sub domain.Submission) (domain.PipelineRun, error)
	Start(ctx context.Context, sub domain.Submission) (string, error)
	Current() (domain.PipelineRun, bool)
	Clear()
	Busy() bool
}

// FileClassifier resolves the effective content type of a submitted file.
type FileClassifier interface {
	Classify(file domain.SubmittedFile) domain.ClassifiedFile
}
