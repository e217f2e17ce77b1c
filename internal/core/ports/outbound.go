package ports

import (
	"context"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// FileNormalizer converts exotic image formats before transmission.
type FileNormalizer interface {
	Normalize(ctx context.Context, file domain.ClassifiedFile) (domain.ClassifiedFile, error)
}

// TextExtractor turns one page into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, file domain.ClassifiedFile) (string, error)
}

// Interpreter summarizes, extracts fields from, and translates text.
type Interpreter interface {
	Interpret(ctx context.Context, text, targetLang, uiLang string) (domain.InterpretationResult, error)
}

// Translator renders an explanation into the target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// ChatChannel is a conversational side-channel. Availability is checked at call time.
type ChatChannel interface {
	Available(ctx context.Context) bool
	Say(ctx context.Context, role, text string) error
	SayBullets(ctx context.Context, role, intro string, bullets []string) error
}

// ExtractionCache remembers extraction results by content key.
type ExtractionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string, ttl time.Duration) error
}

// UsageStore counts successful runs per client.
type UsageStore interface {
	Count(ctx context.Context, clientID string) (int, error)
	Increment(ctx context.Context, clientID string) (int, error)
}

// RunExporter renders a finished run into a downloadable document.
type RunExporter interface {
	Export(run domain.PipelineRun) ([]byte, error)
	ContentType() string
}

// PipelineObserver receives lifecycle events of the orchestrator.
type PipelineObserver interface {
	StageChanged(runID string, from, to domain.Stage, elapsed time.Duration)
	FileRejected(extension string)
	ClarificationPresented(mode domain.ClarificationMode, items int)
	RunFinished(run domain.PipelineRun)
}

// FileTypeRules holds the accepted, plain-text and blocked type lists.
type FileTypeRules interface {
	Blocked(ext string) bool
	PlainText(ext, mime string) bool
	Accepted(ext, mime string) (domain.FileKind, bool)
}

// PageBatcher groups page texts into interpretation requests.
type PageBatcher interface {
	Batch(pages []string) []string
}
