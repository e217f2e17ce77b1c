package usecase

import (
	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

const genericBinaryMIME = "application/octet-stream"

// FileClassifier applies the type rules in a fixed order; the first match wins.
// It performs no I/O.
type FileClassifier struct {
	rules ports.FileTypeRules
}

func NewFileClassifier(rules ports.FileTypeRules) *FileClassifier {
	return &FileClassifier{rules: rules}
}

func (c *FileClassifier) Classify(file domain.SubmittedFile) domain.ClassifiedFile {
	kind := c.resolve(file.Extension(), file.NormalizedMIME(), file.Size())
	return domain.ClassifiedFile{
		File:               file,
		Kind:               kind,
		NeedsNormalization: kind.NeedsNormalization(),
	}
}

func (c *FileClassifier) resolve(ext, mime string, size int) domain.FileKind {
	if ext != "" && c.rules.Blocked(ext) {
		return domain.KindUnsupported
	}
	if c.rules.PlainText(ext, mime) {
		return domain.KindPlainText
	}
	if kind, ok := c.rules.Accepted(ext, mime); ok {
		return kind
	}
	// Some mobile camera pickers hand over bytes with no name and no type.
	if ext == "" && (mime == "" || mime == genericBinaryMIME) && size > 0 {
		return domain.KindUnknownBinary
	}
	return domain.KindUnsupported
}
