package plaintext

import (
	"bytes"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

const msgNotText = "This file does not look like readable text. Upload a photo or a PDF instead."

// Share of control characters above which decoded bytes are treated as binary.
const maxControlRatio = 0.1

// Extractor reads text uploads directly, without calling the OCR service.
// Bytes that are not UTF-8 are read as Windows-1252, the usual encoding of
// spreadsheet exports on Windows.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw := file.File.Data
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", domain.NewFailure(domain.ErrRejectedInput, msgNotText, nil)
	}

	var text string
	if utf8.Valid(raw) {
		text = strings.TrimPrefix(string(raw), "\ufeff")
	} else {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", domain.NewFailure(domain.ErrRejectedInput, msgNotText, err)
		}
		text = string(decoded)
	}

	if looksBinary(text) {
		return "", domain.NewFailure(domain.ErrRejectedInput, msgNotText, nil)
	}
	return strings.TrimSpace(text), nil
}

func looksBinary(text string) bool {
	var total, control int
	for _, r := range text {
		total++
		switch {
		case r == '\n', r == '\r', r == '\t', r == '\f':
		case r == utf8.RuneError, unicode.IsControl(r):
			control++
		}
	}
	return total > 0 && float64(control)/float64(total) > maxControlRatio
}
