// Package pdftext reads the embedded text layer of digital PDFs and only
// falls back to OCR when the layer is missing or too thin.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

const defaultMinChars = 40

type Extractor struct {
	next     ports.TextExtractor
	minChars int
	logger   *slog.Logger
	read     func(data []byte) (string, error)
}

func NewExtractor(next ports.TextExtractor, minChars int, logger *slog.Logger) *Extractor {
	if minChars <= 0 {
		minChars = defaultMinChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		next:     next,
		minChars: minChars,
		logger:   logger,
		read:     readTextLayer,
	}
}

func (e *Extractor) Extract(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	if file.Kind != domain.KindPDF {
		return e.next.Extract(ctx, file)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.read(file.File.Data)
	if err != nil {
		e.logger.Debug("pdf_text_layer_unavailable", "file", file.File.Name, "error", err)
		return e.next.Extract(ctx, file)
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < e.minChars {
		e.logger.Debug("pdf_text_layer_too_short", "file", file.File.Name, "chars", len([]rune(text)))
		return e.next.Extract(ctx, file)
	}

	e.logger.Info("pdf_text_layer_used", "file", file.File.Name, "chars", len([]rune(text)))
	return text, nil
}

// readTextLayer returns the concatenated plain text of every page. The pdf
// reader panics on some malformed inputs, so panics are turned into errors.
func readTextLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}
