// Package photo converts phone photo formats into JPEG before they are sent
// to the extraction service.
package photo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

const JPEGQuality = 92

type Normalizer struct {
	quality int
	logger  *slog.Logger
}

func NewNormalizer(quality int, logger *slog.Logger) *Normalizer {
	if quality <= 0 || quality > 100 {
		quality = JPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{quality: quality, logger: logger}
}

// Normalize re-encodes the image as JPEG. A file that cannot be decoded is
// returned unchanged so the extraction service can still try it.
func (n *Normalizer) Normalize(ctx context.Context, file domain.ClassifiedFile) (domain.ClassifiedFile, error) {
	if err := ctx.Err(); err != nil {
		return file, err
	}

	img, err := imaging.Decode(bytes.NewReader(file.File.Data), imaging.AutoOrientation(true))
	if err != nil {
		n.logger.Warn("photo_decode_failed", "file", file.File.Name, "kind", file.Kind, "error", err)
		return file, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return file, fmt.Errorf("encode jpeg: %w", err)
	}

	out := file
	out.File = domain.SubmittedFile{
		Name:         jpegName(file.File.Name),
		DeclaredMIME: domain.KindJPEG.MIME(),
		Data:         buf.Bytes(),
	}
	out.Kind = domain.KindJPEG
	out.NeedsNormalization = false

	n.logger.Info("photo_normalized",
		"file", file.File.Name,
		"from", file.Kind,
		"bytes_in", file.File.Size(),
		"bytes_out", buf.Len(),
	)
	return out, nil
}

func jpegName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.TrimSpace(base) == "" {
		base = "photo"
	}
	return base + ".jpg"
}
