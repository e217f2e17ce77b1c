// Package sniff types unlabeled payloads from their leading bytes.
package sniff

import (
	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// FallbackMIME is used when neither metadata nor bytes identify the payload.
// Unlabeled mobile camera captures are almost always JPEG.
const FallbackMIME = "image/jpeg"

var supported = map[string]domain.FileKind{
	"application/pdf": domain.KindPDF,
	"image/jpeg":      domain.KindJPEG,
	"image/png":       domain.KindPNG,
	"image/tiff":      domain.KindTIFF,
	"image/webp":      domain.KindWEBP,
	"image/heic":      domain.KindHEIC,
	"image/heif":      domain.KindHEIF,
}

// Kind detects a supported kind from data. It walks up the detected MIME
// hierarchy so that specialised subtypes resolve to their base format.
func Kind(data []byte) (domain.FileKind, bool) {
	if len(data) == 0 {
		return "", false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if kind, ok := supported[m.String()]; ok {
			return kind, true
		}
	}
	return "", false
}

// ResolveMIME returns the Content-Type to transmit for a classified file.
func ResolveMIME(file domain.ClassifiedFile) string {
	if file.Kind != domain.KindUnknownBinary {
		if mime := file.Kind.MIME(); mime != "" {
			return mime
		}
	}
	if kind, ok := Kind(file.File.Data); ok {
		return kind.MIME()
	}
	return FallbackMIME
}
