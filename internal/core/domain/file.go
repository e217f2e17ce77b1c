package domain

import (
	"path/filepath"
	"strings"
)

type FileKind string

const (
	KindPDF           FileKind = "pdf"
	KindJPEG          FileKind = "jpeg"
	KindPNG           FileKind = "png"
	KindTIFF          FileKind = "tiff"
	KindWEBP          FileKind = "webp"
	KindHEIC          FileKind = "heic"
	KindHEIF          FileKind = "heif"
	KindPlainText     FileKind = "plain_text"
	KindUnknownBinary FileKind = "unknown_binary"
	KindUnsupported   FileKind = "unsupported"
)

// MIME returns the canonical content type sent to the extraction service.
// UnknownBinary and Unsupported have no canonical type.
func (k FileKind) MIME() string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindJPEG:
		return "image/jpeg"
	case KindPNG:
		return "image/png"
	case KindTIFF:
		return "image/tiff"
	case KindWEBP:
		return "image/webp"
	case KindHEIC:
		return "image/heic"
	case KindHEIF:
		return "image/heif"
	case KindPlainText:
		return "text/plain"
	default:
		return ""
	}
}

func (k FileKind) NeedsNormalization() bool {
	return k == KindHEIC || k == KindHEIF || k == KindWEBP
}

// SubmittedFile is one user-selected file. It lives only for the duration of a run.
type SubmittedFile struct {
	Name         string `json:"name"`
	DeclaredMIME string `json:"declared_mime,omitempty"`
	Data         []byte `json:"-"`
}

func (f SubmittedFile) Size() int {
	return len(f.Data)
}

// Extension returns the lowercased extension without the leading dot.
func (f SubmittedFile) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(f.Name))), ".")
}

// NormalizedMIME returns the declared MIME lowercased and stripped of parameters.
func (f SubmittedFile) NormalizedMIME() string {
	mime := strings.ToLower(strings.TrimSpace(f.DeclaredMIME))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

type ClassifiedFile struct {
	File               SubmittedFile
	Kind               FileKind
	NeedsNormalization bool
}

// SourceFile is the metadata of a submitted file kept on a run for later export.
type SourceFile struct {
	Name         string   `json:"name"`
	DeclaredMIME string   `json:"declared_mime,omitempty"`
	Size         int      `json:"size"`
	Kind         FileKind `json:"kind,omitempty"`
}
