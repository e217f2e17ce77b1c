package photo

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeConvertsDecodableImageToJPEG(t *testing.T) {
	file := domain.ClassifiedFile{
		File:               domain.SubmittedFile{Name: "scan.webp", DeclaredMIME: "image/webp", Data: pngBytes(t)},
		Kind:               domain.KindWEBP,
		NeedsNormalization: true,
	}

	out, err := NewNormalizer(0, nil).Normalize(context.Background(), file)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out.Kind != domain.KindJPEG || out.NeedsNormalization {
		t.Fatalf("unexpected kind %q normalize=%v", out.Kind, out.NeedsNormalization)
	}
	if out.File.Name != "scan.jpg" || out.File.DeclaredMIME != "image/jpeg" {
		t.Fatalf("unexpected file %q %q", out.File.Name, out.File.DeclaredMIME)
	}
	img, err := jpeg.Decode(bytes.NewReader(out.File.Data))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Fatalf("unexpected bounds %v", b)
	}
}

func TestNormalizeKeepsUndecodableOriginal(t *testing.T) {
	file := domain.ClassifiedFile{
		File:               domain.SubmittedFile{Name: "IMG_0001.HEIC", Data: []byte("\x00\x00\x00\x18ftypheic junk")},
		Kind:               domain.KindHEIC,
		NeedsNormalization: true,
	}

	out, err := NewNormalizer(92, nil).Normalize(context.Background(), file)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out.Kind != domain.KindHEIC || out.File.Name != "IMG_0001.HEIC" || !bytes.Equal(out.File.Data, file.File.Data) {
		t.Fatalf("expected original file back, got %+v", out.File.Name)
	}
}

func TestJPEGName(t *testing.T) {
	tests := map[string]string{
		"photo.heic":  "photo.jpg",
		"a.b.webp":    "a.b.jpg",
		"":            "photo.jpg",
		"noextension": "noextension.jpg",
	}
	for in, want := range tests {
		if got := jpegName(in); got != want {
			t.Fatalf("jpegName(%q) = %q, want %q", in, got, want)
		}
	}
}
