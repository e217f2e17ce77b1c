package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(4)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(context.Background(), "k", "text", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, ok, _ := c.Get(context.Background(), "k"); !ok || got != "text" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryCacheEvictsWhenFull(t *testing.T) {
	c := NewMemoryCache(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", time.Minute)
	_ = c.Set(ctx, "b", "2", time.Hour)
	_ = c.Set(ctx, "c", "3", time.Hour)

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("expected entry closest to expiry to be evicted")
	}
	if _, ok, _ := c.Get(ctx, "c"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}
}

type countingExtractor struct {
	calls int
	text  string
	err   error
}

func (c *countingExtractor) Extract(context.Context, domain.ClassifiedFile) (string, error) {
	c.calls++
	return c.text, c.err
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func bill(data string) domain.ClassifiedFile {
	return domain.ClassifiedFile{File: domain.SubmittedFile{Name: "bill.pdf", Data: []byte(data)}, Kind: domain.KindPDF}
}

func TestExtractorServesRepeatFromCache(t *testing.T) {
	next := &countingExtractor{text: "Bill: $42"}
	extractor := NewExtractor(next, NewMemoryCache(8), time.Hour, nil)

	for i := 0; i < 3; i++ {
		text, err := extractor.Extract(context.Background(), bill("%PDF same"))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if text != "Bill: $42" {
			t.Fatalf("text = %q", text)
		}
	}
	if next.calls != 1 {
		t.Fatalf("next calls = %d, want 1", next.calls)
	}

	if _, err := extractor.Extract(context.Background(), bill("%PDF other")); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("next calls = %d, want 2", next.calls)
	}
}

func TestExtractorDoesNotCacheFailures(t *testing.T) {
	next := &countingExtractor{err: errors.New("ocr down")}
	extractor := NewExtractor(next, NewMemoryCache(8), time.Hour, nil)

	for i := 0; i < 2; i++ {
		if _, err := extractor.Extract(context.Background(), bill("%PDF x")); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("next calls = %d, want 2", next.calls)
	}
}

func TestExtractorSurvivesBrokenStore(t *testing.T) {
	next := &countingExtractor{text: "ok"}
	text, err := NewExtractor(next, brokenStore{}, time.Hour, nil).Extract(context.Background(), bill("%PDF x"))
	if err != nil || text != "ok" {
		t.Fatalf("Extract() = %q, %v", text, err)
	}
}

func TestKeyDependsOnContentType(t *testing.T) {
	data := []byte("same bytes")
	asPDF := domain.ClassifiedFile{File: domain.SubmittedFile{Data: data}, Kind: domain.KindPDF}
	asPNG := domain.ClassifiedFile{File: domain.SubmittedFile{Data: data}, Kind: domain.KindPNG}
	if Key(asPDF) == Key(asPNG) {
		t.Fatalf("expected different keys for different content types")
	}
}
