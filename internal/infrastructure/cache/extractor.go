package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/sniff"
)

// Extractor serves repeated uploads from the cache. Cache failures are logged
// and never fail the extraction itself.
type Extractor struct {
	next   ports.TextExtractor
	store  ports.ExtractionCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewExtractor(next ports.TextExtractor, store ports.ExtractionCache, ttl time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{next: next, store: store, ttl: ttl, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	key := Key(file)

	text, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("extraction_cache_get_failed", "error", err)
	}
	if ok && strings.TrimSpace(text) != "" {
		e.logger.Info("extraction_cache_hit", "file", file.File.Name)
		return text, nil
	}

	text, err = e.next.Extract(ctx, file)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		if err := e.store.Set(ctx, key, text, e.ttl); err != nil {
			e.logger.Warn("extraction_cache_set_failed", "error", err)
		}
	}
	return text, nil
}

// Key hashes the payload together with the content type it is sent as.
func Key(file domain.ClassifiedFile) string {
	h := sha256.New()
	h.Write([]byte(sniff.ResolveMIME(file)))
	h.Write([]byte{0})
	h.Write(file.File.Data)
	return hex.EncodeToString(h.Sum(nil))
}
