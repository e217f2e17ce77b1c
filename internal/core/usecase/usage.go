package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

// UsageGate limits the number of successful runs a client may make for free.
type UsageGate struct {
	store    ports.UsageStore
	freeRuns int
	logger   *slog.Logger
}

func NewUsageGate(store ports.UsageStore, freeRuns int, logger *slog.Logger) *UsageGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageGate{store: store, freeRuns: freeRuns, logger: logger}
}

func (g *UsageGate) enabled(clientID string) bool {
	return g != nil && g.store != nil && g.freeRuns > 0 && strings.TrimSpace(clientID) != ""
}

// Check rejects a client that has used up its free runs.
func (g *UsageGate) Check(ctx context.Context, clientID string) error {
	if !g.enabled(clientID) {
		return nil
	}
	used, err := g.store.Count(ctx, clientID)
	if err != nil {
		// An unreachable counter must not block the user.
		g.logger.Warn("usage_count_failed", "client_id", clientID, "error", err)
		return nil
	}
	if used >= g.freeRuns {
		return domain.NewFailure(domain.ErrUsageExhausted, domain.MsgUsageExhausted, nil)
	}
	return nil
}

// Record counts one successful run.
func (g *UsageGate) Record(ctx context.Context, clientID string) {
	if !g.enabled(clientID) {
		return
	}
	used, err := g.store.Increment(ctx, clientID)
	if err != nil {
		g.logger.Warn("usage_increment_failed", "client_id", clientID, "error", err)
		return
	}
	g.logger.Debug("usage_recorded", "client_id", clientID, "used", used, "free_runs", g.freeRuns)
}
