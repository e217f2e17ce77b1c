package memory

import (
	"context"
	"sync"
)

// UsageRepository keeps usage counters for the lifetime of the process.
type UsageRepository struct {
	mu   sync.Mutex
	runs map[string]int
}

func NewUsageRepository() *UsageRepository {
	return &UsageRepository{runs: make(map[string]int)}
}

func (r *UsageRepository) Count(_ context.Context, clientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[clientID], nil
}

func (r *UsageRepository) Increment(_ context.Context, clientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[clientID]++
	return r.runs[clientID], nil
}
