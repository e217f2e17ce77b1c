package memory

import (
	"context"
	"sync"
	"testing"
)

func TestUsageRepositoryCountsPerClient(t *testing.T) {
	repo := NewUsageRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Increment(ctx, "a")
		}()
	}
	wg.Wait()
	_, _ = repo.Increment(ctx, "b")

	if got, _ := repo.Count(ctx, "a"); got != 10 {
		t.Fatalf("Count(a) = %d, want 10", got)
	}
	if got, _ := repo.Count(ctx, "b"); got != 1 {
		t.Fatalf("Count(b) = %d, want 1", got)
	}
	if got, _ := repo.Count(ctx, "missing"); got != 0 {
		t.Fatalf("Count(missing) = %d, want 0", got)
	}
}
