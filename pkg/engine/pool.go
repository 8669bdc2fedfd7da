package engine

import (
	"context"
	"sync"
)

// runBounded fans n tasks across at most maxConcurrent goroutines and
// returns their results index-aligned with the inputs. Tasks observe ctx and
// are responsible for failing fast once it is cancelled; the pool itself
// always produces a result per slot.
func runBounded[T any](ctx context.Context, maxConcurrent, n int, fn func(ctx context.Context, i int) T) []T {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	results := make([]T, n)
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = fn(ctx, i)
		}(i)
	}
	wg.Wait()

	return results
}
