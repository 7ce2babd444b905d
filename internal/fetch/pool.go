package fetch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Result pairs a worker's output with the error it produced.
type Result[R any] struct {
	Value R
	Err   error
}

// MapBounded runs worker over items with at most concurrency goroutines
// pulling from a shared index. Results are re-aligned to input order
// regardless of completion order, so callers never observe reordering.
func MapBounded[T, R any](ctx context.Context, items []T, concurrency int, worker func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	var next int64
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&next, 1)) - 1
				if i >= len(items) {
					return
				}
				v, err := worker(ctx, items[i])
				results[i] = Result[R]{Value: v, Err: err}
			}
		}()
	}
	wg.Wait()

	return results
}
