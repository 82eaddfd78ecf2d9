// Package parallel splits index ranges across goroutines for estimators that
// build independent pieces (rows, trees, neighbours) concurrently.
package parallel

import (
	"runtime"
	"sync"
)

// split divides items across workers and calls fn once per contiguous
// [start, end) range. workers <= 0 means runtime.NumCPU().
func split(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold and
// otherwise over runtime.NumCPU() contiguous ranges.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	split(items, runtime.NumCPU(), fn)
}

// ForEach calls fn(i) for every i in [0, items) using at most workers goroutines
// and returns the first error reported. All indices are still visited.
func ForEach(items, workers int, fn func(i int) error) error {
	var (
		mu       sync.Mutex
		firstErr error
	)
	split(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			if err := fn(i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}
	})
	return firstErr
}
