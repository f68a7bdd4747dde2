package banksy

import (
	"runtime"
	"sync"
)

// parallelRows splits [0, n) into contiguous chunks and runs fn over each
// chunk on its own goroutine, up to workers goroutines. Chunks never
// overlap, so fn may write to disjoint row ranges of shared output without
// synchronization. workers <= 1 runs fn inline over the whole range.
func parallelRows(n, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers <= 1 || n <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
