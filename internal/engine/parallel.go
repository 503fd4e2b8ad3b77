package engine

import (
	"runtime"
	"sync"
)

// ForEach runs fn(i) for i in [0, n) on a bounded worker pool. Inference
// against a loaded artifact is read-only, so batch scoring fans out
// safely; callers write only to their own index of a preallocated slice,
// which keeps results order-preserving.
func ForEach(n int, fn func(i int)) {
	if n <= 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 4
	}
	if workers > n {
		workers = n
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
