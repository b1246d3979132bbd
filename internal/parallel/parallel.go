// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split.
type Config struct {
	Workers  int // goroutines to use; <= 1 runs inline
	MinChunk int // smallest range handed to one goroutine
}

// DefaultConfig uses one worker per CPU and chunks of at least 4096 items.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 4096,
	}
}

// Ranges calls f on disjoint half-open ranges covering [0, n) and waits for
// all of them. Small inputs run inline on the caller's goroutine.
func Ranges(n int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	minChunk := max(cfg.MinChunk, 1)
	if cfg.Workers <= 1 || n < 2*minChunk {
		f(0, n)
		return
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, minChunk)
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n).
func For(n int, cfg Config, f func(i int)) {
	Ranges(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	})
}

// Count returns how many i in [0, n) satisfy pred.
func Count(n int, cfg Config, pred func(i int) bool) int {
	var (
		mu    sync.Mutex
		total int
	)
	Ranges(n, cfg, func(lo, hi int) {
		local := 0
		for i := lo; i < hi; i++ {
			if pred(i) {
				local++
			}
		}
		mu.Lock()
		total += local
		mu.Unlock()
	})
	return total
}
