package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangesCoverEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  Config
	}{
		{name: "inline", n: 100, cfg: Config{Workers: 1, MinChunk: 1}},
		{name: "below min chunk", n: 100, cfg: Config{Workers: 8, MinChunk: 64}},
		{name: "even split", n: 1024, cfg: Config{Workers: 4, MinChunk: 16}},
		{name: "uneven split", n: 1001, cfg: Config{Workers: 7, MinChunk: 10}},
		{name: "zero min chunk", n: 50, cfg: Config{Workers: 3}},
		{name: "defaults", n: 50_000, cfg: DefaultConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			Ranges(tt.n, tt.cfg, func(lo, hi int) {
				assert.Less(t, lo, hi)
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if !assert.EqualValues(t, 1, h, "index %d", i) {
					return
				}
			}
		})
	}
}

func TestRangesSplitsLargeInput(t *testing.T) {
	var (
		mu     sync.Mutex
		ranges int
	)
	Ranges(1000, Config{Workers: 4, MinChunk: 100}, func(lo, hi int) {
		mu.Lock()
		ranges++
		mu.Unlock()
	})
	assert.Equal(t, 4, ranges)
}

func TestRangesEmpty(t *testing.T) {
	called := false
	Ranges(0, DefaultConfig(), func(lo, hi int) { called = true })
	assert.False(t, called)
}

func TestFor(t *testing.T) {
	out := make([]int, 500)
	For(len(out), Config{Workers: 4, MinChunk: 50}, func(i int) { out[i] = i * i })
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestCount(t *testing.T) {
	cfg := Config{Workers: 3, MinChunk: 10}
	assert.Equal(t, 50, Count(100, cfg, func(i int) bool { return i%2 == 0 }))
	assert.Equal(t, 0, Count(0, cfg, func(int) bool { return true }))
	assert.Equal(t, 7, Count(7, DefaultConfig(), func(int) bool { return true }))
}
