package train

import (
	"fmt"

	"github.com/born-ml/born/tensor"
	"golang.org/x/exp/rand"

	"github.com/born-ml/playground/internal/dataset"
)

// DefaultBatchSize matches the usual framework default for fit loops.
const DefaultBatchSize = 32

// Batch is one mini-batch of features and 0/1 targets.
type Batch[B tensor.Backend] struct {
	Features *tensor.Tensor[float32, B] // [size, 2]
	Targets  *tensor.Tensor[float32, B] // [size, 1]
	Labels   []float32
	Size     int
}

// MakeBatches splits the samples into mini-batches in the given row order.
//
// Parameters:
//   - samples: Sample set to batch
//   - order: Row permutation (nil means natural order)
//   - batchSize: Rows per batch; <= 0 means a single full batch
//   - backend: Tensor backend to use
//
// Returns the batches; the last one may be smaller.
func MakeBatches[B tensor.Backend](samples *dataset.Samples, order []int, batchSize int, backend B) ([]*Batch[B], error) {
	n := samples.Len()
	if n == 0 {
		return nil, dataset.ErrEmpty
	}
	if order == nil {
		order = identity(n)
	}
	if len(order) != n {
		return nil, fmt.Errorf("train: order has %d rows, samples have %d", len(order), n)
	}
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	features := samples.Features()
	targets := samples.Targets()

	batches := make([]*Batch[B], 0, (n+batchSize-1)/batchSize)
	for i := 0; i < n; i += batchSize {
		end := min(i+batchSize, n)
		size := end - i

		x := make([]float32, 0, size*2)
		y := make([]float32, 0, size)
		for _, idx := range order[i:end] {
			x = append(x, features[2*idx], features[2*idx+1])
			y = append(y, targets[idx])
		}

		xt, err := tensor.FromSlice(x, tensor.Shape{size, 2}, backend)
		if err != nil {
			return nil, fmt.Errorf("train: build feature tensor: %w", err)
		}
		yt, err := tensor.FromSlice(y, tensor.Shape{size, 1}, backend)
		if err != nil {
			return nil, fmt.Errorf("train: build target tensor: %w", err)
		}

		batches = append(batches, &Batch[B]{
			Features: xt,
			Targets:  yt,
			Labels:   y,
			Size:     size,
		})
	}

	return batches, nil
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// shuffler yields a fresh seeded permutation per epoch.
type shuffler struct {
	rng   *rand.Rand
	order []int
}

func newShuffler(n int, seed uint64) *shuffler {
	return &shuffler{
		rng:   rand.New(rand.NewSource(seed)),
		order: identity(n),
	}
}

func (s *shuffler) next() []int {
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})
	return s.order
}
