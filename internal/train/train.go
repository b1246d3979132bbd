// Package train fits a two-moons classifier for a fixed number of epochs.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/model"
)

// ErrDiverged is returned when a batch loss becomes NaN or infinite.
var ErrDiverged = errors.New("train: loss diverged")

// EpochStats is reported after every completed epoch.
type EpochStats struct {
	Epoch    int // 1-based
	Epochs   int
	Loss     float64
	Accuracy float64
}

// Options control batching and progress reporting.
type Options struct {
	BatchSize int  // <= 0 trains on the full set each step
	Shuffle   bool // reshuffle rows every epoch
	Seed      uint64
	OnEpoch   func(EpochStats)
}

// DefaultOptions returns mini-batches of 32 reshuffled every epoch.
func DefaultOptions() Options {
	return Options{
		BatchSize: DefaultBatchSize,
		Shuffle:   true,
		Seed:      dataset.DefaultSeed,
	}
}

// History holds one entry per completed epoch.
type History struct {
	Loss     []float64
	Accuracy []float64
}

// Len returns the number of recorded epochs.
func (h History) Len() int {
	return len(h.Loss)
}

// Final returns the loss and accuracy of the last epoch.
func (h History) Final() (loss, accuracy float64) {
	if len(h.Loss) == 0 {
		return math.NaN(), math.NaN()
	}
	return h.Loss[len(h.Loss)-1], h.Accuracy[len(h.Accuracy)-1]
}

// Fit trains clf on samples for exactly epochs epochs and returns the
// per-epoch mean batch loss. The classifier is updated in place.
//
// The context is checked between epochs; an in-flight epoch always
// completes. A non-finite loss aborts with ErrDiverged and the history of
// the epochs completed so far.
func Fit[B tensor.Backend](
	ctx context.Context,
	clf *model.Classifier[*autodiff.Backend[B]],
	optimizer optim.Optimizer,
	samples *dataset.Samples,
	epochs int,
	backend *autodiff.Backend[B],
	opts Options,
) (History, error) {
	if epochs < 1 {
		return History{}, fmt.Errorf("train: epochs must be >= 1, got %d", epochs)
	}
	if samples == nil || samples.Len() == 0 {
		return History{}, dataset.ErrEmpty
	}

	hist := History{
		Loss:     make([]float64, 0, epochs),
		Accuracy: make([]float64, 0, epochs),
	}

	tape := backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StartRecording()
	defer func() {
		tape.Clear()
		if !wasRecording {
			tape.StopRecording()
		}
	}()

	var (
		sh      *shuffler
		batches []*Batch[*autodiff.Backend[B]]
		err     error
	)
	if opts.Shuffle {
		sh = newShuffler(samples.Len(), opts.Seed)
	} else {
		// Row order never changes, so the tensors are built once.
		batches, err = MakeBatches(samples, nil, opts.BatchSize, backend)
		if err != nil {
			return hist, err
		}
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		if sh != nil {
			batches, err = MakeBatches(samples, sh.next(), opts.BatchSize, backend)
			if err != nil {
				return hist, err
			}
		}

		loss, acc, err := trainEpoch(clf, batches, optimizer, backend)
		if err != nil {
			return hist, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		hist.Loss = append(hist.Loss, loss)
		hist.Accuracy = append(hist.Accuracy, acc)

		if opts.OnEpoch != nil {
			opts.OnEpoch(EpochStats{Epoch: epoch, Epochs: epochs, Loss: loss, Accuracy: acc})
		}
	}

	return hist, nil
}

// trainEpoch runs one pass over the batches and returns the mean batch loss
// and the training accuracy measured on the pre-update predictions.
func trainEpoch[B tensor.Backend](
	clf *model.Classifier[*autodiff.Backend[B]],
	batches []*Batch[*autodiff.Backend[B]],
	optimizer optim.Optimizer,
	backend *autodiff.Backend[B],
) (avgLoss, accuracy float64, err error) {
	totalLoss := 0.0
	totalCorrect := 0.0
	totalSamples := 0

	for _, batch := range batches {
		optimizer.ZeroGrad()

		probs := clf.Forward(batch.Features)
		loss := model.BinaryCrossEntropy(probs, batch.Targets, backend)

		lossValue := float64(loss.Data()[0])
		if math.IsNaN(lossValue) || math.IsInf(lossValue, 0) {
			backend.Tape().Clear()
			return 0, 0, ErrDiverged
		}

		grads := autodiff.Backward(loss, backend)
		optimizer.Step(grads)

		totalLoss += lossValue
		totalCorrect += model.Accuracy(probs.Data(), batch.Labels) * float64(batch.Size)
		totalSamples += batch.Size

		backend.Tape().Clear()
	}

	return totalLoss / float64(len(batches)), totalCorrect / float64(totalSamples), nil
}
