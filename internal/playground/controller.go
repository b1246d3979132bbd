// Package playground ties the dataset, model factory, trainer and boundary
// renderer into one synchronous tuning pipeline.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/render"
	"github.com/born-ml/playground/internal/train"
)

// Backend is the autodiff-wrapped CPU backend every run trains on.
type Backend = autodiff.Backend[*cpu.Backend]

// Settings are the pipeline knobs that are not exposed as controls.
type Settings struct {
	Optimizer  model.OptimizerKind
	Momentum   float64
	BatchSize  int
	Shuffle    bool
	Seed       uint64
	GridStep   float64
	GridMargin float64
	Threshold  float64
}

// DefaultSettings returns Adam, mini-batches of 32 and a 0.02 grid.
func DefaultSettings() Settings {
	return Settings{
		Optimizer:  model.Adam,
		BatchSize:  train.DefaultBatchSize,
		Shuffle:    true,
		Seed:       dataset.DefaultSeed,
		GridStep:   render.DefaultStep,
		GridMargin: render.DefaultMargin,
		Threshold:  render.DefaultThreshold,
	}
}

// Result is the outcome of one successful run.
type Result struct {
	Params   Params
	History  train.History
	ClassMap *render.ClassMap
	// Accuracy of the trained model over the whole sample set.
	Accuracy float64
	Elapsed  time.Duration
	Model    *model.Classifier[*Backend]
}

// Controller runs the pipeline, one run at a time.
type Controller struct {
	samples  *dataset.Samples
	grid     render.Grid
	settings Settings

	mu   sync.Mutex // serialises runs
	last atomic.Pointer[Result]
	runs atomic.Int64
}

// New creates a controller over a fixed sample set. The grid is computed
// once here since it depends only on the samples.
func New(samples *dataset.Samples, settings Settings) (*Controller, error) {
	if samples == nil || samples.Len() == 0 {
		return nil, dataset.ErrEmpty
	}
	if _, err := model.ParseOptimizer(string(settings.Optimizer)); err != nil {
		return nil, err
	}
	if !(settings.Threshold > 0 && settings.Threshold < 1) {
		return nil, fmt.Errorf("playground: threshold must be in (0, 1), got %v", settings.Threshold)
	}
	grid, err := render.ForSamples(samples, settings.GridMargin, settings.GridStep)
	if err != nil {
		return nil, err
	}
	return &Controller{
		samples:  samples,
		grid:     grid,
		settings: settings,
	}, nil
}

// Samples returns the sample set the controller trains on.
func (c *Controller) Samples() *dataset.Samples {
	return c.samples
}

// Grid returns the evaluation grid.
func (c *Controller) Grid() render.Grid {
	return c.grid
}

// Settings returns the pipeline settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Last returns the most recent successful result, or nil.
func (c *Controller) Last() *Result {
	return c.last.Load()
}

// Runs returns the number of runs started so far.
func (c *Controller) Runs() int64 {
	return c.runs.Load()
}

// Run validates p, builds a fresh model, trains it and evaluates the
// decision boundary. Concurrent callers queue behind the in-flight run.
// A failed run leaves Last unchanged.
func (c *Controller) Run(ctx context.Context, p Params) (*Result, error) {
	return c.RunWithProgress(ctx, p, nil)
}

// RunWithProgress is Run with a per-epoch callback.
func (c *Controller) RunWithProgress(ctx context.Context, p Params, onEpoch func(train.EpochStats)) (res *Result, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.runs.Add(1)
	logging.Info("run started", logging.Controller, "run", n, "params", p.Format())

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("playground: run %d panicked: %v", n, r)
		}
		if err != nil {
			logging.Error("run failed", logging.Controller, "run", n, "error", err)
		}
	}()

	res, err = c.run(ctx, p, onEpoch)
	if err != nil {
		return nil, err
	}

	c.last.Store(res)
	loss, _ := res.History.Final()
	logging.Info("run finished", logging.Controller,
		"run", n,
		"loss", loss,
		"accuracy", res.Accuracy,
		"class_counts", res.ClassMap.Counts(),
		"elapsed", res.Elapsed)
	return res, nil
}

func (c *Controller) run(ctx context.Context, p Params, onEpoch func(train.EpochStats)) (*Result, error) {
	start := time.Now()
	backend := autodiff.New(cpu.New())

	clf, opt, err := model.Build(p.ModelConfig(), model.Options{
		Optimizer: c.settings.Optimizer,
		Momentum:  c.settings.Momentum,
		Seed:      c.settings.Seed,
	}, backend)
	if err != nil {
		return nil, fmt.Errorf("playground: build model: %w", err)
	}

	hist, err := train.Fit(ctx, clf, opt, c.samples, p.Epochs, backend, train.Options{
		BatchSize: c.settings.BatchSize,
		Shuffle:   c.settings.Shuffle,
		Seed:      c.settings.Seed,
		OnEpoch: func(s train.EpochStats) {
			logging.Debug("epoch", logging.Training, "epoch", s.Epoch, "loss", s.Loss, "accuracy", s.Accuracy)
			if onEpoch != nil {
				onEpoch(s)
			}
		},
	})
	if err != nil {
		if errors.Is(err, train.ErrDiverged) {
			return nil, fmt.Errorf("playground: %s: %w", p.Format(), err)
		}
		return nil, fmt.Errorf("playground: train: %w", err)
	}

	cm, err := render.BoundaryAt(clf, c.grid, c.settings.Threshold)
	if err != nil {
		return nil, err
	}

	probs, err := clf.Predict(c.samples.Features())
	if err != nil {
		return nil, fmt.Errorf("playground: evaluate samples: %w", err)
	}

	return &Result{
		Params:   p,
		History:  hist,
		ClassMap: cm,
		Accuracy: model.Accuracy(probs, c.samples.Targets()),
		Elapsed:  time.Since(start),
		Model:    clf,
	}, nil
}

// Figure assembles the drawable figure for a result.
func (c *Controller) Figure(res *Result) render.Figure {
	return render.Figure{
		Samples:  c.samples,
		ClassMap: res.ClassMap,
		Loss:     res.History.Loss,
		Title:    res.Params.Format(),
	}
}
