package model

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"
)

// OptimizerKind selects the parameter update rule.
type OptimizerKind string

// Supported optimizers.
const (
	Adam OptimizerKind = "adam"
	SGD  OptimizerKind = "sgd"
)

// Adam hyperparameters other than the learning rate.
const (
	AdamBeta1   = 0.9
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-7
)

// ParseOptimizer parses a case-insensitive optimizer name. Empty means Adam.
func ParseOptimizer(s string) (OptimizerKind, error) {
	switch k := OptimizerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return Adam, nil
	case Adam, SGD:
		return k, nil
	}
	return "", fmt.Errorf("model: unknown optimizer %q (want adam or sgd)", s)
}

// Options are the build settings that do not change the architecture.
type Options struct {
	Optimizer OptimizerKind
	Momentum  float64 // SGD only
	Seed      uint64
}

// NewOptimizer creates an optimizer over params at learning rate lr.
func NewOptimizer[B tensor.Backend](params []*nn.Parameter[B], kind OptimizerKind, lr, momentum float64, backend B) (optim.Optimizer, error) {
	switch kind {
	case Adam, "":
		return optim.NewAdam(params, optim.AdamConfig{
			LR:    float32(lr),
			Betas: [2]float32{AdamBeta1, AdamBeta2},
			Eps:   AdamEpsilon,
		}, backend), nil
	case SGD:
		if momentum < 0 || momentum >= 1 {
			return nil, fmt.Errorf("model: momentum must be in [0, 1), got %v", momentum)
		}
		return optim.NewSGD(params, optim.SGDConfig{
			LR:       float32(lr),
			Momentum: float32(momentum),
		}, backend), nil
	}
	return nil, fmt.Errorf("model: unknown optimizer %q", string(kind))
}

// Build creates a fresh classifier and its optimizer.
func Build[B tensor.Backend](cfg Config, opts Options, backend B) (*Classifier[B], optim.Optimizer, error) {
	clf, err := New(cfg, opts.Seed, backend)
	if err != nil {
		return nil, nil, err
	}
	opt, err := NewOptimizer(clf.Parameters(), opts.Optimizer, cfg.LearningRate, opts.Momentum, backend)
	if err != nil {
		return nil, nil, err
	}
	return clf, opt, nil
}
