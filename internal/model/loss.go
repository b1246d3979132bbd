package model

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// bceEpsilon keeps the logarithms finite when a probability saturates.
const bceEpsilon = 1e-7

// BinaryCrossEntropy computes the mean binary cross-entropy
//
//	L = -1/n Σ [ y·log(p + ε) + (1 - y)·log(1 - p + ε) ]
//
// between probabilities and targets of shape [n, 1]. The result has shape
// [1, 1] and is built only from operations the autodiff tape records, so it
// can be passed straight to autodiff.Backward.
func BinaryCrossEntropy[B tensor.Backend](probs, targets *tensor.Tensor[float32, B], backend B) *tensor.Tensor[float32, B] {
	shape := probs.Shape()
	if len(shape) != 2 || shape[1] != 1 {
		panic(fmt.Sprintf("BinaryCrossEntropy: probs must have shape [n, 1], got %v", shape))
	}
	if !targets.Shape().Equal(shape) {
		panic(fmt.Sprintf("BinaryCrossEntropy: shape mismatch: probs %v, targets %v", shape, targets.Shape()))
	}
	n := shape[0]

	eps := tensor.Full[float32](shape, bceEpsilon, backend)
	ones := tensor.Ones[float32](shape, backend)

	logP := probs.Add(eps).Log()
	logQ := ones.Sub(probs).Add(eps).Log()

	term := targets.Mul(logP).Add(ones.Sub(targets).Mul(logQ)) // [n, 1]

	// Mean and negation folded into one matmul: [1, n] @ [n, 1] = [1, 1].
	scale := tensor.Full[float32](tensor.Shape{1, n}, -1/float32(n), backend)
	return scale.MatMul(term)
}

// Accuracy returns the fraction of probabilities that land on the same side
// of 0.5 as their 0/1 target.
func Accuracy(probs, targets []float32) float64 {
	if len(probs) == 0 || len(probs) != len(targets) {
		return 0
	}
	correct := 0
	for i, p := range probs {
		var pred float32
		if p >= 0.5 {
			pred = 1
		}
		if pred == targets[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}
