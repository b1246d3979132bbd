// Package model builds the two-moons classifier and its optimizer.
//
// The classifier is a single hidden dense layer followed by a sigmoid output
// unit:
//
//	Linear(2 → N) → activation → Linear(N → 1) → Sigmoid
//
// It is a thin wrapper around born's nn.Sequential, so it satisfies
// nn.Module and can be handed to any born optimizer. Save writes the trained
// parameters as a SafeTensors file.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	clf, opt, err := model.Build(model.Config{
//	    Neurons:      4,
//	    Activation:   model.ReLU,
//	    LearningRate: 0.01,
//	}, model.Options{Seed: 42}, backend)
//	if err != nil {
//	    return err
//	}
//	probs := clf.Forward(x)                     // [batch, 1]
//	loss := model.BinaryCrossEntropy(probs, y, backend)
//
// Weights are drawn from a Xavier-uniform distribution using an explicit
// seed, so two classifiers built from the same Config and Options start
// from identical parameters.
package model
