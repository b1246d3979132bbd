// Package dataset generates the synthetic two-moons sample set.
//
// The sample set is created once and never mutated afterwards. Every accessor
// returns a copy, so callers can hold a *Samples for the process lifetime and
// pass it around freely.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Default generation parameters.
const (
	DefaultSamples = 500
	DefaultNoise   = 0.2
	DefaultSeed    = 42
)

// NumClasses is the number of distinct labels in a two-moons set.
const NumClasses = 2

// ErrEmpty is returned when a sample set would contain no points.
var ErrEmpty = errors.New("dataset: empty sample set")

// Sample is a single labelled point.
type Sample struct {
	X     [2]float64
	Label int
}

// Bounds is the axis-aligned bounding box of the features.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Samples is an immutable two-class sample set.
type Samples struct {
	points [][2]float64
	labels []int
	bounds Bounds
	counts [NumClasses]int
}

// MakeMoons generates two interleaving half circles.
//
// The outer moon (label 0) follows (cos t, sin t) and the inner moon
// (label 1) follows (1 - cos t, 1 - sin t - 0.5) for t evenly spaced in
// [0, π]. The rows are shuffled and Gaussian noise with standard deviation
// noise is added to every coordinate. The same seed always yields the same
// features and labels.
//
// Parameters:
//   - n: Total number of points (outer moon gets n/2, inner moon the rest)
//   - noise: Standard deviation of the Gaussian noise (0 disables noise)
//   - seed: Seed for shuffling and noise
//
// Returns an error if n < 4 or noise is negative.
func MakeMoons(n int, noise float64, seed uint64) (*Samples, error) {
	if n < 4 {
		return nil, fmt.Errorf("dataset: need at least 4 samples, got %d", n)
	}
	if noise < 0 || math.IsNaN(noise) || math.IsInf(noise, 0) {
		return nil, fmt.Errorf("dataset: noise must be a finite value >= 0, got %v", noise)
	}

	nOuter := n / 2
	nInner := n - nOuter

	outer := floats.Span(make([]float64, nOuter), 0, math.Pi)
	inner := floats.Span(make([]float64, nInner), 0, math.Pi)

	points := make([][2]float64, 0, n)
	labels := make([]int, 0, n)
	for _, t := range outer {
		points = append(points, [2]float64{math.Cos(t), math.Sin(t)})
		labels = append(labels, 0)
	}
	for _, t := range inner {
		points = append(points, [2]float64{1 - math.Cos(t), 1 - math.Sin(t) - 0.5})
		labels = append(labels, 1)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		points[i], points[j] = points[j], points[i]
		labels[i], labels[j] = labels[j], labels[i]
	})

	if noise > 0 {
		gauss := distuv.Normal{Mu: 0, Sigma: noise, Src: rng}
		for i := range points {
			points[i][0] += gauss.Rand()
			points[i][1] += gauss.Rand()
		}
	}

	return newSamples(points, labels), nil
}

// FromPoints builds a sample set from explicit points and labels.
// Both slices are copied. Labels must be 0 or 1.
func FromPoints(points [][2]float64, labels []int) (*Samples, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	if len(points) != len(labels) {
		return nil, fmt.Errorf("dataset: %d points but %d labels", len(points), len(labels))
	}
	for i, p := range points {
		if labels[i] < 0 || labels[i] >= NumClasses {
			return nil, fmt.Errorf("dataset: label out of range [0, %d) at row %d: %d", NumClasses, i, labels[i])
		}
		if !finite(p[0]) || !finite(p[1]) {
			return nil, fmt.Errorf("dataset: non-finite feature at row %d: %v", i, p)
		}
	}

	pts := make([][2]float64, len(points))
	copy(pts, points)
	lbl := make([]int, len(labels))
	copy(lbl, labels)

	return newSamples(pts, lbl), nil
}

func newSamples(points [][2]float64, labels []int) *Samples {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	var counts [NumClasses]int
	for i, p := range points {
		xs[i], ys[i] = p[0], p[1]
		counts[labels[i]]++
	}

	return &Samples{
		points: points,
		labels: labels,
		bounds: Bounds{
			MinX: floats.Min(xs),
			MaxX: floats.Max(xs),
			MinY: floats.Min(ys),
			MaxY: floats.Max(ys),
		},
		counts: counts,
	}
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.points)
}

// At returns the i-th sample.
func (s *Samples) At(i int) Sample {
	return Sample{X: s.points[i], Label: s.labels[i]}
}

// Points returns a copy of the feature vectors.
func (s *Samples) Points() [][2]float64 {
	out := make([][2]float64, len(s.points))
	copy(out, s.points)
	return out
}

// Labels returns a copy of the labels.
func (s *Samples) Labels() []int {
	out := make([]int, len(s.labels))
	copy(out, s.labels)
	return out
}

// Features returns the features as a row-major [n, 2] float32 slice,
// ready to be copied into a tensor.
func (s *Samples) Features() []float32 {
	out := make([]float32, 0, 2*len(s.points))
	for _, p := range s.points {
		out = append(out, float32(p[0]), float32(p[1]))
	}
	return out
}

// Targets returns the labels as a [n, 1] float32 slice.
func (s *Samples) Targets() []float32 {
	out := make([]float32, len(s.labels))
	for i, l := range s.labels {
		out[i] = float32(l)
	}
	return out
}

// Bounds returns the bounding box of the features.
func (s *Samples) Bounds() Bounds {
	return s.bounds
}

// Counts returns the number of samples per class.
func (s *Samples) Counts() [NumClasses]int {
	return s.counts
}

// Equal reports whether two sample sets hold identical features and labels.
func (s *Samples) Equal(other *Samples) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.points) != len(other.points) {
		return false
	}
	for i := range s.points {
		if s.points[i] != other.points[i] || s.labels[i] != other.labels[i] {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
