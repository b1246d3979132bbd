package render

import (
	"fmt"

	"github.com/born-ml/playground/internal/parallel"
)

// DefaultThreshold separates class 0 from class 1 predictions.
const DefaultThreshold = 0.5

// Predictor maps row-major [n, 2] features to n probabilities of class 1.
type Predictor interface {
	Predict(features []float32) ([]float32, error)
}

// ClassMap is the thresholded prediction over a Grid. It implements
// plotter.GridXYZ so it can be drawn directly as a heat map.
type ClassMap struct {
	grid    Grid
	classes []uint8 // row-major, index r·cols + c
	counts  [2]int
}

// NewClassMap thresholds per-cell probabilities (row-major, as produced by
// Grid.Points) into classes: p >= threshold is class 1.
func NewClassMap(g Grid, probs []float32, threshold float64) (*ClassMap, error) {
	if len(probs) != g.Len() {
		return nil, fmt.Errorf("render: %d predictions for a grid of %d cells", len(probs), g.Len())
	}

	m := &ClassMap{
		grid:    g,
		classes: make([]uint8, len(probs)),
	}
	ones := parallel.Count(len(probs), parallel.DefaultConfig(), func(i int) bool {
		if float64(probs[i]) >= threshold {
			m.classes[i] = 1
			return true
		}
		return false
	})
	m.counts = [2]int{len(probs) - ones, ones}
	return m, nil
}

// Boundary evaluates p over every grid cell in one batched call and
// thresholds the result at DefaultThreshold.
func Boundary(p Predictor, g Grid) (*ClassMap, error) {
	return BoundaryAt(p, g, DefaultThreshold)
}

// BoundaryAt is Boundary with an explicit threshold.
func BoundaryAt(p Predictor, g Grid, threshold float64) (*ClassMap, error) {
	probs, err := p.Predict(g.Points())
	if err != nil {
		return nil, fmt.Errorf("render: evaluate grid: %w", err)
	}
	return NewClassMap(g, probs, threshold)
}

// Grid returns the lattice the map was evaluated on.
func (m *ClassMap) Grid() Grid {
	return m.grid
}

// Class returns the class at column c, row r.
func (m *ClassMap) Class(c, r int) int {
	return int(m.classes[r*m.grid.cols+c])
}

// ClassAt returns the class of the cell containing (x, y), clamped to the
// grid edges.
func (m *ClassMap) ClassAt(x, y float64) int {
	c := clampIndex(int((x-m.grid.XMin)/m.grid.Step), m.grid.cols)
	r := clampIndex(int((y-m.grid.YMin)/m.grid.Step), m.grid.rows)
	return m.Class(c, r)
}

// Counts returns the number of cells per class.
func (m *ClassMap) Counts() [2]int {
	return m.counts
}

// Degenerate reports whether every cell has the same class.
func (m *ClassMap) Degenerate() bool {
	return m.counts[0] == 0 || m.counts[1] == 0
}

// Dims implements plotter.GridXYZ.
func (m *ClassMap) Dims() (c, r int) {
	return m.grid.Dims()
}

// Z implements plotter.GridXYZ.
func (m *ClassMap) Z(c, r int) float64 {
	return float64(m.Class(c, r))
}

// X implements plotter.GridXYZ.
func (m *ClassMap) X(c int) float64 {
	return m.grid.X(c)
}

// Y implements plotter.GridXYZ.
func (m *ClassMap) Y(r int) float64 {
	return m.grid.Y(r)
}

// Min fixes the heat map range to the class labels even when only one
// class is present.
func (m *ClassMap) Min() float64 { return 0 }

// Max is the upper end of the class label range.
func (m *ClassMap) Max() float64 { return 1 }

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
