package render

import (
	"fmt"
	"math"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/parallel"
)

// Grid defaults.
const (
	DefaultStep   = 0.02
	DefaultMargin = 0.5
)

// rowConfig splits grid rows; a row holds a few hundred cells.
var rowConfig = parallel.Config{Workers: parallel.DefaultConfig().Workers, MinChunk: 16}

// Grid is a regular lattice over the feature plane.
//
// Coordinates follow half-open range semantics: X(0) = XMin and the last
// column is the largest XMin + k·Step strictly below XMax. Y likewise.
type Grid struct {
	XMin, XMax float64
	YMin, YMax float64
	Step       float64

	cols, rows int
}

// NewGrid builds the lattice over bounds expanded by margin on every side.
// It depends only on the bounds, never on a model.
func NewGrid(b dataset.Bounds, margin, step float64) (Grid, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return Grid{}, fmt.Errorf("render: grid step must be a finite value > 0, got %v", step)
	}
	if margin < 0 || math.IsNaN(margin) || math.IsInf(margin, 0) {
		return Grid{}, fmt.Errorf("render: grid margin must be a finite value >= 0, got %v", margin)
	}

	g := Grid{
		XMin: b.MinX - margin,
		XMax: b.MaxX + margin,
		YMin: b.MinY - margin,
		YMax: b.MaxY + margin,
		Step: step,
	}
	g.cols = arangeLen(g.XMin, g.XMax, step)
	g.rows = arangeLen(g.YMin, g.YMax, step)
	if g.cols == 0 || g.rows == 0 {
		return Grid{}, fmt.Errorf("render: empty grid for bounds %+v with margin %v", b, margin)
	}

	return g, nil
}

// ForSamples is NewGrid over the sample bounds.
func ForSamples(s *dataset.Samples, margin, step float64) (Grid, error) {
	return NewGrid(s.Bounds(), margin, step)
}

func arangeLen(start, stop, step float64) int {
	n := math.Ceil((stop - start) / step)
	if n < 0 {
		return 0
	}
	return int(n)
}

// Dims returns the number of columns and rows.
func (g Grid) Dims() (cols, rows int) {
	return g.cols, g.rows
}

// Len returns the number of cells.
func (g Grid) Len() int {
	return g.cols * g.rows
}

// X returns the x coordinate of column c.
func (g Grid) X(c int) float64 {
	return g.XMin + float64(c)*g.Step
}

// Y returns the y coordinate of row r.
func (g Grid) Y(r int) float64 {
	return g.YMin + float64(r)*g.Step
}

// Points returns every cell centre as row-major [rows·cols, 2] float32
// features; index r·cols + c holds (X(c), Y(r)).
func (g Grid) Points() []float32 {
	out := make([]float32, 2*g.Len())
	parallel.For(g.rows, rowConfig, func(r int) {
		y := float32(g.Y(r))
		row := out[2*r*g.cols : 2*(r+1)*g.cols]
		for c := 0; c < g.cols; c++ {
			row[2*c] = float32(g.X(c))
			row[2*c+1] = y
		}
	})
	return out
}
