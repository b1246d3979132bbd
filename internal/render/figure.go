package render

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/logging"
)

// Default figure size.
const (
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// Class colours: light fills for regions, saturated ones for samples.
var (
	regionColors = [2]color.Color{
		color.RGBA{R: 0xc6, G: 0xdb, B: 0xef, A: 0xff},
		color.RGBA{R: 0xfc, G: 0xd5, B: 0xb5, A: 0xff},
	}
	pointColors = [2]color.Color{
		color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	}
	lossColor = color.RGBA{R: 0x2c, G: 0x2c, B: 0x2c, A: 0xff}
)

// regionPalette maps class 0 and 1 to their fill colours.
type regionPalette struct{}

func (regionPalette) Colors() []color.Color {
	return regionColors[:]
}

// Figure is everything drawn after one run.
type Figure struct {
	Samples  *dataset.Samples
	ClassMap *ClassMap
	Loss     []float64
	Title    string
}

// Plots builds the decision boundary and loss curve panels.
func (f Figure) Plots() (boundary, loss *plot.Plot, err error) {
	if f.Samples == nil || f.ClassMap == nil {
		return nil, nil, errors.New("render: figure needs samples and a class map")
	}

	boundary, err = boundaryPlot(f)
	if err != nil {
		return nil, nil, err
	}
	loss, err = lossPlot(f.Loss)
	if err != nil {
		return nil, nil, err
	}
	return boundary, loss, nil
}

func boundaryPlot(f Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Title
	if p.Title.Text == "" {
		p.Title.Text = "Decision boundary"
	}
	p.X.Label.Text = "x1"
	p.Y.Label.Text = "x2"

	hm := plotter.NewHeatMap(f.ClassMap, regionPalette{})
	hm.Rasterized = true
	p.Add(hm)

	var byClass [2]plotter.XYs
	for i := 0; i < f.Samples.Len(); i++ {
		s := f.Samples.At(i)
		byClass[s.Label] = append(byClass[s.Label], plotter.XY{X: s.X[0], Y: s.X[1]})
	}
	for class, xys := range byClass {
		if len(xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("render: scatter class %d: %w", class, err)
		}
		sc.GlyphStyle.Color = pointColors[class]
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("class %d", class), sc)
	}

	g := f.ClassMap.Grid()
	p.X.Min, p.X.Max = g.XMin, g.XMax
	p.Y.Min, p.Y.Max = g.YMin, g.YMax
	p.Legend.Top = true

	return p, nil
}

func lossPlot(loss []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "binary cross-entropy"

	if len(loss) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(loss))
	for i, v := range loss {
		xys[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("render: loss curve: %w", err)
	}
	line.LineStyle.Color = lossColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Add(plotter.NewGrid())

	return p, nil
}

// WritePNG draws the two panels side by side and encodes them as PNG.
func WritePNG(w io.Writer, f Figure, width, height vg.Length) error {
	boundary, loss, err := f.Plots()
	if err != nil {
		return err
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadX:      vg.Points(24),
	}
	canvases := plot.Align([][]*plot.Plot{{boundary, loss}}, tiles, dc)
	boundary.Draw(canvases[0][0])
	loss.Draw(canvases[0][1])

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// SavePNG writes the figure to path.
func SavePNG(path string, f Figure, width, height vg.Length) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("render: %w", cerr)
		}
	}()

	buf := bufio.NewWriter(file)
	if err := WritePNG(buf, f, width, height); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	logging.Info("figure written", logging.Render, "path", path, "width", width, "height", height)
	return nil
}
