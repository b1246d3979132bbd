package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/born-ml/playground/internal/dataset"
)

// ANSI 256 colours for the terminal panels.
var (
	termRegion = [2]lipgloss.Color{"153", "223"}
	termPoint  = [2]lipgloss.Color{"25", "160"}
	termLoss   = lipgloss.Color("244")
)

const (
	pointGlyph = "•"
	emptyGlyph = " "
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// TerminalBoundary renders the class map downsampled to width×height
// character cells. Each cell is painted with the background of its
// predicted class; cells holding samples show a dot in the colour of the
// majority true label.
func TerminalBoundary(m *ClassMap, s *dataset.Samples, width, height int) string {
	if m == nil || width <= 0 || height <= 0 {
		return ""
	}
	g := m.Grid()
	dx := (g.XMax - g.XMin) / float64(width)
	dy := (g.YMax - g.YMin) / float64(height)

	// votes[row][col] counts samples of each label in the cell.
	votes := make([][][2]int, height)
	for r := range votes {
		votes[r] = make([][2]int, width)
	}
	if s != nil {
		for i := 0; i < s.Len(); i++ {
			smp := s.At(i)
			c := clampIndex(int((smp.X[0]-g.XMin)/dx), width)
			r := clampIndex(int((g.YMax-smp.X[1])/dy), height)
			votes[r][c][smp.Label]++
		}
	}

	styles := [2][3]lipgloss.Style{}
	for class := 0; class < 2; class++ {
		bg := lipgloss.NewStyle().Background(termRegion[class])
		styles[class][0] = bg
		styles[class][1] = bg.Foreground(termPoint[0]).Bold(true)
		styles[class][2] = bg.Foreground(termPoint[1]).Bold(true)
	}

	var b strings.Builder
	for r := 0; r < height; r++ {
		y := g.YMax - (float64(r)+0.5)*dy
		for c := 0; c < width; c++ {
			x := g.XMin + (float64(c)+0.5)*dx
			class := m.ClassAt(x, y)

			v := votes[r][c]
			switch {
			case v[0] == 0 && v[1] == 0:
				b.WriteString(styles[class][0].Render(emptyGlyph))
			case v[0] >= v[1]:
				b.WriteString(styles[class][1].Render(pointGlyph))
			default:
				b.WriteString(styles[class][2].Render(pointGlyph))
			}
		}
		if r < height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Sparkline draws values as a bar chart width columns wide and height rows
// tall using eighth-block characters. Values are bucketed by mean when
// there are more values than columns.
func Sparkline(values []float64, width, height int) string {
	if len(values) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	cols := bucket(values, width)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range cols {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	// eighths[c] is the filled height of column c in 1/8 row units.
	eighths := make([]int, len(cols))
	for c, v := range cols {
		frac := 1.0
		if span > 0 {
			frac = (v - lo) / span
		}
		eighths[c] = max(1, int(math.Round(frac*float64(height*8))))
	}

	var b strings.Builder
	for r := height - 1; r >= 0; r-- {
		for _, e := range eighths {
			fill := e - r*8
			switch {
			case fill <= 0:
				b.WriteRune(' ')
			case fill >= 8:
				b.WriteRune(sparkLevels[7])
			default:
				b.WriteRune(sparkLevels[fill-1])
			}
		}
		if r > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func bucket(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for c := range out {
		start := c * len(values) / width
		end := (c + 1) * len(values) / width
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		out[c] = sum / float64(end-start)
	}
	return out
}

// Terminal renders both panels of a figure side by side.
func Terminal(f Figure, width, height int) string {
	if f.ClassMap == nil {
		return ""
	}
	left := width * 3 / 5
	right := width - left - 2

	boundary := TerminalBoundary(f.ClassMap, f.Samples, left, height)

	var loss string
	if len(f.Loss) > 0 && right > 0 {
		first, last := f.Loss[0], f.Loss[len(f.Loss)-1]
		header := fmt.Sprintf("loss %.4f → %.4f", first, last)
		chart := lipgloss.NewStyle().Foreground(termLoss).
			Render(Sparkline(f.Loss, right, max(1, height-2)))
		footer := fmt.Sprintf("%d epochs", len(f.Loss))
		loss = lipgloss.JoinVertical(lipgloss.Left, header, chart, footer)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, boundary, "  ", loss)
}
