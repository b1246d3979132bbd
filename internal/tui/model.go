// Package tui is the terminal front end: four controls, the decision
// boundary drawn in colour blocks and a loss sparkline.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/plot/vg"

	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/playground"
	"github.com/born-ml/playground/internal/render"
)

// Pipeline runs one tuning pass. *playground.Controller implements it.
type Pipeline interface {
	Run(ctx context.Context, p playground.Params) (*playground.Result, error)
	Figure(res *playground.Result) render.Figure
}

// Options configure the terminal UI.
type Options struct {
	// SavePath is where "s" writes the PNG figure.
	SavePath     string
	FigureWidth  vg.Length
	FigureHeight vg.Length
}

// appState is idle → running → idle; controls are locked while running.
type appState int

const (
	stateIdle appState = iota
	stateRunning
)

type runFinishedMsg struct {
	res *playground.Result
	err error
}

type savedMsg struct {
	path string
	err  error
}

const sliderWidth = 24

// Model is the root bubbletea model.
type Model struct {
	ctx      context.Context
	pipeline Pipeline
	opts     Options

	params  playground.Params
	focus   int
	state   appState
	result  *playground.Result
	err     error
	status  string
	started time.Time

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
}

// New returns a model that starts training p as soon as the program runs.
func New(ctx context.Context, pipeline Pipeline, p playground.Params, opts Options) Model {
	if opts.SavePath == "" {
		opts.SavePath = "playground.png"
	}
	if opts.FigureWidth == 0 || opts.FigureHeight == 0 {
		opts.FigureWidth, opts.FigureHeight = render.DefaultWidth, render.DefaultHeight
	}
	return Model{
		ctx:      ctx,
		pipeline: pipeline,
		opts:     opts,
		params:   p,
		state:    stateRunning,
		started:  time.Now(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(focusStyle)),
		help:     help.New(),
		keys:     defaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runCmd(m.params))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case runFinishedMsg:
		m.state = stateIdle
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.result = msg.res
		loss, _ := msg.res.History.Final()
		m.status = fmt.Sprintf("loss %.4f · accuracy %.1f%% · %s",
			loss, msg.res.Accuracy*100, msg.res.Elapsed.Round(time.Millisecond))
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = "saved " + msg.path
		return m, nil

	case spinner.TickMsg:
		if m.state != stateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.state == stateRunning {
		return m, nil
	}

	fields := playground.Fields()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.focus = (m.focus - 1 + len(fields)) % len(fields)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.focus = (m.focus + 1) % len(fields)
		return m, nil
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		delta := 1
		if key.Matches(msg, m.keys.Left) {
			delta = -1
		}
		next := m.params.Nudge(fields[m.focus], delta)
		if next == m.params {
			return m, nil
		}
		m.params = next
		return m.startRun()
	case key.Matches(msg, m.keys.Rerun):
		return m.startRun()
	case key.Matches(msg, m.keys.Save):
		if m.result == nil {
			return m, nil
		}
		return m, m.saveCmd(m.result)
	}
	return m, nil
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	m.state = stateRunning
	m.started = time.Now()
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.runCmd(m.params))
}

func (m Model) runCmd(p playground.Params) tea.Cmd {
	return func() tea.Msg {
		res, err := m.pipeline.Run(m.ctx, p)
		return runFinishedMsg{res: res, err: err}
	}
}

func (m Model) saveCmd(res *playground.Result) tea.Cmd {
	fig := m.pipeline.Figure(res)
	path := m.opts.SavePath
	w, h := m.opts.FigureWidth, m.opts.FigureHeight
	return func() tea.Msg {
		err := render.SavePNG(path, fig, w, h)
		if err != nil {
			logging.Error("save figure", logging.TUI, "path", path, "error", err)
		}
		return savedMsg{path: path, err: err}
	}
}

func (m Model) View() string {
	var parts []string

	parts = append(parts, titleStyle.Render("Born playground · two moons"), "")
	for i, f := range playground.Fields() {
		parts = append(parts, m.controlView(i, f))
	}
	parts = append(parts, "", m.statusView())

	if m.result != nil {
		w, h := m.panelSize()
		fig := m.pipeline.Figure(m.result)
		parts = append(parts, panelBorder.Render(render.Terminal(fig, w, h)))
	}

	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) panelSize() (w, h int) {
	w, h = 72, 16
	if m.width > 0 {
		w = max(20, m.width-4)
	}
	if m.height > 0 {
		// Title, controls, status, border and help.
		h = max(6, m.height-13)
	}
	return w, h
}

func (m Model) controlView(i int, f playground.Field) string {
	label := labelStyle.Render(f.String())
	cursor := "  "
	if i == m.focus {
		cursor = focusStyle.Render("▸ ")
		label = focusStyle.Width(14).Render(f.String())
	}

	var control string
	switch f {
	case playground.FieldNeurons:
		control = slider(m.params.Neurons-playground.MinNeurons, playground.MaxNeurons-playground.MinNeurons) +
			" " + valueStyle.Render(fmt.Sprintf("%d", m.params.Neurons))
	case playground.FieldActivation:
		opts := make([]string, 0, len(model.Activations()))
		for _, a := range model.Activations() {
			if a == m.params.Activation {
				opts = append(opts, selectedStyle.Render(a.String()))
			} else {
				opts = append(opts, optionStyle.Render(a.String()))
			}
		}
		control = strings.Join(opts, "  ")
	case playground.FieldLearningRate:
		lrs := playground.LearningRates()
		control = slider(nearest(lrs, m.params.LearningRate), len(lrs)-1) +
			" " + valueStyle.Render(fmt.Sprintf("%.4g", m.params.LearningRate))
	case playground.FieldEpochs:
		control = slider((m.params.Epochs-playground.MinEpochs)/playground.EpochsStep,
			(playground.MaxEpochs-playground.MinEpochs)/playground.EpochsStep) +
			" " + valueStyle.Render(fmt.Sprintf("%d", m.params.Epochs))
	}

	if m.state == stateRunning {
		return lockedStyle.Render("  "+f.String()) + strings.Repeat(" ", max(0, 14-len(f.String()))) + control
	}
	return cursor + label + control
}

func (m Model) statusView() string {
	switch {
	case m.state == stateRunning:
		return m.spinner.View() + " " + mutedStyle.Render(
			fmt.Sprintf("training %s … %s", m.params.Format(), time.Since(m.started).Round(100*time.Millisecond)))
	case m.err != nil:
		return errorStyle.Render("error: " + m.err.Error())
	case m.status != "":
		return statusStyle.Render(m.status)
	}
	return ""
}

// slider draws position pos of n as a horizontal track.
func slider(pos, n int) string {
	if n <= 0 {
		return ""
	}
	knob := int(math.Round(float64(pos) / float64(n) * float64(sliderWidth-1)))
	knob = max(0, min(knob, sliderWidth-1))
	return focusStyle.Render(strings.Repeat("━", knob)+"●") +
		mutedStyle.Render(strings.Repeat("─", sliderWidth-1-knob))
}

func nearest(values []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, x := range values {
		if d := math.Abs(math.Log(x) - math.Log(v)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, pipeline Pipeline, p playground.Params, opts Options) error {
	prog := tea.NewProgram(New(ctx, pipeline, p, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
