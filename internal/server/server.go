// Package server exposes the controls as a browser page backed by echo.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gonum.org/v1/plot/vg"

	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/playground"
	"github.com/born-ml/playground/internal/render"
)

//go:embed templates/index.html
var templates embed.FS

var indexTmpl = template.Must(template.ParseFS(templates, "templates/index.html"))

// Pipeline runs one tuning pass. *playground.Controller implements it.
type Pipeline interface {
	Run(ctx context.Context, p playground.Params) (*playground.Result, error)
	Figure(res *playground.Result) render.Figure
}

type Server struct {
	e        *echo.Echo
	pipeline Pipeline
	defaults playground.Params
	width    vg.Length
	height   vg.Length
}

// NewServer registers all routes. Query parameters missing from a request
// fall back to defaults.
func NewServer(pipeline Pipeline, defaults playground.Params, width, height vg.Length) *Server {
	if width == 0 || height == 0 {
		width, height = render.DefaultWidth, render.DefaultHeight
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{
		e:        e,
		pipeline: pipeline,
		defaults: defaults,
		width:    width,
		height:   height,
	}

	e.Use(middleware.Recover())
	e.Use(loggingMiddleware)

	e.GET("/", s.getIndex)
	e.GET("/figure.png", s.getFigure)
	e.GET("/healthz", s.getHealth)

	g := e.Group("/api/")
	g.GET("run", s.getRun)
	g.GET("params", s.getParams)
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	logging.Info("listening", logging.Server, "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logging.Info("request", logging.Server,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"elapsed", time.Since(start))
		return nil
	}
}

type indexPage struct {
	Params      playground.Params
	Activations []model.Activation
	Rates       []float64
	RateIndex   int
	RateMax     int
	Min, Max    playground.Params
	EpochsStep  int
}

func (s *Server) getIndex(c echo.Context) error {
	p, err := s.parseParams(c)
	if err != nil {
		return err
	}
	rates := playground.LearningRates()
	page := indexPage{
		Params:      p,
		Activations: model.Activations(),
		Rates:       rates,
		RateIndex:   nearestRate(rates, p.LearningRate),
		RateMax:     len(rates) - 1,
		Min:         playground.Params{Neurons: playground.MinNeurons, Epochs: playground.MinEpochs},
		Max:         playground.Params{Neurons: playground.MaxNeurons, Epochs: playground.MaxEpochs},
		EpochsStep:  playground.EpochsStep,
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, page); err != nil {
		logging.Error("render index", logging.Server, "error", err)
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (s *Server) getFigure(c echo.Context) error {
	res, err := s.run(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, s.pipeline.Figure(res), s.width, s.height); err != nil {
		logging.Error("render figure", logging.Server, "error", err)
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// RunResponse summarises one run.
type RunResponse struct {
	Params      playground.Params `json:"params"`
	Loss        []float64         `json:"loss"`
	FinalLoss   float64           `json:"final_loss"`
	Accuracy    float64           `json:"accuracy"`
	ClassCounts [2]int            `json:"class_counts"`
	Degenerate  bool              `json:"degenerate"`
	ElapsedMs   int64             `json:"elapsed_ms"`
}

func (s *Server) getRun(c echo.Context) error {
	res, err := s.run(c)
	if err != nil {
		return err
	}
	final, _ := res.History.Final()
	return c.JSON(http.StatusOK, RunResponse{
		Params:      res.Params,
		Loss:        res.History.Loss,
		FinalLoss:   final,
		Accuracy:    res.Accuracy,
		ClassCounts: res.ClassMap.Counts(),
		Degenerate:  res.ClassMap.Degenerate(),
		ElapsedMs:   res.Elapsed.Milliseconds(),
	})
}

// ParamsResponse describes the control ranges.
type ParamsResponse struct {
	Defaults      playground.Params  `json:"defaults"`
	Activations   []model.Activation `json:"activations"`
	LearningRates []float64          `json:"learning_rates"`
	Neurons       [2]int             `json:"neurons"`
	Epochs        [3]int             `json:"epochs"`
}

func (s *Server) getParams(c echo.Context) error {
	return c.JSON(http.StatusOK, ParamsResponse{
		Defaults:      s.defaults,
		Activations:   model.Activations(),
		LearningRates: playground.LearningRates(),
		Neurons:       [2]int{playground.MinNeurons, playground.MaxNeurons},
		Epochs:        [3]int{playground.MinEpochs, playground.MaxEpochs, playground.EpochsStep},
	})
}

func (s *Server) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

func (s *Server) run(c echo.Context) (*playground.Result, error) {
	p, err := s.parseParams(c)
	if err != nil {
		return nil, err
	}
	res, err := s.pipeline.Run(c.Request().Context(), p)
	if err != nil {
		if errors.Is(err, playground.ErrInvalidParams) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return res, nil
}

// parseParams reads neurons, activation, lr and epochs from the query
// string over the defaults and validates the result.
func (s *Server) parseParams(c echo.Context) (playground.Params, error) {
	p := s.defaults

	if v := c.QueryParam("neurons"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "neurons: "+err.Error())
		}
		p.Neurons = n
	}
	if v := c.QueryParam("activation"); v != "" {
		act, err := model.ParseActivation(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		p.Activation = act
	}
	if v := c.QueryParam("lr"); v != "" {
		lr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "lr: "+err.Error())
		}
		p.LearningRate = lr
	}
	if v := c.QueryParam("epochs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "epochs: "+err.Error())
		}
		p.Epochs = n
	}

	if err := p.Validate(); err != nil {
		return p, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return p, nil
}

func nearestRate(rates []float64, v float64) int {
	best := 0
	for i, r := range rates {
		if math.Abs(r-v) < math.Abs(rates[best]-v) {
			best = i
		}
	}
	return best
}
