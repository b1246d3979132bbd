package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/playground"
	"github.com/born-ml/playground/internal/render"
	"github.com/born-ml/playground/internal/train"
)

// diagonal predicts class 1 above y = x.
type diagonal struct{}

func (diagonal) Predict(features []float32) ([]float32, error) {
	out := make([]float32, len(features)/2)
	for i := range out {
		if features[2*i+1] > features[2*i] {
			out[i] = 1
		}
	}
	return out, nil
}

type fakePipeline struct {
	samples *dataset.Samples
	grid    render.Grid

	mu    sync.Mutex
	calls []playground.Params
	err   error
}

func newFakePipeline(t *testing.T) *fakePipeline {
	t.Helper()
	s, err := dataset.MakeMoons(60, 0.1, 3)
	require.NoError(t, err)
	g, err := render.ForSamples(s, render.DefaultMargin, 0.1)
	require.NoError(t, err)
	return &fakePipeline{samples: s, grid: g}
}

func (f *fakePipeline) Run(_ context.Context, p playground.Params) (*playground.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	cm, err := render.Boundary(diagonal{}, f.grid)
	if err != nil {
		return nil, err
	}
	loss := make([]float64, p.Epochs)
	for i := range loss {
		loss[i] = 0.7 / float64(i+1)
	}
	return &playground.Result{
		Params:   p,
		History:  train.History{Loss: loss, Accuracy: make([]float64, p.Epochs)},
		ClassMap: cm,
		Accuracy: 0.875,
		Elapsed:  1500 * time.Millisecond,
	}, nil
}

func (f *fakePipeline) Figure(res *playground.Result) render.Figure {
	return render.Figure{Samples: f.samples, ClassMap: res.ClassMap, Loss: res.History.Loss}
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func newTestServer(t *testing.T) (*Server, *fakePipeline) {
	t.Helper()
	p := newFakePipeline(t)
	return NewServer(p, playground.DefaultParams(), 0, 0), p
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndex(t *testing.T) {
	s, p := newTestServer(t)
	rec := do(t, s, "/?neurons=7&activation=tanh")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, `id="neurons"`)
	assert.Contains(t, body, `value="7"`)
	assert.Contains(t, body, `<option value="tanh" selected>`)
	assert.Contains(t, body, `<option value="sigmoid">`)
	// The page itself never trains.
	assert.Empty(t, p.calls)
}

func TestFigure(t *testing.T) {
	s, p := newTestServer(t)
	rec := do(t, s, "/figure.png?neurons=6&activation=sigmoid&lr=0.001&epochs=150")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), rec.Body.Bytes()[:8])

	require.Len(t, p.calls, 1)
	assert.Equal(t, playground.Params{
		Neurons:      6,
		Activation:   model.Sigmoid,
		LearningRate: 0.001,
		Epochs:       150,
	}, p.calls[0])
}

func TestRunDefaults(t *testing.T) {
	s, p := newTestServer(t)
	rec := do(t, s, "/api/run")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, playground.DefaultParams(), resp.Params)
	assert.Len(t, resp.Loss, 100)
	assert.InDelta(t, 0.007, resp.FinalLoss, 1e-12)
	assert.Equal(t, 0.875, resp.Accuracy)
	assert.Equal(t, int64(1500), resp.ElapsedMs)
	assert.False(t, resp.Degenerate)
	assert.Positive(t, resp.ClassCounts[0])
	assert.Positive(t, resp.ClassCounts[1])
	require.Len(t, p.calls, 1)
}

func TestInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "neurons not a number", target: "/api/run?neurons=abc", want: "neurons"},
		{name: "neurons out of range", target: "/api/run?neurons=21", want: "neurons"},
		{name: "unknown activation", target: "/api/run?activation=gelu", want: "gelu"},
		{name: "lr too small", target: "/figure.png?lr=0.00001", want: "learning_rate"},
		{name: "lr not a number", target: "/figure.png?lr=fast", want: "lr"},
		{name: "epochs off step", target: "/api/run?epochs=120", want: "epochs"},
		{name: "index with bad epochs", target: "/?epochs=1000", want: "epochs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTestServer(t)
			rec := do(t, s, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Message, tt.want)
			assert.Empty(t, p.calls)
		})
	}
}

func TestPipelineFailure(t *testing.T) {
	s, p := newTestServer(t)
	p.err = errors.New("diverged")

	rec := do(t, s, "/api/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "diverged")

	p.err = &playground.ParamError{Field: playground.FieldNeurons, Value: 0, Reason: "out of range"}
	rec = do(t, s, "/api/run")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParams(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/params")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ParamsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, playground.DefaultParams(), resp.Defaults)
	assert.Equal(t, model.Activations(), resp.Activations)
	assert.Equal(t, [2]int{2, 20}, resp.Neurons)
	assert.Equal(t, [3]int{50, 500, 50}, resp.Epochs)
	assert.Len(t, resp.LearningRates, 16)
}

func TestConcurrentRequests(t *testing.T) {
	s, p := newTestServer(t)

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(t, s, "/api/run?epochs=50").Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, p.calls, 4)
}

func TestRecoverFromPanic(t *testing.T) {
	s, _ := newTestServer(t)
	s.e.GET("/panic", func(c echo.Context) error { panic("boom") })

	rec := do(t, s, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	errc := make(chan error, 1)
	go func() { errc <- s.Start("127.0.0.1:0") }()

	require.Eventually(t, func() bool { return s.e.ListenerAddr() != nil }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errc)
}
