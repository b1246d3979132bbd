package model

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{Neurons: 4, Activation: ReLU, LearningRate: 0.01}
}

// TestClassifierImplementsModule verifies the classifier can be used
// anywhere born expects a module.
func TestClassifierImplementsModule(t *testing.T) {
	backend := cpu.New()
	clf, err := New(defaultConfig(), 42, backend)
	require.NoError(t, err)

	var m nn.Module[*cpu.Backend] = clf
	assert.NotNil(t, m.StateDict())
}

func TestClassifierArchitecture(t *testing.T) {
	backend := cpu.New()

	for _, act := range Activations() {
		t.Run(string(act), func(t *testing.T) {
			cfg := Config{Neurons: 7, Activation: act, LearningRate: 0.01}
			clf, err := New(cfg, 1, backend)
			require.NoError(t, err)

			params := clf.Parameters()
			require.Len(t, params, 4)
			assert.Equal(t, tensor.Shape{7, 2}, params[0].Tensor().Shape())
			assert.Equal(t, tensor.Shape{7}, params[1].Tensor().Shape())
			assert.Equal(t, tensor.Shape{1, 7}, params[2].Tensor().Shape())
			assert.Equal(t, tensor.Shape{1}, params[3].Tensor().Shape())

			sd := clf.StateDict()
			assert.Contains(t, sd, "0.weight")
			assert.Contains(t, sd, "0.bias")
			assert.Contains(t, sd, "2.weight")
			assert.Contains(t, sd, "2.bias")
			assert.Equal(t, cfg, clf.Config())
		})
	}
}

func TestClassifierSeededInit(t *testing.T) {
	backend := cpu.New()

	a, err := New(defaultConfig(), 42, backend)
	require.NoError(t, err)
	b, err := New(defaultConfig(), 42, backend)
	require.NoError(t, err)
	c, err := New(defaultConfig(), 43, backend)
	require.NoError(t, err)

	wa := a.Parameters()[0].Tensor().Data()
	wb := b.Parameters()[0].Tensor().Data()
	wc := c.Parameters()[0].Tensor().Data()
	assert.Equal(t, wa, wb)
	assert.NotEqual(t, wa, wc)

	// Xavier-uniform bound for a 2 → 4 layer.
	bound := float32(math.Sqrt(6.0 / 6.0))
	for _, w := range wa {
		assert.LessOrEqual(t, w, bound)
		assert.GreaterOrEqual(t, w, -bound)
	}
	for _, bias := range a.Parameters()[1].Tensor().Data() {
		assert.Zero(t, bias)
	}
}

func TestClassifierPredict(t *testing.T) {
	backend := cpu.New()
	clf, err := New(Config{Neurons: 3, Activation: Tanh, LearningRate: 0.1}, 7, backend)
	require.NoError(t, err)

	probs, err := clf.Predict([]float32{0, 0, 1, 0.5, -1, 2})
	require.NoError(t, err)
	require.Len(t, probs, 3)
	for _, p := range probs {
		assert.Greater(t, p, float32(0))
		assert.Less(t, p, float32(1))
	}

	// Zero biases and zero input give sigmoid(0).
	assert.InDelta(t, 0.5, probs[0], 1e-6)

	_, err = clf.Predict(nil)
	assert.Error(t, err)
	_, err = clf.Predict([]float32{1, 2, 3})
	assert.Error(t, err)
}

func TestPredictRestoresRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	clf, err := New(defaultConfig(), 42, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	_, err = clf.Predict([]float32{0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, backend.Tape().IsRecording())

	backend.Tape().StopRecording()
	_, err = clf.Predict([]float32{0.5, 0.5})
	require.NoError(t, err)
	assert.False(t, backend.Tape().IsRecording())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: defaultConfig()},
		{name: "zero neurons", cfg: Config{Neurons: 0, Activation: ReLU, LearningRate: 0.01}, wantErr: true},
		{name: "bad activation", cfg: Config{Neurons: 4, Activation: "gelu", LearningRate: 0.01}, wantErr: true},
		{name: "zero lr", cfg: Config{Neurons: 4, Activation: ReLU, LearningRate: 0}, wantErr: true},
		{name: "nan lr", cfg: Config{Neurons: 4, Activation: ReLU, LearningRate: math.NaN()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseActivation(t *testing.T) {
	a, err := ParseActivation(" TanH ")
	require.NoError(t, err)
	assert.Equal(t, Tanh, a)

	_, err = ParseActivation("softmax")
	assert.Error(t, err)
}

func TestParseOptimizer(t *testing.T) {
	k, err := ParseOptimizer("")
	require.NoError(t, err)
	assert.Equal(t, Adam, k)

	k, err = ParseOptimizer("SGD")
	require.NoError(t, err)
	assert.Equal(t, SGD, k)

	_, err = ParseOptimizer("rmsprop")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	backend := autodiff.New(cpu.New())

	clf, opt, err := Build(defaultConfig(), Options{Seed: 42}, backend)
	require.NoError(t, err)
	require.NotNil(t, clf)
	assert.InDelta(t, 0.01, opt.GetLR(), 1e-9)

	_, opt, err = Build(defaultConfig(), Options{Optimizer: SGD, Momentum: 0.9, Seed: 42}, backend)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, opt.GetLR(), 1e-9)

	_, _, err = Build(defaultConfig(), Options{Optimizer: SGD, Momentum: 1.5}, backend)
	assert.Error(t, err)
}

func TestBinaryCrossEntropy(t *testing.T) {
	backend := cpu.New()

	probs, err := tensor.FromSlice([]float32{0.9, 0.2, 0.5, 0.7}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)
	targets, err := tensor.FromSlice([]float32{1, 0, 1, 0}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)

	loss := BinaryCrossEntropy(probs, targets, backend)
	require.Equal(t, tensor.Shape{1, 1}, loss.Shape())

	want := -(math.Log(0.9) + math.Log(0.8) + math.Log(0.5) + math.Log(0.3)) / 4
	assert.InDelta(t, want, loss.Data()[0], 1e-4)
}

func TestBinaryCrossEntropyGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	defer backend.Tape().StopRecording()

	clf, err := New(defaultConfig(), 42, backend)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 0, -1, 0.5}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{1, 0}, tensor.Shape{2, 1}, backend)
	require.NoError(t, err)

	loss := BinaryCrossEntropy(clf.Forward(x), y, backend)
	grads := autodiff.Backward(loss, backend)

	for _, p := range clf.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "missing gradient for %s", p.Name())
		assert.Equal(t, p.Tensor().Shape(), g.Shape())
	}
}

func TestBinaryCrossEntropyShapeMismatch(t *testing.T) {
	backend := cpu.New()
	probs := tensor.Full[float32](tensor.Shape{3, 1}, 0.5, backend)
	targets := tensor.Full[float32](tensor.Shape{2, 1}, 1, backend)

	assert.Panics(t, func() {
		BinaryCrossEntropy(probs, targets, backend)
	})
}

func TestAccuracy(t *testing.T) {
	assert.InDelta(t, 0.75, Accuracy([]float32{0.9, 0.1, 0.6, 0.4}, []float32{1, 0, 0, 0}), 1e-12)
	assert.Zero(t, Accuracy(nil, nil))
}

// readCheckpoint decodes a SafeTensors file into its header and float32
// tensors keyed by name.
func readCheckpoint(t *testing.T, path string) (map[string]json.RawMessage, map[string][]float32) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 8)

	size := binary.LittleEndian.Uint64(raw[:8])
	require.LessOrEqual(t, 8+size, uint64(len(raw)))
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw[8:8+size], &header))

	data := raw[8+size:]
	tensors := make(map[string][]float32)
	for name, msg := range header {
		if name == MetadataKey {
			continue
		}
		var th TensorHeader
		require.NoError(t, json.Unmarshal(msg, &th))
		require.Equal(t, "F32", th.DType)
		chunk := data[th.DataOffsets[0]:th.DataOffsets[1]]
		values := make([]float32, len(chunk)/4)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*i:]))
		}
		tensors[name] = values
	}
	return header, tensors
}

func TestClassifierSave(t *testing.T) {
	backend := cpu.New()
	clf, err := New(Config{Neurons: 3, Activation: Tanh, LearningRate: 0.02}, 42, backend)
	require.NoError(t, err)
	// Non-zero biases so their placement in the file is checked too.
	for _, p := range clf.Parameters() {
		if len(p.Tensor().Shape()) == 1 {
			for i := range p.Tensor().Data() {
				p.Tensor().Data()[i] = float32(i) + 0.5
			}
		}
	}

	path := filepath.Join(t.TempDir(), "moons.born")
	require.NoError(t, clf.Save(path))

	header, tensors := readCheckpoint(t, path)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(header[MetadataKey], &meta))
	assert.Equal(t, "3", meta["neurons"])
	assert.Equal(t, "tanh", meta["activation"])
	assert.Equal(t, "0.02", meta["learning_rate"])

	keys := make([]string, 0, len(clf.StateDict()))
	for k := range clf.StateDict() {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, keys, []string{"0.weight", "0.bias", "2.weight", "2.bias"})
	require.Len(t, tensors, len(keys))

	assert.Equal(t, clf.hidden.Weight().Tensor().Data(), tensors["0.weight"])
	assert.Equal(t, clf.hidden.Bias().Tensor().Data(), tensors["0.bias"])
	assert.Equal(t, clf.output.Weight().Tensor().Data(), tensors["2.weight"])
	assert.Equal(t, clf.output.Bias().Tensor().Data(), tensors["2.bias"])
	assert.Equal(t, []float32{0.5, 1.5, 2.5}, tensors["0.bias"])

	var th TensorHeader
	require.NoError(t, json.Unmarshal(header["0.weight"], &th))
	assert.Equal(t, []int64{3, 2}, th.Shape)
}

func TestClassifierSaveBadPath(t *testing.T) {
	clf, err := New(defaultConfig(), 42, cpu.New())
	require.NoError(t, err)
	assert.Error(t, clf.Save(filepath.Join(t.TempDir(), "missing", "moons.born")))
}
