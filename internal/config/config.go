// Package config loads playground settings from defaults, an optional YAML
// file and PLAYGROUND_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/born-ml/playground/internal/dataset"
	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/playground"
	"github.com/born-ml/playground/internal/render"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: PLAYGROUND_TRAIN__BATCH_SIZE=64.
const EnvPrefix = "PLAYGROUND_"

// DefaultPath is read when no explicit path is given and it exists.
const DefaultPath = "playground.yaml"

type Config struct {
	Dataset  DatasetConfig  `koanf:"dataset"`
	Defaults DefaultsConfig `koanf:"defaults"`
	Train    TrainConfig    `koanf:"train"`
	Render   RenderConfig   `koanf:"render"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

type DatasetConfig struct {
	Samples int     `koanf:"samples"`
	Noise   float64 `koanf:"noise"`
	Seed    uint64  `koanf:"seed"`
}

// DefaultsConfig holds the initial control values.
type DefaultsConfig struct {
	Neurons      int     `koanf:"neurons"`
	Activation   string  `koanf:"activation"`
	LearningRate float64 `koanf:"learning_rate"`
	Epochs       int     `koanf:"epochs"`
}

type TrainConfig struct {
	Optimizer string  `koanf:"optimizer"`
	Momentum  float64 `koanf:"momentum"`
	BatchSize int     `koanf:"batch_size"`
	Shuffle   bool    `koanf:"shuffle"`
	Seed      uint64  `koanf:"seed"`
}

type RenderConfig struct {
	Step      float64 `koanf:"step"`
	Margin    float64 `koanf:"margin"`
	Threshold float64 `koanf:"threshold"`
	// Figure size in points.
	Width  float64 `koanf:"width"`
	Height float64 `koanf:"height"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File receives logs while the terminal UI owns the screen.
	// Empty discards them.
	File string `koanf:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := playground.DefaultParams()
	settings := playground.DefaultSettings()

	return Config{
		Dataset: DatasetConfig{
			Samples: dataset.DefaultSamples,
			Noise:   dataset.DefaultNoise,
			Seed:    dataset.DefaultSeed,
		},
		Defaults: DefaultsConfig{
			Neurons:      params.Neurons,
			Activation:   params.Activation.String(),
			LearningRate: params.LearningRate,
			Epochs:       params.Epochs,
		},
		Train: TrainConfig{
			Optimizer: string(settings.Optimizer),
			Momentum:  0.9,
			BatchSize: settings.BatchSize,
			Shuffle:   settings.Shuffle,
			Seed:      settings.Seed,
		},
		Render: RenderConfig{
			Step:      settings.GridStep,
			Margin:    settings.GridMargin,
			Threshold: settings.Threshold,
			Width:     float64(render.DefaultWidth),
			Height:    float64(render.DefaultHeight),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load reads path (YAML) over the defaults, then applies environment
// overrides. An empty path falls back to DefaultPath when it exists.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			return LoadFrom(nil)
		}
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return LoadFrom(file.Provider(path))
}

// LoadFrom is Load with an arbitrary YAML provider; nil skips the file layer.
func LoadFrom(provider koanf.Provider) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}
	if provider != nil {
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file: %w", err)
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Debug("config loaded", logging.Config, "keys", len(k.Keys()))
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return out, nil
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	var errs []error

	if c.Dataset.Samples < 4 {
		errs = append(errs, fmt.Errorf("dataset.samples must be >= 4, got %d", c.Dataset.Samples))
	}
	if c.Dataset.Noise < 0 {
		errs = append(errs, fmt.Errorf("dataset.noise must be >= 0, got %v", c.Dataset.Noise))
	}
	if _, err := c.Params(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	if _, err := model.ParseOptimizer(c.Train.Optimizer); err != nil {
		errs = append(errs, err)
	}
	if c.Train.Momentum < 0 || c.Train.Momentum >= 1 {
		errs = append(errs, fmt.Errorf("train.momentum must be in [0, 1), got %v", c.Train.Momentum))
	}
	if c.Train.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("train.batch_size must be >= 0, got %d", c.Train.BatchSize))
	}
	if !(c.Render.Step > 0) {
		errs = append(errs, fmt.Errorf("render.step must be > 0, got %v", c.Render.Step))
	}
	if c.Render.Margin < 0 {
		errs = append(errs, fmt.Errorf("render.margin must be >= 0, got %v", c.Render.Margin))
	}
	if !(c.Render.Threshold > 0 && c.Render.Threshold < 1) {
		errs = append(errs, fmt.Errorf("render.threshold must be in (0, 1), got %v", c.Render.Threshold))
	}
	if !(c.Render.Width > 0) || !(c.Render.Height > 0) {
		errs = append(errs, fmt.Errorf("render size must be positive, got %vx%v", c.Render.Width, c.Render.Height))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Params returns the initial control values.
func (c Config) Params() (playground.Params, error) {
	act, err := model.ParseActivation(c.Defaults.Activation)
	if err != nil {
		return playground.Params{}, err
	}
	p := playground.Params{
		Neurons:      c.Defaults.Neurons,
		Activation:   act,
		LearningRate: c.Defaults.LearningRate,
		Epochs:       c.Defaults.Epochs,
	}
	return p, p.Validate()
}

// Settings returns the pipeline settings.
func (c Config) Settings() playground.Settings {
	opt, _ := model.ParseOptimizer(c.Train.Optimizer)
	return playground.Settings{
		Optimizer:  opt,
		Momentum:   c.Train.Momentum,
		BatchSize:  c.Train.BatchSize,
		Shuffle:    c.Train.Shuffle,
		Seed:       c.Train.Seed,
		GridStep:   c.Render.Step,
		GridMargin: c.Render.Margin,
		Threshold:  c.Render.Threshold,
	}
}

// Samples generates the configured two-moons set.
func (c Config) Samples() (*dataset.Samples, error) {
	return dataset.MakeMoons(c.Dataset.Samples, c.Dataset.Noise, c.Dataset.Seed)
}
