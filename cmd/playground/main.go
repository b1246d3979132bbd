// Command playground tunes a small classifier on the two-moons dataset,
// from the terminal or from a browser.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/born-ml/playground/internal/config"
	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/playground"
)

const version = "v0.1.0-dev"

// app carries the state shared by all subcommands once the root
// PersistentPreRunE has run.
type app struct {
	configPath string
	envPath    string
	logLevel   string

	cfg config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "playground",
		Short:         "Tune a tiny neural network on the two-moons dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config (default "+config.DefaultPath+" if present)")
	root.PersistentFlags().StringVar(&a.envPath, "env", ".env", "path to .env file (ignored if missing)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		TuneCommand(a),
		ServeCommand(a),
		TrainCommand(a),
		ConfigCommand(a),
		VersionCommand(),
	)
	return root
}

func (a *app) setup() error {
	if err := loadDotEnv(a.envPath); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// controller builds the pipeline over the configured sample set.
func (a *app) controller() (*playground.Controller, error) {
	samples, err := a.cfg.Samples()
	if err != nil {
		return nil, err
	}
	logging.Info("dataset ready", logging.Dataset,
		"samples", samples.Len(),
		"noise", a.cfg.Dataset.Noise,
		"seed", a.cfg.Dataset.Seed)
	return playground.New(samples, a.cfg.Settings())
}

func (a *app) figureSize() (vg.Length, vg.Length) {
	return vg.Length(a.cfg.Render.Width), vg.Length(a.cfg.Render.Height)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
