package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/playground/internal/logging"
	"github.com/born-ml/playground/internal/model"
	"github.com/born-ml/playground/internal/playground"
	"github.com/born-ml/playground/internal/render"
	"github.com/born-ml/playground/internal/server"
	"github.com/born-ml/playground/internal/train"
	"github.com/born-ml/playground/internal/tui"
)

const shutdownTimeout = 5 * time.Second

// TuneCommand returns the command that opens the terminal controls.
func TuneCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Tune the network interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The UI owns the screen, so logs go to a file or nowhere.
			if a.cfg.Log.File != "" {
				f, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				if err := logging.Setup(f, a.cfg.Log.Level, a.cfg.Log.Format); err != nil {
					return err
				}
			} else {
				logging.Discard()
			}

			ctl, err := a.controller()
			if err != nil {
				return err
			}
			params, err := a.cfg.Params()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w, h := a.figureSize()
			return tui.Run(ctx, ctl, params, tui.Options{SavePath: out, FigureWidth: w, FigureHeight: h})
		},
	}
	cmd.Flags().StringVar(&out, "out", "playground.png", "where the s key writes the figure")
	return cmd
}

// ServeCommand returns the command that serves the browser controls.
func ServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the controls as a web page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			params, err := a.cfg.Params()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w, h := a.figureSize()
			srv := server.NewServer(ctl, params, w, h)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start(addr) }()
			fmt.Fprintf(cmd.OutOrStdout(), "Open http://%s/ in a browser\n", addr)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			logging.Info("shutting down", logging.Server)
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := srv.Shutdown(sctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errc
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// TrainCommand returns the command that runs the pipeline once.
func TrainCommand(a *app) *cobra.Command {
	var (
		neurons    int
		activation string
		lr         float64
		epochs     int
		out        string
		save       string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train once, print the loss and write the figure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.cfg.Params()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("neurons") {
				p.Neurons = neurons
			}
			if flags.Changed("activation") {
				if p.Activation, err = model.ParseActivation(activation); err != nil {
					return err
				}
			}
			if flags.Changed("lr") {
				p.LearningRate = lr
			}
			if flags.Changed("epochs") {
				p.Epochs = epochs
			}

			ctl, err := a.controller()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Training %s on %d samples\n", p.Format(), ctl.Samples().Len())
			every := max(1, p.Epochs/10)
			res, err := ctl.RunWithProgress(ctx, p, func(s train.EpochStats) {
				if s.Epoch == 1 || s.Epoch%every == 0 || s.Epoch == s.Epochs {
					fmt.Fprintf(stdout, "Epoch %3d/%d: Loss=%.4f, Train Acc=%.2f%%\n",
						s.Epoch, s.Epochs, s.Loss, s.Accuracy*100)
				}
			})
			if err != nil {
				return err
			}

			counts := res.ClassMap.Counts()
			fmt.Fprintf(stdout, "Accuracy %.2f%% · class map %d/%d · %s\n",
				res.Accuracy*100, counts[0], counts[1], res.Elapsed.Round(time.Millisecond))

			if out != "" {
				w, h := a.figureSize()
				if err := render.SavePNG(out, ctl.Figure(res), w, h); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Figure written to %s\n", out)
			}
			if save != "" {
				if err := res.Model.Save(save); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Model saved to %s\n", save)
			}
			return nil
		},
	}

	def := playground.DefaultParams()
	cmd.Flags().IntVar(&neurons, "neurons", def.Neurons, "hidden layer width")
	cmd.Flags().StringVar(&activation, "activation", def.Activation.String(), "hidden activation (relu, tanh, sigmoid)")
	cmd.Flags().Float64Var(&lr, "lr", def.LearningRate, "learning rate")
	cmd.Flags().IntVar(&epochs, "epochs", def.Epochs, "training epochs (multiple of 50)")
	cmd.Flags().StringVar(&out, "out", "playground.png", "figure path, empty to skip")
	cmd.Flags().StringVar(&save, "save", "", "write the trained model to this .born file")
	return cmd
}

// ConfigCommand prints the effective configuration.
func ConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func VersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Born playground %s\n", version)
		},
	}
}
