// Command simulator generates synthetic outbreak data.
//
// It runs the stochastic SIR model once and writes the weekly incidence as a
// week,value CSV that the forecaster's file source reads directly:
//
//	simulator -seed=42 -observed-weeks=10 -out=flu.csv
//	SOURCE_PATH=flu.csv SOURCE_TIME_COLUMN=week forecaster -source=file
//
// With -daily it also writes the per-step trajectory.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/epicast/epicast/cmd/forecaster/logger"
	"github.com/epicast/epicast/cmd/simulator/config"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg)
	if err := run(cfg, log); err != nil {
		log.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	traj, weekly, err := simulate(cfg)
	if err != nil {
		return err
	}

	var total float64
	for _, v := range weekly {
		total += v
	}
	log.Info("simulated outbreak",
		"population", cfg.Population,
		"weeks", cfg.Weeks,
		"steps", len(traj.Times),
		"total_infected", total,
		"seed", cfg.Seed,
	)

	if err := writeTo(cfg.Output, func(w io.Writer) error {
		return writeWeekly(w, weekly, cfg.ObservedWeeks)
	}); err != nil {
		return fmt.Errorf("write weekly series: %w", err)
	}
	if cfg.Daily != "" {
		if err := writeTo(cfg.Daily, func(w io.Writer) error {
			return writeDaily(w, traj)
		}); err != nil {
			return fmt.Errorf("write daily trajectory: %w", err)
		}
	}
	return nil
}

func writeTo(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logger.ParseLevel(cfg.LogLevel)}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h).With("service", "simulator")
}
