// Package config parses the simulator's flags and environment.
//
// Flags take precedence over environment variables, which take precedence
// over the defaults. The defaults reproduce the reference outbreak: 1000
// people, 5 initially infected, repo 2, an infectious period of 2 weeks and
// 32 weeks simulated in daily steps.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Population       int
	I0               int
	Repo             float64
	InfectiousPeriod float64
	Weeks            int
	DaysPerWeek      int
	ObservedWeeks    int
	Seed             uint64

	// Output receives the weekly series, "-" for stdout.
	Output string
	// Daily optionally receives the per-step trajectory.
	Daily string

	LogFormat string
	LogLevel  string
}

func ParseFlags() (*Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers the simulator flags on fs and parses args.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var seed int64

	fs.IntVar(&cfg.Population, "population", getEnvInt("POPULATION", 1000), "Population size")
	fs.IntVar(&cfg.I0, "i0", getEnvInt("I0", 5), "Initially infected")
	fs.Float64Var(&cfg.Repo, "repo", getEnvFloat("REPO", 2), "Reproduction number")
	fs.Float64Var(&cfg.InfectiousPeriod, "infectious-period", getEnvFloat("INFECTIOUS_PERIOD", 2), "Infectious period in weeks")
	fs.IntVar(&cfg.Weeks, "weeks", getEnvInt("WEEKS", 32), "Weeks to simulate")
	fs.IntVar(&cfg.DaysPerWeek, "days-per-week", getEnvInt("DAYS_PER_WEEK", 7), "Simulation steps per week")
	fs.IntVar(&cfg.ObservedWeeks, "observed-weeks", getEnvInt("OBSERVED_WEEKS", 0), "Write only this many weeks as observed (0 = all)")
	fs.Int64Var(&seed, "seed", int64(getEnvInt("SEED", 1)), "Random seed")
	fs.StringVar(&cfg.Output, "out", getEnv("OUT", "-"), "Weekly CSV output path, - for stdout")
	fs.StringVar(&cfg.Daily, "daily", getEnv("DAILY", ""), "Optional per-step CSV output path")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format (text|json)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if seed < 0 {
		return nil, fmt.Errorf("seed must be >= 0, got %d", seed)
	}
	cfg.Seed = uint64(seed)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the simulation itself does not.
func (c *Config) Validate() error {
	var errs []error
	if c.Weeks <= 0 {
		errs = append(errs, fmt.Errorf("weeks must be > 0, got %d", c.Weeks))
	}
	if c.DaysPerWeek <= 0 {
		errs = append(errs, fmt.Errorf("days-per-week must be > 0, got %d", c.DaysPerWeek))
	}
	if c.ObservedWeeks < 0 || c.ObservedWeeks > c.Weeks {
		errs = append(errs, fmt.Errorf("observed-weeks must be in [0, %d], got %d", c.Weeks, c.ObservedWeeks))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("out is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
