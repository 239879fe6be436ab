package config

import (
	"flag"
	"io"
	"testing"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return Parse(fs, args)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Population != 1000 || cfg.I0 != 5 || cfg.Repo != 2 || cfg.InfectiousPeriod != 2 {
		t.Errorf("unexpected outbreak defaults: %+v", cfg)
	}
	if cfg.Weeks != 32 || cfg.DaysPerWeek != 7 || cfg.Seed != 1 || cfg.Output != "-" {
		t.Errorf("unexpected run defaults: %+v", cfg)
	}
}

func TestParse_EnvAndFlags(t *testing.T) {
	t.Setenv("WEEKS", "20")
	t.Setenv("SEED", "7")

	cfg, err := parse(t, "-seed=9", "-observed-weeks=8", "-daily=/tmp/daily.csv")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Weeks != 20 {
		t.Errorf("Weeks = %d, want 20 from env", cfg.Weeks)
	}
	if cfg.Seed != 9 {
		t.Errorf("Seed = %d, flag should override env", cfg.Seed)
	}
	if cfg.ObservedWeeks != 8 || cfg.Daily != "/tmp/daily.csv" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero weeks", []string{"-weeks=0"}},
		{"zero days", []string{"-days-per-week=0"}},
		{"observed beyond weeks", []string{"-weeks=4", "-observed-weeks=5"}},
		{"negative seed", []string{"-seed=-1"}},
		{"empty output", []string{"-out="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(t, tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
