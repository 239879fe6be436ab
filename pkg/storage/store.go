// Package storage persists forecast snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSnapshot is returned by Put for snapshots that cannot be stored.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the persisted result of one forecast run.
type Snapshot struct {
	RunID       string    `json:"runId"`
	Series      string    `json:"series"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Times holds one entry per week of the forecast.
	Times []float64 `json:"times"`
	// Observed is the observed prefix of the series, len == Nobs.
	Observed []float64 `json:"observed"`
	Nobs     int       `json:"nobs"`

	// Mean is the posterior-predictive mean per time point.
	Mean []float64 `json:"mean"`
	// Quantiles maps p-notation levels (e.g. "p2.5", "p50") to one value per time point.
	Quantiles map[string][]float64 `json:"quantiles,omitempty"`
	NumDraws  int                  `json:"numDraws"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// Diagnostics are sampler statistics carried with a snapshot.
type Diagnostics struct {
	Sampler     string  `json:"sampler"`
	Chains      int     `json:"chains"`
	AcceptRate  float64 `json:"acceptRate"`
	StepSize    float64 `json:"stepSize"`
	Divergences int     `json:"divergences"`
	DurationMs  int64   `json:"durationMs"`
}

// Store persists forecast snapshots, indexed by series (latest only) and by run ID.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, series string) (Snapshot, bool, error)
	GetRun(ctx context.Context, runID string) (Snapshot, bool, error)
}

// ValidateName checks that a series name or run ID is non-empty and only
// contains alphanumerics, hyphens and underscores.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidSnapshot, kind)
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("%w: invalid %s %q: only alphanumeric, hyphens, and underscores allowed", ErrInvalidSnapshot, kind, name)
		}
	}
	return nil
}

func validate(s Snapshot) error {
	if err := ValidateName("series", s.Series); err != nil {
		return err
	}
	return ValidateName("run id", s.RunID)
}
