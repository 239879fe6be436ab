// Package bands turns a posterior-predictive ensemble into percentile bands.
//
// The ensemble is a draws × time matrix; every column is summarized
// independently with linearly interpolated quantiles and the mean.
package bands

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultLevels are the 2.5/25/50/75/97.5 percentiles.
var DefaultLevels = []float64{0.025, 0.25, 0.5, 0.75, 0.975}

// ErrEmptyEnsemble is returned for an ensemble without draws.
var ErrEmptyEnsemble = errors.New("empty forecast ensemble")

// Bands holds per-time-point summaries of an ensemble.
type Bands struct {
	Levels    []float64
	Quantiles [][]float64 // one row per level, one column per time point
	Mean      []float64
}

// Compute summarizes each column of forecasts at the given levels.
func Compute(forecasts mat.Matrix, levels []float64) (*Bands, error) {
	if forecasts == nil {
		return nil, ErrEmptyEnsemble
	}
	draws, steps := forecasts.Dims()
	if draws == 0 || steps == 0 {
		return nil, ErrEmptyEnsemble
	}
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	for _, q := range levels {
		if !(q >= 0 && q <= 1) {
			return nil, fmt.Errorf("quantile level %v out of range [0, 1]", q)
		}
	}

	b := &Bands{
		Levels:    slices.Clone(levels),
		Quantiles: make([][]float64, len(levels)),
		Mean:      make([]float64, steps),
	}
	for k := range b.Quantiles {
		b.Quantiles[k] = make([]float64, steps)
	}

	col := make([]float64, draws)
	for j := 0; j < steps; j++ {
		mat.Col(col, j, forecasts)
		sort.Float64s(col)
		b.Mean[j] = stat.Mean(col, nil)
		for k, q := range levels {
			b.Quantiles[k][j] = stat.Quantile(q, stat.LinInterp, col, nil)
		}
	}
	return b, nil
}

// Level returns the band at quantile level q, or nil if it was not computed.
func (b *Bands) Level(q float64) []float64 {
	for k, l := range b.Levels {
		if l == q {
			return b.Quantiles[k]
		}
	}
	return nil
}

// Labeled returns the bands keyed by p-notation, e.g. "p2.5".
func (b *Bands) Labeled() map[string][]float64 {
	out := make(map[string][]float64, len(b.Levels))
	for k, l := range b.Levels {
		out[FormatQuantileLevel(l)] = b.Quantiles[k]
	}
	return out
}
