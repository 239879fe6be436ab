// Package gp implements the Gaussian-process residual forecast model.
//
// The model places a zero-mean GP on the centered incidence series. Its kernel
// is a random walk on the time index (column 0 of X) plus, when X has extra
// columns, an ARD squared-exponential kernel over them. Observed residuals enter
// through a multivariate normal likelihood with covariance KOO; the unobserved
// residuals are a latent site drawn from the closed-form GP conditional.
//
// Config carries what is fixed for a fit (data, split point, centering). Params
// carries one draw of the hyperparameters. Every evaluation, for sampling and
// for posterior prediction alike, goes through Condition.
package gp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epicast/epicast/pkg/series"
)

// Jitter is added to the diagonal of every covariance factorized by the model.
const Jitter = 1e-5

var (
	// ErrInvalidConfig is returned when data and features do not describe a fit.
	ErrInvalidConfig = errors.New("invalid model configuration")
	// ErrNotPositiveDefinite is returned when a covariance block cannot be factorized.
	ErrNotPositiveDefinite = errors.New("covariance is not positive definite")
	// ErrNonFinite is returned when the log density is NaN or infinite.
	ErrNonFinite = errors.New("non-finite log density")
)

// Config is the fixed part of the model for one fit.
type Config struct {
	Y         []float64  // full-length series, NaN for unobserved
	X         *mat.Dense // features, one row per element of Y
	Nobs      int        // number of observed points
	Center    float64    // mean of the observed values
	CenteredY []float64  // (Y - Center)[:Nobs]
	Jitter    float64
}

// NewConfig validates y and X and precomputes the split point and centering.
func NewConfig(y []float64, X *mat.Dense) (*Config, error) {
	if X == nil {
		return nil, fmt.Errorf("%w: feature matrix is required", ErrInvalidConfig)
	}
	rows, cols := X.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: feature matrix has %d rows, series has %d values", ErrInvalidConfig, rows, len(y))
	}
	if cols < 1 {
		return nil, fmt.Errorf("%w: feature matrix has no columns", ErrInvalidConfig)
	}

	nobs, err := series.SplitPoint(y)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if series.HasNonFinite(y) {
		return nil, fmt.Errorf("%w: series contains infinite values", ErrInvalidConfig)
	}

	center := series.NaNMean(y)
	centered := make([]float64, nobs)
	for i := range centered {
		centered[i] = y[i] - center
	}

	return &Config{
		Y:         y,
		X:         X,
		Nobs:      nobs,
		Center:    center,
		CenteredY: centered,
		Jitter:    Jitter,
	}, nil
}

// Len is the full series length.
func (c *Config) Len() int { return len(c.Y) }

// Horizon is the number of unobserved points.
func (c *Config) Horizon() int { return len(c.Y) - c.Nobs }

// HasRBF reports whether the ARD kernel is part of the model.
func (c *Config) HasRBF() bool {
	_, cols := c.X.Dims()
	return cols > 1
}

// NumLengthscales is the number of ARD length-scales, one per extra feature column.
func (c *Config) NumLengthscales() int {
	_, cols := c.X.Dims()
	return cols - 1
}

// Params is one draw of the model hyperparameters. Amp and Leng are ignored
// when the model has no ARD kernel.
type Params struct {
	Noise    float64
	SigmaObs float64
	RWVar    float64
	Amp      float64
	Leng     []float64
}

// Forecast builds the deterministic forecast site: the observed prefix of Y
// followed by fittedResid shifted back by Center.
func (c *Config) Forecast(fittedResid []float64) []float64 {
	out := make([]float64, 0, len(c.Y))
	out = append(out, c.Y[:c.Nobs]...)
	for _, r := range fittedResid {
		out = append(out, r+c.Center)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
