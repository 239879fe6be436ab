// Package series validates and prepares partially observed incidence series.
//
// A series is a []float64 where NaN marks an unobserved value. Unobserved
// values must form a contiguous suffix; the index of the first NaN is the
// split point (nobs) between the observed and forecast ranges.
package series

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidSeries is the parent of every series shape error.
	ErrInvalidSeries = errors.New("invalid incidence series")

	ErrFullyObserved  = fmt.Errorf("%w: no unobserved values to forecast", ErrInvalidSeries)
	ErrNoObservations = fmt.Errorf("%w: no observed values", ErrInvalidSeries)
	ErrNonContiguous  = fmt.Errorf("%w: unobserved values are not a contiguous suffix", ErrInvalidSeries)
)

// SplitPoint returns nobs, the index of the first NaN in y. It requires at
// least one observed and one unobserved value, and no observed value after
// the first NaN.
func SplitPoint(y []float64) (int, error) {
	nobs := -1
	for i, v := range y {
		if math.IsNaN(v) {
			nobs = i
			break
		}
	}

	switch {
	case nobs < 0:
		return 0, ErrFullyObserved
	case nobs == 0:
		return 0, ErrNoObservations
	}

	for i := nobs + 1; i < len(y); i++ {
		if !math.IsNaN(y[i]) {
			return 0, fmt.Errorf("%w: index %d observed after first missing index %d", ErrNonContiguous, i, nobs)
		}
	}
	return nobs, nil
}

// Mask returns a copy of y with every value from index from onwards set to NaN.
func Mask(y []float64, from int) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	if from < 0 {
		from = 0
	}
	for i := from; i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

// NaNMean returns the mean of the non-NaN entries of y, or NaN if there are none.
func NaNMean(y []float64) float64 {
	observed := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		return math.NaN()
	}
	return stat.Mean(observed, nil)
}

// HasNonFinite reports whether any observed (non-NaN) value is infinite.
func HasNonFinite(y []float64) bool {
	for _, v := range y {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// TimeFeatures builds an n×cols feature matrix whose every column is the time
// index 1..n. Column 0 drives the random-walk kernel, the rest the RBF kernel.
func TimeFeatures(n, cols int) *mat.Dense {
	t := make([]float64, n)
	if n > 1 {
		floats.Span(t, 1, float64(n))
	} else if n == 1 {
		t[0] = 1
	}
	X := mat.NewDense(n, cols, nil)
	for j := 0; j < cols; j++ {
		X.SetCol(j, t)
	}
	return X
}
