// Package adapters provides incidence sources for the forecaster.
//
// Each adapter implements Adapter and returns a Series: one incidence value
// per week, NaN for weeks that have not been observed yet. Available adapters:
//   - SimulateAdapter: stochastic SIR run aggregated to weeks and masked
//   - FileAdapter:     CSV file with a header row
//   - HTTPAdapter:     any JSON API, values extracted with gjson paths
//
// Adapters only shape data. Validation of the observed prefix and all model
// logic happen in the inference layer.
package adapters

import (
	"context"
	"fmt"
	"math"
)

// Series is a weekly incidence series.
type Series struct {
	Times  []float64
	Values []float64 // NaN marks an unobserved week
}

// Len returns the number of weeks.
func (s *Series) Len() int { return len(s.Values) }

// Extend pads the series with unobserved weeks up to n values. Times continue
// with the spacing of the last two points, or 1 when there are fewer than two.
// Series already at least n long are returned unchanged.
func (s *Series) Extend(n int) {
	if len(s.Values) >= n {
		return
	}
	step := 1.0
	if k := len(s.Times); k >= 2 {
		step = s.Times[k-1] - s.Times[k-2]
	}
	for len(s.Values) < n {
		next := 0.0
		if k := len(s.Times); k > 0 {
			next = s.Times[k-1] + step
		}
		s.Times = append(s.Times, next)
		s.Values = append(s.Values, math.NaN())
	}
}

// Adapter is the interface all incidence sources implement.
//
// Collect is synchronous and must respect context cancellation.
type Adapter interface {
	Collect(ctx context.Context) (*Series, error)

	// Name returns a short identifier, e.g. "simulate", "file", "http".
	Name() string
}

func newSeries(times, values []float64) (*Series, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	if times == nil {
		times = make([]float64, len(values))
		for i := range times {
			times[i] = float64(i)
		}
	}
	if len(times) != len(values) {
		return nil, fmt.Errorf("%d times for %d values", len(times), len(values))
	}
	return &Series{Times: times, Values: values}, nil
}
