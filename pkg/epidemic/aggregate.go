package epidemic

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Aggregate sums consecutive blocks of a fine-grained incidence series into
// periods coarse values, e.g. 224 daily counts into 32 weekly counts.
func Aggregate(incidence []float64, periods int) ([]float64, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be > 0, got %d", periods)
	}
	if len(incidence)%periods != 0 {
		return nil, fmt.Errorf("cannot split %d values into %d equal periods", len(incidence), periods)
	}

	width := len(incidence) / periods
	out := make([]float64, periods)
	for k := range out {
		out[k] = floats.Sum(incidence[k*width : (k+1)*width])
	}
	return out, nil
}
