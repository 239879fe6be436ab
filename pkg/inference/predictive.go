package inference

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/epicast/epicast/pkg/gp"
)

// Predictive regenerates the forecast site for every posterior draw. For draw
// i it fixes the hyperparameters of that draw, recomputes the GP conditional,
// draws fresh unobserved residuals from it and emits the full-length forecast.
// The result has one row per draw and one column per element of the series.
func Predictive(ctx context.Context, cfg *gp.Config, samples Samples, src rand.Source) (*mat.Dense, error) {
	n := samples.Draws()
	if n == 0 {
		return nil, fmt.Errorf("predictive: no posterior draws")
	}

	out := mat.NewDense(n, cfg.Len(), nil)
	for i := 0; i < n; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("predictive: %w", err)
			}
		}

		cond, err := cfg.Condition(samples.Params(i))
		if err != nil {
			return nil, fmt.Errorf("predictive draw %d: %w", i, err)
		}
		resid, err := cond.SampleResidual(src)
		if err != nil {
			return nil, fmt.Errorf("predictive draw %d: %w", i, err)
		}
		out.SetRow(i, cfg.Forecast(resid))
	}
	return out, nil
}
