package gp

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"
)

// Latent returns the distribution of the unobserved residuals, with the
// conditional covariance inflated by the same jitter as KOO.
func (cond *Conditional) Latent(src rand.Source) (*distmv.Normal, error) {
	latent, ok := distmv.NewNormal(cond.Mean, addDiag(cond.Cov, cond.jitter), src)
	if !ok {
		return nil, fmt.Errorf("%w: latent residual covariance", ErrNotPositiveDefinite)
	}
	return latent, nil
}

// SampleResidual draws one realization of the unobserved residuals.
func (cond *Conditional) SampleResidual(src rand.Source) ([]float64, error) {
	latent, err := cond.Latent(src)
	if err != nil {
		return nil, err
	}
	return latent.Rand(nil), nil
}

// LogDensity is the joint log density of the model at hyperparameters p and
// unobserved residuals fittedResid: log prior, plus the MVN(0, KOO) likelihood
// of the centered observations, plus the conditional density of fittedResid.
//
// Hyperparameters outside the prior support give -Inf and no error. Numerical
// failures are returned as errors wrapping ErrNotPositiveDefinite or ErrNonFinite.
func (c *Config) LogDensity(p Params, fittedResid []float64) (float64, error) {
	return c.evaluate(p, fittedResid, nil)
}

// LogDensityScore is LogDensity that also stores the gradient of the log
// density with respect to fittedResid into score.
func (c *Config) LogDensityScore(p Params, fittedResid, score []float64) (float64, error) {
	if len(score) != c.Horizon() {
		return 0, fmt.Errorf("%w: score has length %d, want %d", ErrInvalidConfig, len(score), c.Horizon())
	}
	return c.evaluate(p, fittedResid, score)
}

func (c *Config) evaluate(p Params, fittedResid, score []float64) (float64, error) {
	if len(fittedResid) != c.Horizon() {
		return 0, fmt.Errorf("%w: %d residuals for horizon %d", ErrInvalidConfig, len(fittedResid), c.Horizon())
	}

	lp := c.LogPrior(p)
	if math.IsInf(lp, -1) {
		return lp, nil
	}

	cond, err := c.Condition(p)
	if err != nil {
		return 0, err
	}

	obs, ok := distmv.NewNormal(make([]float64, c.Nobs), cond.KOO, nil)
	if !ok {
		return 0, fmt.Errorf("%w: likelihood covariance", ErrNotPositiveDefinite)
	}
	latent, err := cond.Latent(nil)
	if err != nil {
		return 0, err
	}

	lp += obs.LogProb(c.CenteredY) + latent.LogProb(fittedResid)
	if !finite(lp) {
		return 0, fmt.Errorf("%w: %v", ErrNonFinite, lp)
	}
	if score != nil {
		latent.ScoreInput(score, fittedResid)
	}
	return lp, nil
}
