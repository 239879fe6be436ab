package inference

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/epicast/epicast/pkg/gp"
	"github.com/epicast/epicast/pkg/mcmc"
)

var _ mcmc.GradientTarget = (*posterior)(nil)

// posterior is the model's log density over the unconstrained space.
type posterior struct {
	cfg    *gp.Config
	layout layout
}

func newPosterior(cfg *gp.Config) *posterior {
	return &posterior{cfg: cfg, layout: newLayout(cfg)}
}

func (t *posterior) Dim() int { return t.layout.dim() }

func (t *posterior) LogProb(u []float64) (float64, error) {
	p, resid, logJac := t.layout.constrain(u)
	if !validParams(p) {
		return math.Inf(-1), nil
	}
	lp, err := t.cfg.LogDensity(p, resid)
	if err != nil || math.IsInf(lp, -1) {
		return lp, err
	}
	return lp + logJac, nil
}

// LogProbGrad differentiates the residual coordinates analytically and the
// few hyperparameter coordinates by central differences.
func (t *posterior) LogProbGrad(u, grad []float64) (float64, error) {
	for i := range grad {
		grad[i] = 0
	}
	p, resid, logJac := t.layout.constrain(u)
	if !validParams(p) {
		return math.Inf(-1), nil
	}

	h := t.layout.hyper()
	lp, err := t.cfg.LogDensityScore(p, resid, grad[h:])
	if err != nil || math.IsInf(lp, -1) {
		return lp, err
	}

	var evalErr error
	x := append([]float64(nil), u...)
	f := func(v []float64) float64 {
		copy(x[:h], v)
		val, err := t.LogProb(x)
		if err != nil && evalErr == nil {
			evalErr = err
		}
		return val
	}
	fd.Gradient(grad[:h], f, u[:h], &fd.Settings{Formula: fd.Central})
	if evalErr != nil {
		return 0, evalErr
	}
	return lp + logJac, nil
}
