// Package mcmc draws posterior samples from an unnormalized log density.
//
// Two samplers are provided: a No-U-Turn sampler (NUTS) with dual-averaging
// step-size adaptation, and random-walk Metropolis-Hastings built on gonum's
// stat/samplemv. Targets live in an unconstrained space; mapping parameters
// to their support is the caller's job.
//
// A Target returning an error aborts the chain, and RunChains discards every
// chain of a run when one of them fails. A log density of -Inf is not an
// error: it marks a point the sampler must reject.
package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// ErrSamplingFailed wraps every error that aborts a sampling run.
var ErrSamplingFailed = errors.New("sampling failed")

// Target is an unnormalized log density over R^Dim.
type Target interface {
	Dim() int
	LogProb(x []float64) (float64, error)
}

// GradientTarget is a Target that can also compute the gradient of its log
// density. Targets that do not implement it are differentiated numerically.
type GradientTarget interface {
	Target
	LogProbGrad(x, grad []float64) (float64, error)
}

// Options controls the length of a chain.
type Options struct {
	NumWarmup  int
	NumSamples int
}

// Chain is the retained output of one sampler run.
type Chain struct {
	Draws       *mat.Dense // NumSamples × Dim
	LogProbs    []float64
	AcceptRate  float64
	StepSize    float64
	Divergences int
}

// Sampler produces one chain from a starting point.
type Sampler interface {
	Name() string
	Sample(ctx context.Context, target Target, init []float64, opts Options, src rand.Source) (*Chain, error)
}

// gradient evaluates the log density and its gradient at x, numerically when
// the target has no analytic gradient. Points with a -Inf density get a zero
// gradient.
func gradient(target Target, x, grad []float64) (float64, error) {
	if gt, ok := target.(GradientTarget); ok {
		return gt.LogProbGrad(x, grad)
	}

	lp, err := target.LogProb(x)
	if err != nil {
		return 0, err
	}
	if math.IsInf(lp, -1) {
		for i := range grad {
			grad[i] = 0
		}
		return lp, nil
	}

	var evalErr error
	f := func(y []float64) float64 {
		v, err := target.LogProb(y)
		if err != nil && evalErr == nil {
			evalErr = err
		}
		return v
	}
	fd.Gradient(grad, f, x, &fd.Settings{
		Formula:     fd.Central,
		OriginKnown: true,
		OriginValue: lp,
	})
	if evalErr != nil {
		return 0, evalErr
	}
	return lp, nil
}
