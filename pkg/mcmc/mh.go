package mcmc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"
)

// mhBatch is the number of draws generated between context checks.
const mhBatch = 500

// MetropolisHastings is a random-walk Metropolis-Hastings sampler with an
// isotropic normal proposal of standard deviation Scale.
type MetropolisHastings struct {
	Scale float64 // default 0.1
}

func (MetropolisHastings) Name() string { return "mh" }

// targetDensity adapts a Target to gonum's distmv.LogProber, remembering the
// first error so the run can be aborted once the current batch returns.
type targetDensity struct {
	target Target
	err    error
}

func (l *targetDensity) LogProb(x []float64) float64 {
	if l.err != nil {
		return math.Inf(-1)
	}
	lp, err := l.target.LogProb(x)
	if err != nil {
		l.err = err
		return math.Inf(-1)
	}
	if math.IsNaN(lp) {
		return math.Inf(-1)
	}
	return lp
}

// Sample implements Sampler.
func (m MetropolisHastings) Sample(ctx context.Context, target Target, init []float64, opts Options, src rand.Source) (*Chain, error) {
	dim := target.Dim()
	if len(init) != dim {
		return nil, fmt.Errorf("%w: initial point has %d values, target has %d dimensions", ErrSamplingFailed, len(init), dim)
	}
	if opts.NumSamples <= 0 {
		return nil, fmt.Errorf("%w: NumSamples must be > 0", ErrSamplingFailed)
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	scale := m.Scale
	if scale <= 0 {
		scale = 0.1
	}
	sigma := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		sigma.SetSym(i, i, scale*scale)
	}
	proposal, ok := samplemv.NewProposalNormal(sigma, src)
	if !ok {
		return nil, fmt.Errorf("%w: invalid proposal scale %v", ErrSamplingFailed, scale)
	}

	lp := &targetDensity{target: target}
	if v := lp.LogProb(init); math.IsInf(v, -1) {
		if lp.err != nil {
			return nil, fmt.Errorf("%w: initial point: %w", ErrSamplingFailed, lp.err)
		}
		return nil, fmt.Errorf("%w: initial point has zero density", ErrSamplingFailed)
	}

	draws := mat.NewDense(opts.NumSamples, dim, nil)
	current := append([]float64(nil), init...)
	burnIn := opts.NumWarmup

	for from := 0; from < opts.NumSamples; from += mhBatch {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSamplingFailed, err)
		}
		to := min(from+mhBatch, opts.NumSamples)
		batch := draws.Slice(from, to, 0, dim).(*mat.Dense)

		samplemv.MetropolisHastingser{
			Initial:  current,
			Target:   lp,
			Proposal: proposal,
			Src:      src,
			BurnIn:   burnIn,
		}.Sample(batch)

		if lp.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSamplingFailed, lp.err)
		}
		burnIn = 0
		current = mat.Row(nil, to-from-1, batch)
	}

	chain := &Chain{
		Draws:    draws,
		LogProbs: make([]float64, opts.NumSamples),
		StepSize: scale,
	}
	moves := 0
	for i := 0; i < opts.NumSamples; i++ {
		row := draws.RawRowView(i)
		v, err := target.LogProb(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSamplingFailed, err)
		}
		chain.LogProbs[i] = v
		if i > 0 && !equalRows(row, draws.RawRowView(i-1)) {
			moves++
		}
	}
	if opts.NumSamples > 1 {
		chain.AcceptRate = float64(moves) / float64(opts.NumSamples-1)
	}
	return chain, nil
}

func equalRows(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
