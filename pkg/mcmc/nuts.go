package mcmc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// maxEnergyError is the Hamiltonian error beyond which a trajectory is divergent.
const maxEnergyError = 1000

// NUTS is the No-U-Turn sampler with multinomial trajectory sampling and an
// identity mass matrix. The step size is tuned by dual averaging during
// warm-up and then frozen.
type NUTS struct {
	MaxTreeDepth int     // default 10
	TargetAccept float64 // default 0.8
}

func (NUTS) Name() string { return "nuts" }

type phasePoint struct {
	q, p, grad []float64
	logp       float64
}

func (pt phasePoint) energy() float64 {
	return -pt.logp + 0.5*floats.Dot(pt.p, pt.p)
}

type subtree struct {
	left, right phasePoint
	proposal    phasePoint
	logWeight   float64
	sumAccept   float64
	steps       int
	turning     bool
	diverging   bool
}

type nutsRun struct {
	target Target
	rng    *rand.Rand
	eps    float64
	h0     float64
	dim    int
}

// Sample implements Sampler.
func (n NUTS) Sample(ctx context.Context, target Target, init []float64, opts Options, src rand.Source) (*Chain, error) {
	dim := target.Dim()
	if len(init) != dim {
		return nil, fmt.Errorf("%w: initial point has %d values, target has %d dimensions", ErrSamplingFailed, len(init), dim)
	}
	if opts.NumSamples <= 0 {
		return nil, fmt.Errorf("%w: NumSamples must be > 0", ErrSamplingFailed)
	}
	maxDepth := n.MaxTreeDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}
	delta := n.TargetAccept
	if !(delta > 0 && delta < 1) {
		delta = 0.8
	}

	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	run := &nutsRun{target: target, rng: rand.New(src), dim: dim}

	cur := phasePoint{q: append([]float64(nil), init...), grad: make([]float64, dim)}
	lp, err := gradient(target, cur.q, cur.grad)
	if err != nil {
		return nil, fmt.Errorf("%w: initial point: %w", ErrSamplingFailed, err)
	}
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return nil, fmt.Errorf("%w: initial point has log density %v", ErrSamplingFailed, lp)
	}
	cur.logp = lp

	eps, err := run.initialStepSize(cur)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSamplingFailed, err)
	}
	da := newDualAveraging(eps, delta)
	run.eps = eps

	chain := &Chain{
		Draws:    mat.NewDense(opts.NumSamples, dim, nil),
		LogProbs: make([]float64, opts.NumSamples),
	}
	var acceptSum float64

	total := opts.NumWarmup + opts.NumSamples
	for it := 0; it < total; it++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSamplingFailed, err)
		}

		next, accept, diverged, err := run.transition(cur, maxDepth)
		if err != nil {
			return nil, fmt.Errorf("%w: iteration %d: %w", ErrSamplingFailed, it, err)
		}
		cur = next

		if it < opts.NumWarmup {
			run.eps = da.update(accept)
			if it == opts.NumWarmup-1 {
				run.eps = da.final()
			}
			continue
		}

		k := it - opts.NumWarmup
		chain.Draws.SetRow(k, cur.q)
		chain.LogProbs[k] = cur.logp
		acceptSum += accept
		if diverged {
			chain.Divergences++
		}
	}

	chain.AcceptRate = acceptSum / float64(opts.NumSamples)
	chain.StepSize = run.eps
	return chain, nil
}

// transition performs one NUTS iteration from cur.
func (r *nutsRun) transition(cur phasePoint, maxDepth int) (phasePoint, float64, bool, error) {
	start := cur
	start.p = make([]float64, r.dim)
	for i := range start.p {
		start.p[i] = r.rng.NormFloat64()
	}
	r.h0 = start.energy()

	tree := subtree{left: start, right: start, proposal: start}
	for depth := 0; depth < maxDepth; depth++ {
		forward := r.rng.Float64() < 0.5
		var sub subtree
		var err error
		if forward {
			sub, err = r.build(tree.right, 1, depth)
		} else {
			sub, err = r.build(tree.left, -1, depth)
		}
		if err != nil {
			return cur, 0, false, err
		}
		tree.sumAccept += sub.sumAccept
		tree.steps += sub.steps

		if sub.diverging {
			tree.diverging = true
			break
		}
		if sub.turning {
			break
		}

		// biased progressive sampling favours the newer subtree
		if math.Log(r.rng.Float64()) < sub.logWeight-tree.logWeight {
			tree.proposal = sub.proposal
		}
		tree.logWeight = logAddExp(tree.logWeight, sub.logWeight)
		if forward {
			tree.right = sub.right
		} else {
			tree.left = sub.left
		}

		if uturn(tree.left, tree.right) {
			break
		}
	}

	accept := 0.0
	if tree.steps > 0 {
		accept = tree.sumAccept / float64(tree.steps)
	}
	next := tree.proposal
	next.p = nil
	return next, accept, tree.diverging, nil
}

// build grows a balanced subtree of 2^depth leapfrog steps from start.
func (r *nutsRun) build(start phasePoint, dir float64, depth int) (subtree, error) {
	if depth == 0 {
		next, err := r.leapfrog(start, dir*r.eps)
		if err != nil {
			return subtree{}, err
		}
		h := next.energy()
		if math.IsNaN(h) {
			h = math.Inf(1)
		}
		dH := h - r.h0
		return subtree{
			left:      next,
			right:     next,
			proposal:  next,
			logWeight: -dH,
			sumAccept: math.Min(1, math.Exp(-dH)),
			steps:     1,
			diverging: dH > maxEnergyError,
		}, nil
	}

	first, err := r.build(start, dir, depth-1)
	if err != nil || first.diverging || first.turning {
		return first, err
	}

	from := first.right
	if dir < 0 {
		from = first.left
	}
	second, err := r.build(from, dir, depth-1)
	if err != nil {
		return second, err
	}

	out := subtree{
		left:      first.left,
		right:     second.right,
		proposal:  first.proposal,
		logWeight: logAddExp(first.logWeight, second.logWeight),
		sumAccept: first.sumAccept + second.sumAccept,
		steps:     first.steps + second.steps,
		turning:   second.turning,
		diverging: second.diverging,
	}
	if dir < 0 {
		out.left, out.right = second.left, first.right
	}
	if out.diverging || out.turning {
		return out, nil
	}

	if math.Log(r.rng.Float64()) < second.logWeight-out.logWeight {
		out.proposal = second.proposal
	}
	out.turning = uturn(out.left, out.right)
	return out, nil
}

func (r *nutsRun) leapfrog(pt phasePoint, eps float64) (phasePoint, error) {
	next := phasePoint{
		q:    make([]float64, r.dim),
		p:    make([]float64, r.dim),
		grad: make([]float64, r.dim),
	}
	floats.AddScaledTo(next.p, pt.p, eps/2, pt.grad)
	floats.AddScaledTo(next.q, pt.q, eps, next.p)

	if !allFinite(next.q) || !allFinite(next.p) {
		next.logp = math.Inf(-1)
		return next, nil
	}

	lp, err := gradient(r.target, next.q, next.grad)
	if err != nil {
		return next, err
	}
	if math.IsNaN(lp) || !allFinite(next.grad) {
		lp = math.Inf(-1)
	}
	next.logp = lp
	if !math.IsInf(lp, -1) {
		floats.AddScaled(next.p, eps/2, next.grad)
	}
	return next, nil
}

// initialStepSize doubles or halves a unit step until a single leapfrog
// step's acceptance probability crosses 0.5.
func (r *nutsRun) initialStepSize(cur phasePoint) (float64, error) {
	eps := 1.0
	p := make([]float64, r.dim)
	for i := range p {
		p[i] = r.rng.NormFloat64()
	}
	start := cur
	start.p = p
	h0 := start.energy()

	logAccept := func(eps float64) (float64, error) {
		next, err := r.leapfrog(start, eps)
		if err != nil {
			return 0, err
		}
		d := h0 - next.energy()
		if math.IsNaN(d) {
			return math.Inf(-1), nil
		}
		return d, nil
	}

	la, err := logAccept(eps)
	if err != nil {
		return 0, err
	}
	dir := 1.0
	if la < math.Log(0.5) {
		dir = -1
	}
	for range 100 {
		if dir > 0 && la < math.Log(0.5) || dir < 0 && la > math.Log(0.5) {
			break
		}
		next := eps * math.Pow(2, dir)
		if next < 1e-10 || next > 1e3 {
			break
		}
		eps = next
		if la, err = logAccept(eps); err != nil {
			return 0, err
		}
	}
	return eps, nil
}

func uturn(left, right phasePoint) bool {
	dq := make([]float64, len(left.q))
	floats.SubTo(dq, right.q, left.q)
	return floats.Dot(dq, left.p) < 0 || floats.Dot(dq, right.p) < 0
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	m := math.Max(a, b)
	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}

// dualAveraging tunes the log step size toward a target acceptance rate.
type dualAveraging struct {
	mu, target       float64
	hBar, logEpsBar  float64
	gamma, t0, kappa float64
	m                int
}

func newDualAveraging(eps, target float64) *dualAveraging {
	return &dualAveraging{
		mu:     math.Log(10 * eps),
		target: target,
		gamma:  0.05,
		t0:     10,
		kappa:  0.75,
	}
}

func (d *dualAveraging) update(accept float64) float64 {
	d.m++
	m := float64(d.m)
	w := 1 / (m + d.t0)
	d.hBar = (1-w)*d.hBar + w*(d.target-accept)
	logEps := d.mu - math.Sqrt(m)/d.gamma*d.hBar
	eta := math.Pow(m, -d.kappa)
	d.logEpsBar = eta*logEps + (1-eta)*d.logEpsBar
	return math.Exp(logEps)
}

func (d *dualAveraging) final() float64 {
	return math.Exp(d.logEpsBar)
}
