// Package inference fits the GP-residual forecast model by MCMC and
// regenerates the full-length forecast for every posterior draw.
//
// Fit validates the request, samples the posterior over an unconstrained
// parameterization (log for positive sites, logit for the amplitude), and
// then runs Predictive. Both phases condition through gp.Config.Condition.
// Any failure discards the whole run; the returned error is an *Error naming
// the failing component.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/epicast/epicast/pkg/gp"
	"github.com/epicast/epicast/pkg/mcmc"
)

// Options configures a fit. Zero NumSamples, NumChains and MaxTreeDepth take
// the values of DefaultOptions; start from DefaultOptions to get its warm-up.
type Options struct {
	NumWarmup    int // 0 skips warm-up
	NumSamples   int
	NumChains    int
	Seed         uint64
	Timeout      time.Duration // overall budget, 0 means none
	MaxTreeDepth int
	Sampler      mcmc.Sampler // nil selects NUTS with MaxTreeDepth
	Logger       *slog.Logger
}

// DefaultOptions returns 5000 warm-up and 5000 retained NUTS draws from one
// chain with a maximum tree depth of 3.
func DefaultOptions() Options {
	return Options{
		NumWarmup:    5000,
		NumSamples:   5000,
		NumChains:    1,
		Seed:         1,
		MaxTreeDepth: 3,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NumSamples == 0 {
		o.NumSamples = def.NumSamples
	}
	if o.NumChains == 0 {
		o.NumChains = def.NumChains
	}
	if o.MaxTreeDepth == 0 {
		o.MaxTreeDepth = def.MaxTreeDepth
	}
	if o.Sampler == nil {
		o.Sampler = mcmc.NUTS{MaxTreeDepth: o.MaxTreeDepth}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate() error {
	if o.NumWarmup < 0 {
		return fmt.Errorf("%w: warm-up draws must be >= 0, got %d", ErrInvalidConfig, o.NumWarmup)
	}
	if o.NumSamples <= 0 {
		return fmt.Errorf("%w: samples must be > 0, got %d", ErrInvalidConfig, o.NumSamples)
	}
	if o.NumChains <= 0 {
		return fmt.Errorf("%w: chains must be > 0, got %d", ErrInvalidConfig, o.NumChains)
	}
	if o.MaxTreeDepth <= 0 {
		return fmt.Errorf("%w: max tree depth must be > 0, got %d", ErrInvalidConfig, o.MaxTreeDepth)
	}
	return nil
}

// Request is the data of one fit.
type Request struct {
	Y                []float64  // incidence, NaN for unobserved
	X                *mat.Dense // features, one row per element of Y
	Times            []float64  // optional, defaults to 0..len(Y)-1
	N                int        // population
	InfectiousPeriod float64
}

func (r Request) validate() error {
	if r.N <= 0 {
		return fmt.Errorf("%w: population must be > 0, got %d", ErrInvalidConfig, r.N)
	}
	if !(r.InfectiousPeriod > 0) || math.IsInf(r.InfectiousPeriod, 0) {
		return fmt.Errorf("%w: infectious period must be > 0, got %v", ErrInvalidConfig, r.InfectiousPeriod)
	}
	if r.Times != nil && len(r.Times) != len(r.Y) {
		return fmt.Errorf("%w: %d times for %d values", ErrInvalidConfig, len(r.Times), len(r.Y))
	}
	return nil
}

// Diagnostics summarizes the sampler run.
type Diagnostics struct {
	Sampler     string
	NumChains   int
	NumDraws    int
	AcceptRate  float64 // mean over chains
	StepSize    float64 // mean over chains
	Divergences int
	Duration    time.Duration
}

// Result is the output of a fit.
type Result struct {
	Times       []float64
	Nobs        int
	Forecasts   *mat.Dense // draws × len(Y), posterior-predictive ensemble
	Samples     Samples
	Diagnostics Diagnostics
}

// Fit samples the posterior of the forecast model for req and returns the
// posterior-predictive ensemble. Configuration errors are reported before
// any sampling starts.
func Fit(ctx context.Context, req Request, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, fail(ComponentFit, err)
	}
	if err := req.validate(); err != nil {
		return nil, fail(ComponentFit, err)
	}
	cfg, err := gp.NewConfig(req.Y, req.X)
	if err != nil {
		return nil, fail(ComponentFit, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	log := opts.Logger.With("component", ComponentFit, "sampler", opts.Sampler.Name())
	log.Info("starting fit",
		"nobs", cfg.Nobs,
		"horizon", cfg.Horizon(),
		"warmup", opts.NumWarmup,
		"samples", opts.NumSamples,
		"chains", opts.NumChains,
	)

	start := time.Now()
	target := newPosterior(cfg)
	inits, err := initialPoints(cfg, target.layout, opts.NumChains, opts.Seed)
	if err != nil {
		return nil, fail(ComponentFit, err)
	}

	chains, err := mcmc.RunChains(ctx, opts.Sampler, target, inits, mcmc.Options{
		NumWarmup:  opts.NumWarmup,
		NumSamples: opts.NumSamples,
	}, opts.Seed)
	if err != nil {
		return nil, fail(ComponentFit, err)
	}

	samples := samplesFrom(cfg, target.layout, mcmc.Concat(chains))
	diag := diagnose(opts.Sampler.Name(), chains)
	diag.Duration = time.Since(start)

	log.Info("sampling complete",
		"draws", diag.NumDraws,
		"accept_rate", diag.AcceptRate,
		"step_size", diag.StepSize,
		"divergences", diag.Divergences,
		"duration_ms", diag.Duration.Milliseconds(),
	)
	LogSummary(log, Summarize(samples))

	forecasts, err := Predictive(ctx, cfg, samples, rand.NewPCG(opts.Seed, predictiveStream))
	if err != nil {
		return nil, fail(ComponentFit, err)
	}

	times := req.Times
	if times == nil {
		times = make([]float64, len(req.Y))
		for i := range times {
			times[i] = float64(i)
		}
	}

	return &Result{
		Times:       times,
		Nobs:        cfg.Nobs,
		Forecasts:   forecasts,
		Samples:     samples,
		Diagnostics: diag,
	}, nil
}

// initialPoints starts every chain near unit hyperparameters, with the
// residuals at the conditional mean of the starting hyperparameters.
func initialPoints(cfg *gp.Config, l layout, chains int, seed uint64) ([][]float64, error) {
	rng := rand.New(rand.NewPCG(seed, initStream))
	inits := make([][]float64, chains)
	for c := range inits {
		u := make([]float64, l.dim())
		for i := 0; i < l.hyper(); i++ {
			u[i] = rng.Float64() - 0.5
		}
		p, _, _ := l.constrain(u)
		cond, err := cfg.Condition(p)
		if err != nil {
			return nil, fmt.Errorf("initial point for chain %d: %w", c, err)
		}
		inits[c] = l.unconstrain(p, cond.Mean)
	}
	return inits, nil
}

func diagnose(name string, chains []*mcmc.Chain) Diagnostics {
	d := Diagnostics{Sampler: name, NumChains: len(chains)}
	for _, c := range chains {
		r, _ := c.Draws.Dims()
		d.NumDraws += r
		d.AcceptRate += c.AcceptRate
		d.StepSize += c.StepSize
		d.Divergences += c.Divergences
	}
	if len(chains) > 0 {
		d.AcceptRate /= float64(len(chains))
		d.StepSize /= float64(len(chains))
	}
	return d
}

// streams separate the random sequences derived from one seed.
const (
	initStream       = 0x696e6974
	predictiveStream = 0x70726564
)
