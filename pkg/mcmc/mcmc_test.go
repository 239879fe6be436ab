package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// gaussian is an independent normal target with analytic gradient.
type gaussian struct {
	mean, sd []float64
}

func (g gaussian) Dim() int { return len(g.mean) }

func (g gaussian) LogProb(x []float64) (float64, error) {
	var lp float64
	for i := range x {
		z := (x[i] - g.mean[i]) / g.sd[i]
		lp -= 0.5 * z * z
	}
	return lp, nil
}

func (g gaussian) LogProbGrad(x, grad []float64) (float64, error) {
	for i := range x {
		grad[i] = -(x[i] - g.mean[i]) / (g.sd[i] * g.sd[i])
	}
	return g.LogProb(x)
}

// numeric hides the analytic gradient so NUTS falls back to finite differences.
type numeric struct{ g gaussian }

func (n numeric) Dim() int                             { return n.g.Dim() }
func (n numeric) LogProb(x []float64) (float64, error) { return n.g.LogProb(x) }

var errBoom = errors.New("boom")

// failing errors after a fixed number of evaluations.
type failing struct {
	g     gaussian
	after int64
	calls atomic.Int64
}

func (f *failing) Dim() int { return f.g.Dim() }

func (f *failing) LogProb(x []float64) (float64, error) {
	if f.calls.Add(1) > f.after {
		return 0, errBoom
	}
	return f.g.LogProb(x)
}

var target2d = gaussian{mean: []float64{1, -2}, sd: []float64{1, 0.5}}

func checkMoments(t *testing.T, draws *mat.Dense, g gaussian, tol float64) {
	t.Helper()
	_, dim := draws.Dims()
	for j := 0; j < dim; j++ {
		col := mat.Col(nil, j, draws)
		mean, sd := stat.MeanStdDev(col, nil)
		assert.InDelta(t, g.mean[j], mean, tol, "mean of dimension %d", j)
		assert.InDelta(t, g.sd[j], sd, tol, "sd of dimension %d", j)
	}
}

func TestNUTS_Gaussian(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{"analytic gradient", target2d},
		{"finite differences", numeric{target2d}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NUTS{MaxTreeDepth: 5}
			chain, err := s.Sample(context.Background(), tt.target, []float64{0, 0},
				Options{NumWarmup: 500, NumSamples: 3000}, rand.NewPCG(1, 2))
			require.NoError(t, err)

			r, c := chain.Draws.Dims()
			assert.Equal(t, 3000, r)
			assert.Equal(t, 2, c)
			assert.Greater(t, chain.StepSize, 0.0)
			assert.Greater(t, chain.AcceptRate, 0.5)
			assert.Zero(t, chain.Divergences)
			checkMoments(t, chain.Draws, target2d, 0.2)
		})
	}
}

func TestMetropolisHastings_Gaussian(t *testing.T) {
	s := MetropolisHastings{Scale: 0.8}
	chain, err := s.Sample(context.Background(), target2d, []float64{0, 0},
		Options{NumWarmup: 2000, NumSamples: 40000}, rand.NewPCG(3, 4))
	require.NoError(t, err)

	r, _ := chain.Draws.Dims()
	assert.Equal(t, 40000, r)
	assert.Greater(t, chain.AcceptRate, 0.1)
	assert.Less(t, chain.AcceptRate, 0.9)
	checkMoments(t, chain.Draws, target2d, 0.25)
}

func TestSamplers_Reproducible(t *testing.T) {
	for _, s := range []Sampler{NUTS{MaxTreeDepth: 3}, MetropolisHastings{}} {
		t.Run(s.Name(), func(t *testing.T) {
			opts := Options{NumWarmup: 50, NumSamples: 100}
			a, err := s.Sample(context.Background(), target2d, []float64{0, 0}, opts, rand.NewPCG(9, 9))
			require.NoError(t, err)
			b, err := s.Sample(context.Background(), target2d, []float64{0, 0}, opts, rand.NewPCG(9, 9))
			require.NoError(t, err)
			assert.True(t, mat.Equal(a.Draws, b.Draws))
		})
	}
}

func TestSamplers_TargetErrorAborts(t *testing.T) {
	for _, s := range []Sampler{NUTS{}, MetropolisHastings{}} {
		t.Run(s.Name(), func(t *testing.T) {
			target := &failing{g: target2d, after: 40}
			chain, err := s.Sample(context.Background(), target, []float64{0, 0},
				Options{NumWarmup: 100, NumSamples: 100}, rand.NewPCG(1, 1))
			assert.Nil(t, chain)
			assert.ErrorIs(t, err, ErrSamplingFailed)
			assert.ErrorIs(t, err, errBoom)
		})
	}
}

func TestSamplers_InvalidInit(t *testing.T) {
	for _, s := range []Sampler{NUTS{}, MetropolisHastings{}} {
		_, err := s.Sample(context.Background(), target2d, []float64{0}, Options{NumSamples: 10}, nil)
		assert.ErrorIs(t, err, ErrSamplingFailed, s.Name())
	}
}

func TestNUTS_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NUTS{}.Sample(ctx, target2d, []float64{0, 0}, Options{NumSamples: 10}, rand.NewPCG(1, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunChains(t *testing.T) {
	inits := [][]float64{{0, 0}, {1, 1}, {-1, 0.5}}
	opts := Options{NumWarmup: 100, NumSamples: 200}

	a, err := RunChains(context.Background(), NUTS{MaxTreeDepth: 4}, target2d, inits, opts, 42)
	require.NoError(t, err)
	require.Len(t, a, 3)

	b, err := RunChains(context.Background(), NUTS{MaxTreeDepth: 4}, target2d, inits, opts, 42)
	require.NoError(t, err)
	for i := range a {
		assert.True(t, mat.Equal(a[i].Draws, b[i].Draws), "chain %d not reproducible", i)
	}
	assert.False(t, mat.Equal(a[0].Draws, a[1].Draws))

	all := Concat(a)
	r, c := all.Dims()
	assert.Equal(t, 600, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, a[1].Draws.RawRowView(0), all.RawRowView(200))
}

func TestRunChains_FailureDiscardsRun(t *testing.T) {
	target := &failing{g: target2d, after: 500}
	chains, err := RunChains(context.Background(), MetropolisHastings{}, target,
		[][]float64{{0, 0}, {0, 0}}, Options{NumWarmup: 1000, NumSamples: 1000}, 1)

	assert.Nil(t, chains)
	assert.ErrorIs(t, err, ErrSamplingFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "chain ")
}

// blockingSampler fails chains started at x[0] == 1 and holds the others
// until their context is cancelled.
type blockingSampler struct{}

func (blockingSampler) Name() string { return "blocking" }

func (blockingSampler) Sample(ctx context.Context, _ Target, init []float64, _ Options, _ rand.Source) (*Chain, error) {
	if init[0] == 1 {
		return nil, errBoom
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunChains_ReportsFailingChain(t *testing.T) {
	inits := [][]float64{{0, 0}, {1, 0}, {0, 0}}
	chains, err := RunChains(context.Background(), blockingSampler{}, target2d, inits, Options{NumSamples: 1}, 1)

	assert.Nil(t, chains)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "chain 1")
}

func TestChainSeeds(t *testing.T) {
	a := ChainSeeds(7, 4)
	b := ChainSeeds(7, 4)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
}

func TestLogAddExp(t *testing.T) {
	assert.InDelta(t, math.Log(3), logAddExp(math.Log(1), math.Log(2)), 1e-12)
	assert.Equal(t, 2.0, logAddExp(math.Inf(-1), 2))
}
