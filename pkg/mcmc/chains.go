package mcmc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ChainSeeds derives one independent PCG seed pair per chain from a master seed.
func ChainSeeds(seed uint64, chains int) [][2]uint64 {
	master := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seeds := make([][2]uint64, chains)
	for i := range seeds {
		seeds[i] = [2]uint64{master.Uint64(), master.Uint64()}
	}
	return seeds
}

// RunChains runs one chain per initial point in parallel and returns them in
// the order of inits. The first chain to fail cancels the others and its
// error is returned without any chains.
func RunChains(ctx context.Context, s Sampler, target Target, inits [][]float64, opts Options, seed uint64) ([]*Chain, error) {
	if len(inits) == 0 {
		return nil, fmt.Errorf("%w: no initial points", ErrSamplingFailed)
	}

	seeds := ChainSeeds(seed, len(inits))
	chains := make([]*Chain, len(inits))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for c := range inits {
		g.Go(func() error {
			src := rand.NewPCG(seeds[c][0], seeds[c][1])
			chain, err := s.Sample(ctx, target, inits[c], opts, src)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}
			chains[c] = chain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chains, nil
}

// Concat stacks the draws of all chains in chain order.
func Concat(chains []*Chain) *mat.Dense {
	var out *mat.Dense
	for _, c := range chains {
		if out == nil {
			out = mat.DenseCopyOf(c.Draws)
			continue
		}
		var stacked mat.Dense
		stacked.Stack(out, c.Draws)
		out = &stacked
	}
	return out
}
