package adapters

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/epicast/epicast/pkg/epidemic"
	"github.com/epicast/epicast/pkg/inference"
	"github.com/epicast/epicast/pkg/series"
)

// SimulateAdapter produces a synthetic outbreak: one stochastic SIR run,
// summed into weeks, with every week from ObservedWeeks on masked.
type SimulateAdapter struct {
	Params epidemic.Params

	// Weeks is the number of weekly values. The simulation grid must split
	// evenly into it.
	Weeks int

	// ObservedWeeks is the length of the observed prefix. Values <= 0 or
	// >= Weeks leave the whole series observed.
	ObservedWeeks int

	// Seed drives the simulation. Equal seeds give equal series.
	Seed uint64
}

func (s *SimulateAdapter) Name() string { return "simulate" }

// Collect implements Adapter.
func (s *SimulateAdapter) Collect(ctx context.Context) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Weeks <= 0 {
		return nil, fmt.Errorf("simulate adapter: weeks must be > 0, got %d", s.Weeks)
	}

	traj, err := inference.Simulate(s.Params, rand.NewPCG(s.Seed, s.Seed))
	if err != nil {
		return nil, fmt.Errorf("simulate adapter: %w", err)
	}
	weekly, err := epidemic.Aggregate(traj.Incidence, s.Weeks)
	if err != nil {
		return nil, fmt.Errorf("simulate adapter: %w", err)
	}
	if s.ObservedWeeks > 0 && s.ObservedWeeks < s.Weeks {
		weekly = series.Mask(weekly, s.ObservedWeeks)
	}
	return newSeries(nil, weekly)
}
