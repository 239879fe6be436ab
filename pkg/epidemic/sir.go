// Package epidemic implements a stochastic Susceptible-Infected-Recovered simulator.
//
// Each step of the simulation draws the number of new infections and recoveries
// from independent Poisson distributions:
//
//	infection ~ Poisson(dt * beta * S * I / N)
//	recover   ~ Poisson(dt * gamma * I)
//
// where gamma = 1/infectiousPeriod and beta = repo * gamma. Compartments are then
// clipped into [0, N] independently. Because the draws are not jointly constrained,
// S + I + R is bounded by 3N but not conserved; this is a modeling approximation and
// never an error.
//
// All randomness comes from the rand.Source passed to Simulate, so runs are
// reproducible and independent runs can proceed in parallel.
package epidemic

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidParams is returned when simulation parameters are out of range.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params configures one simulation run.
type Params struct {
	N                int     // total population
	I0               int     // initially infected
	Repo             float64 // reproduction-number-like transmission parameter
	InfectiousPeriod float64 // mean infectious period, gamma = 1/InfectiousPeriod
	Start            float64
	End              float64
	Dt               float64 // step size, e.g. 1/7 for daily steps on a weekly scale
}

// State is the epidemic state after a step. Values are integer counts.
type State struct {
	S   float64
	I   float64
	R   float64
	Cum float64 // cumulative incidence, including the initial infections
}

// Trajectory is the result of one simulation run.
type Trajectory struct {
	// Times is the simulation grid.
	Times []float64
	// Incidence holds the new infections of each step (first difference of Cum).
	Incidence []float64
	// States has one entry per step plus the initial state.
	States []State
}

// Validate checks that the parameters describe a runnable simulation.
func (p Params) Validate() error {
	if p.N <= 0 {
		return fmt.Errorf("%w: population must be > 0, got %d", ErrInvalidParams, p.N)
	}
	if p.I0 < 0 || p.I0 > p.N {
		return fmt.Errorf("%w: initial infected must be in [0, %d], got %d", ErrInvalidParams, p.N, p.I0)
	}
	if p.Repo < 0 || math.IsNaN(p.Repo) || math.IsInf(p.Repo, 0) {
		return fmt.Errorf("%w: repo must be finite and >= 0, got %v", ErrInvalidParams, p.Repo)
	}
	if !(p.InfectiousPeriod > 0) || math.IsInf(p.InfectiousPeriod, 0) {
		return fmt.Errorf("%w: infectious period must be > 0, got %v", ErrInvalidParams, p.InfectiousPeriod)
	}
	if !(p.Dt > 0) {
		return fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidParams, p.Dt)
	}
	if !(p.End > p.Start) {
		return fmt.Errorf("%w: end (%v) must be after start (%v)", ErrInvalidParams, p.End, p.Start)
	}
	if n := p.Steps(); n < 2 {
		return fmt.Errorf("%w: grid has %d points, need at least 2", ErrInvalidParams, n)
	}
	return nil
}

// Steps returns the number of grid points, round((End-Start)/Dt).
func (p Params) Steps() int {
	return int(math.Round((p.End - p.Start) / p.Dt))
}

// Grid returns Steps() evenly spaced points spanning [Start, End].
func (p Params) Grid() []float64 {
	return floats.Span(make([]float64, p.Steps()), p.Start, p.End)
}

// Simulate runs the stochastic SIR model once. A nil src falls back to gonum's
// global source, which makes the run non-reproducible.
func Simulate(p Params, src rand.Source) (*Trajectory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	times := p.Grid()
	N := float64(p.N)
	I0 := float64(p.I0)
	gamma := 1 / p.InfectiousPeriod
	beta := p.Repo * gamma

	states := make([]State, 0, len(times)+1)
	cur := State{S: N - I0, I: I0, R: 0, Cum: I0}
	states = append(states, cur)

	for range times {
		infection := poisson(p.Dt*(beta*cur.S*cur.I/N), src)
		recovery := poisson(p.Dt*(gamma*cur.I), src)

		cur = State{
			S:   clip(cur.S-infection, 0, N),
			I:   clip(cur.I+infection-recovery, 0, N),
			R:   clip(cur.R+recovery, 0, N),
			Cum: cur.Cum + infection,
		}
		states = append(states, cur)
	}

	cum := make([]float64, len(states))
	for k, s := range states {
		cum[k] = s.Cum
	}
	incidence := make([]float64, len(times))
	floats.SubTo(incidence, cum[1:], cum[:len(cum)-1])

	return &Trajectory{
		Times:     times,
		Incidence: incidence,
		States:    states,
	}, nil
}

func poisson(lambda float64, src rand.Source) float64 {
	if !(lambda > 0) {
		return 0
	}
	return distuv.Poisson{Lambda: lambda, Src: src}.Rand()
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
