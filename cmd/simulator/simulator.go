package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/epicast/epicast/cmd/simulator/config"
	"github.com/epicast/epicast/pkg/epidemic"
	"github.com/epicast/epicast/pkg/inference"
)

// params converts the configuration into a simulation on a weekly time scale
// with DaysPerWeek steps per week.
func params(cfg *config.Config) epidemic.Params {
	return epidemic.Params{
		N:                cfg.Population,
		I0:               cfg.I0,
		Repo:             cfg.Repo,
		InfectiousPeriod: cfg.InfectiousPeriod,
		Start:            0,
		End:              float64(cfg.Weeks),
		Dt:               1 / float64(cfg.DaysPerWeek),
	}
}

// simulate runs one outbreak and returns it with its weekly incidence. The
// seeding matches the simulate source, so equal seeds give equal series.
func simulate(cfg *config.Config) (*epidemic.Trajectory, []float64, error) {
	traj, err := inference.Simulate(params(cfg), rand.NewPCG(cfg.Seed, cfg.Seed))
	if err != nil {
		return nil, nil, err
	}
	weekly, err := epidemic.Aggregate(traj.Incidence, cfg.Weeks)
	if err != nil {
		return nil, nil, err
	}
	return traj, weekly, nil
}

// writeWeekly writes a week,value CSV. With observed > 0, later weeks are
// written with an empty value so readers treat them as unobserved.
func writeWeekly(w io.Writer, weekly []float64, observed int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"week", "value"}); err != nil {
		return err
	}
	for i, v := range weekly {
		value := formatFloat(v)
		if observed > 0 && i >= observed {
			value = ""
		}
		if err := cw.Write([]string{strconv.Itoa(i), value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeDaily writes the state after every simulation step.
func writeDaily(w io.Writer, traj *epidemic.Trajectory) error {
	if len(traj.States) != len(traj.Times)+1 {
		return fmt.Errorf("trajectory has %d states for %d steps", len(traj.States), len(traj.Times))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "incidence", "s", "i", "r", "cumulative"}); err != nil {
		return err
	}
	for k, t := range traj.Times {
		st := traj.States[k+1]
		row := []string{
			formatFloat(t),
			formatFloat(traj.Incidence[k]),
			formatFloat(st.S),
			formatFloat(st.I),
			formatFloat(st.R),
			formatFloat(st.Cum),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
