package inference

import (
	"math/rand/v2"

	"github.com/epicast/epicast/pkg/epidemic"
)

// Simulate runs the epidemic simulator and attributes any failure to the
// simulator component.
func Simulate(p epidemic.Params, src rand.Source) (*epidemic.Trajectory, error) {
	traj, err := epidemic.Simulate(p, src)
	if err != nil {
		return nil, fail(ComponentSimulator, err)
	}
	return traj, nil
}
