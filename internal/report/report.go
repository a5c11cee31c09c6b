// Package report writes simulation output: trajectories, state logs,
// checkpoints and structure snapshots.
package report

import (
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/integrators"
)

// Reporter receives the simulation state every Interval steps.
type Reporter interface {
	Kind() string
	Interval() int
	Report(st engine.State) error
	Close() error
}

const (
	KindTrajectory = "trajectory"
	KindStateData  = "state"
	KindCheckpoint = "checkpoint"
)

// Temperature converts kinetic energy (kJ/mol) to an instantaneous
// temperature for dof degrees of freedom.
func Temperature(kinetic float64, dof int) float64 {
	if dof <= 0 {
		return 0
	}
	return 2 * kinetic / (float64(dof) * integrators.BoltzmannKJ)
}

// DegreesOfFreedom counts unconstrained degrees of freedom for n moving
// particles, less three when center-of-mass motion is removed.
func DegreesOfFreedom(sys *engine.System) int {
	dof := 0
	for _, m := range sys.Masses {
		if m > 0 {
			dof += 3
		}
	}
	for _, f := range sys.Forces {
		if _, ok := f.(*engine.CMMotionRemover); ok {
			dof -= 3
			break
		}
	}
	if dof < 0 {
		return 0
	}
	return dof
}
