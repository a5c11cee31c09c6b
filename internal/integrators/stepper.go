package integrators

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/mdpipe/internal/engine"
)

// BoltzmannKJ is the Boltzmann constant in kJ/mol/K.
const BoltzmannKJ = 0.0083144626

const (
	maxVariableStep = 0.004 // ps
	minVariableStep = 1e-6
)

// Particles holds flat xyz arrays in nm and nm/ps. A zero inverse mass
// pins the particle in place.
type Particles struct {
	Pos     []float64
	Vel     []float64
	InvMass []float64
}

func (p *Particles) N() int { return len(p.Pos) / 3 }

// KineticEnergy returns the kinetic energy in kJ/mol.
func (p *Particles) KineticEnergy() float64 {
	ke := 0.0
	for i, v := range p.Vel {
		im := p.InvMass[i/3]
		if im == 0 {
			continue
		}
		ke += 0.5 * v * v / im
	}
	return ke
}

// ForceFunc overwrites f with the force at pos and returns the potential
// energy.
type ForceFunc func(pos, f []float64) float64

type Stepper interface {
	// Step advances p by one step and returns the elapsed time in ps.
	Step(p *Particles, force ForceFunc) float64
	// Reset drops cached forces. Call it whenever positions or the force
	// field change outside of Step.
	Reset()
}

// New returns the stepping algorithm for spec. rng drives the stochastic
// integrators and may be nil for deterministic ones.
func New(spec engine.IntegratorSpec, rng *rand.Rand) (Stepper, error) {
	if spec.Thermostatted() && rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	kT := BoltzmannKJ * spec.Temperature

	switch spec.Kind {
	case engine.Langevin:
		if spec.StepSize <= 0 {
			return nil, fmt.Errorf("%s: step size must be positive", spec.Kind)
		}
		return &Langevin{dt: spec.StepSize, gamma: spec.Friction, kT: kT, rng: rng}, nil
	case engine.LangevinMiddle:
		if spec.StepSize <= 0 {
			return nil, fmt.Errorf("%s: step size must be positive", spec.Kind)
		}
		return &LangevinMiddle{dt: spec.StepSize, gamma: spec.Friction, kT: kT, rng: rng}, nil
	case engine.VariableLangevin:
		if spec.ErrorTolerance <= 0 {
			return nil, fmt.Errorf("%s: error tolerance must be positive", spec.Kind)
		}
		return &VariableLangevin{
			LangevinMiddle: LangevinMiddle{gamma: spec.Friction, kT: kT, rng: rng},
			tol:            spec.ErrorTolerance,
		}, nil
	case engine.VariableVerlet:
		if spec.ErrorTolerance <= 0 {
			return nil, fmt.Errorf("%s: error tolerance must be positive", spec.Kind)
		}
		return &VariableVerlet{tol: spec.ErrorTolerance}, nil
	case engine.Brownian:
		if spec.StepSize <= 0 {
			return nil, fmt.Errorf("%s: step size must be positive", spec.Kind)
		}
		if spec.Friction <= 0 {
			return nil, fmt.Errorf("%s: friction must be positive", spec.Kind)
		}
		return &Brownian{dt: spec.StepSize, gamma: spec.Friction, kT: kT, rng: rng}, nil
	}
	return nil, fmt.Errorf("unknown integrator %q", spec.Kind)
}

// forceCache keeps the force at the current positions between steps so
// each step costs one force evaluation.
type forceCache struct {
	f     []float64
	valid bool
}

func (c *forceCache) current(p *Particles, force ForceFunc) []float64 {
	if len(c.f) != len(p.Pos) {
		c.f = make([]float64, len(p.Pos))
		c.valid = false
	}
	if !c.valid {
		force(p.Pos, c.f)
		c.valid = true
	}
	return c.f
}

func (c *forceCache) refresh(p *Particles, force ForceFunc) []float64 {
	force(p.Pos, c.f)
	c.valid = true
	return c.f
}

func (c *forceCache) Reset() { c.valid = false }

// adaptiveStep picks dt so that the largest acceleration moves a particle
// by about tol nm within one step.
func adaptiveStep(f, invMass []float64, tol float64) float64 {
	maxAcc := 0.0
	for i := 0; i+2 < len(f); i += 3 {
		im := invMass[i/3]
		if im == 0 {
			continue
		}
		a := im * math.Sqrt(f[i]*f[i]+f[i+1]*f[i+1]+f[i+2]*f[i+2])
		if a > maxAcc {
			maxAcc = a
		}
	}
	if maxAcc == 0 {
		return maxVariableStep
	}
	dt := math.Sqrt(2 * tol / maxAcc)
	return math.Max(minVariableStep, math.Min(maxVariableStep, dt))
}
