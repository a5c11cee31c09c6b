package engine

import "fmt"

// Force is one term of a System's energy function. Engines interpret the
// force kinds they know and may ignore opaque collaborator forces.
type Force interface {
	Name() string
}

// Barostat is a force that couples the box volume to a target pressure.
// Its presence puts a system in the NPT ensemble.
type Barostat interface {
	Force
	TargetPressure() float64
}

type NonbondedForce struct {
	Method               NonbondedMethod
	Cutoff               float64
	SwitchingDistance    float64
	UseSwitchingFunction bool
	DispersionCorrection bool
	EwaldErrorTolerance  float64
	Sigma                []float64
	Epsilon              []float64
}

type HarmonicBondForce struct {
	Bonds []BondParams
}

type BondParams struct {
	I, J   int
	Length float64
	K      float64
}

type CMMotionRemover struct {
	Frequency int
}

type MonteCarloBarostat struct {
	Pressure    float64
	Temperature float64
	Frequency   int
}

func (*NonbondedForce) Name() string     { return "NonbondedForce" }
func (*HarmonicBondForce) Name() string  { return "HarmonicBondForce" }
func (*CMMotionRemover) Name() string    { return "CMMotionRemover" }
func (*MonteCarloBarostat) Name() string { return "MonteCarloBarostat" }

func (b *MonteCarloBarostat) TargetPressure() float64 { return b.Pressure }

// System is a constructed energy function over a fixed set of particles.
type System struct {
	Masses      []float64
	Forces      []Force
	Constraints Constraint
	RigidWater  bool
	Box         *Box
}

func (s *System) NumParticles() int { return len(s.Masses) }
func (s *System) NumForces() int    { return len(s.Forces) }

// AddForce appends f and returns its index.
func (s *System) AddForce(f Force) int {
	s.Forces = append(s.Forces, f)
	return len(s.Forces) - 1
}

func (s *System) Force(i int) Force {
	return s.Forces[i]
}

func (s *System) RemoveForce(i int) error {
	if i < 0 || i >= len(s.Forces) {
		return fmt.Errorf("engine: force index %d out of range [0,%d)", i, len(s.Forces))
	}
	s.Forces = append(s.Forces[:i], s.Forces[i+1:]...)
	return nil
}

// FindBarostat returns the index of the first barostat force, or -1.
func (s *System) FindBarostat() int {
	for i, f := range s.Forces {
		if _, ok := f.(Barostat); ok {
			return i
		}
	}
	return -1
}

// Periodic reports whether the nonbonded term, if any, uses periodic boundaries.
func (s *System) Periodic() bool {
	for _, f := range s.Forces {
		if nb, ok := f.(*NonbondedForce); ok {
			return nb.Method.Periodic()
		}
	}
	return s.Box != nil
}
