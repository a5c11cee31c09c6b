package engine

import "io"

// Engine is a molecular-dynamics backend.
type Engine interface {
	Name() string

	// Platforms lists the platform names the engine knows about, whether or
	// not they can be instantiated on this host.
	Platforms() []string
	Platform(name string) (Platform, error)
	DefaultPlatform() Platform

	LoadPDB(path string) (*Structure, error)
	LoadForceField(files []string) (ForceField, error)
	LoadAmber(prmtop, coords string) (PrebuiltTopology, *Structure, error)
	LoadGromacs(top, gro string, includeDirs []string) (PrebuiltTopology, *Structure, error)
	LoadCharmm(psf string, params []string, coords string) (CharmmTopology, *Structure, error)

	NewIntegrator(spec IntegratorSpec) (Integrator, error)
	NewContext(top *Topology, sys *System, integ Integrator, platform Platform, props map[string]string, initial *Structure) (Context, error)

	WritePDB(w io.Writer, top *Topology, positions []Vec3, box *Box) error
}

// ForceField builds systems from a topology it does not own.
type ForceField interface {
	CreateSystem(top *Topology, args Args) (*System, error)
}

// PrebuiltTopology is a parameterized topology file (AMBER prmtop, GROMACS top).
type PrebuiltTopology interface {
	Topology() *Topology
	CreateSystem(args Args) (*System, error)
}

// ParameterSet is a bound set of CHARMM parameter files.
type ParameterSet struct {
	Files []string
}

// CharmmTopology is a PSF that needs a parameter set to build a system.
type CharmmTopology interface {
	Topology() *Topology
	Params() *ParameterSet
	CreateSystemWithParams(params *ParameterSet, args Args) (*System, error)
}

// ArgumentChecker is implemented by models that can report ahead of time
// whether they consume a construction argument.
type ArgumentChecker interface {
	AcceptsArgument(name string) bool
}

// Solvator is implemented by engines that can surround a structure with
// solvent and ions.
type Solvator interface {
	AddSolvent(st *Structure, ff ForceField, opts SolventOptions) (*Structure, error)
}

type SolventOptions struct {
	PaddingNm     float64
	IonicStrength float64
	PositiveIon   string
	NegativeIon   string
	Neutralize    bool
}

type Platform interface {
	Name() string
	// Speed is a relative performance estimate used to order platforms.
	Speed() float64
}

// State is a snapshot of a context.
type State struct {
	Step       int64
	Time       float64
	Positions  []Vec3
	Velocities []Vec3
	Box        *Box
	Potential  float64
	Kinetic    float64
}

// Tolerance is a minimizer convergence criterion. PerLength selects an RMS
// force criterion in kJ/mol/nm; otherwise Value is an energy change in kJ/mol.
type Tolerance struct {
	Value     float64
	PerLength bool
}

// Context binds a system, integrator and platform to mutable coordinates.
type Context interface {
	Platform() Platform
	State() (State, error)
	Step(n int) error
	Minimize(tol Tolerance, maxIterations int) error
	// Reinitialize rebuilds internal state after the system's force set
	// changed, keeping coordinates and velocities.
	Reinitialize() error
	// SetIntegrator swaps the time-integration policy in place, keeping
	// coordinates, velocities, the box and the step counter.
	SetIntegrator(integ Integrator) error
	Close() error
}
