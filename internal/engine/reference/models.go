package reference

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
)

const (
	bondK         = 200000.0 // kJ/mol/nm^2
	defaultCutoff = 1.0      // nm
	cmmFrequency  = 1
)

type argSet map[string]bool

func newArgSet(names ...string) argSet {
	s := argSet{}
	for _, n := range names {
		s[n] = true
	}
	return s
}

var (
	forceFieldArgs = newArgSet(
		engine.ArgConstraints, engine.ArgNonbondedMethod, engine.ArgNonbondedCutoff,
		engine.ArgSwitchingDistance, engine.ArgRigidWater, engine.ArgDispersionCorrection,
		engine.ArgEwaldErrorTolerance, engine.ArgHydrogenMass, engine.ArgRemoveCMMotion,
	)
	amberArgs = newArgSet(
		engine.ArgConstraints, engine.ArgNonbondedMethod, engine.ArgNonbondedCutoff,
		engine.ArgSwitchingDistance, engine.ArgRigidWater, engine.ArgEwaldErrorTolerance,
		engine.ArgHydrogenMass, engine.ArgRemoveCMMotion,
	)
	charmmArgs = newArgSet(
		engine.ArgConstraints, engine.ArgNonbondedMethod, engine.ArgNonbondedCutoff,
		engine.ArgSwitchingDistance, engine.ArgRigidWater, engine.ArgEwaldErrorTolerance,
		engine.ArgHydrogenMass, engine.ArgRemoveCMMotion, engine.ArgDispersionCorrection,
	)
)

type forceField struct {
	files []string
}

func loadForceField(files []string) (*forceField, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("reference: no force field files given")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			continue
		}
		// Bundled force fields are referenced by bare XML name.
		if !strings.HasSuffix(strings.ToLower(f), ".xml") {
			return nil, fmt.Errorf("reference: force field %s: %w", f, os.ErrNotExist)
		}
	}
	return &forceField{files: append([]string(nil), files...)}, nil
}

func (ff *forceField) CreateSystem(top *engine.Topology, args engine.Args) (*engine.System, error) {
	if top == nil {
		return nil, fmt.Errorf("reference: force field requires a topology")
	}
	return buildSystem(top, args, forceFieldArgs)
}

type prebuiltTopology struct {
	top      *engine.Topology
	accepted argSet
}

func (p *prebuiltTopology) Topology() *engine.Topology { return p.top }

func (p *prebuiltTopology) CreateSystem(args engine.Args) (*engine.System, error) {
	return buildSystem(p.top, args, p.accepted)
}

// gromacsTopology can report the arguments it consumes ahead of time.
type gromacsTopology struct {
	prebuiltTopology
}

func (g *gromacsTopology) AcceptsArgument(name string) bool { return g.accepted[name] }

type charmmTopology struct {
	top    *engine.Topology
	params *engine.ParameterSet
}

func (c *charmmTopology) Topology() *engine.Topology   { return c.top }
func (c *charmmTopology) Params() *engine.ParameterSet { return c.params }

func (c *charmmTopology) CreateSystemWithParams(params *engine.ParameterSet, args engine.Args) (*engine.System, error) {
	if params == nil || len(params.Files) == 0 {
		return nil, fmt.Errorf("reference: CHARMM system requires a parameter set")
	}
	return buildSystem(c.top, args, charmmArgs)
}

// buildSystem assembles the reference energy function: harmonic bonds at
// covalent-radius lengths and an element-typed Lennard-Jones term.
func buildSystem(top *engine.Topology, args engine.Args, accepted argSet) (*engine.System, error) {
	if err := checkArgs(args, accepted); err != nil {
		return nil, err
	}

	nb := &engine.NonbondedForce{
		Method:               engine.NoCutoff,
		Cutoff:               defaultCutoff,
		DispersionCorrection: true,
		EwaldErrorTolerance:  0.0005,
	}
	sys := &engine.System{
		Masses:     make([]float64, top.NumAtoms()),
		RigidWater: true,
		Box:        top.Box.Clone(),
	}
	removeCM := true

	for name, v := range args {
		var ok bool
		switch name {
		case engine.ArgConstraints:
			sys.Constraints, ok = v.(engine.Constraint)
		case engine.ArgNonbondedMethod:
			nb.Method, ok = v.(engine.NonbondedMethod)
		case engine.ArgNonbondedCutoff:
			var c engine.Nanometers
			c, ok = v.(engine.Nanometers)
			nb.Cutoff = float64(c)
		case engine.ArgSwitchingDistance:
			var d engine.Nanometers
			d, ok = v.(engine.Nanometers)
			nb.SwitchingDistance = float64(d)
			nb.UseSwitchingFunction = ok
		case engine.ArgUseSwitchingFunction:
			nb.UseSwitchingFunction, ok = v.(bool)
		case engine.ArgRigidWater:
			sys.RigidWater, ok = v.(bool)
		case engine.ArgDispersionCorrection:
			nb.DispersionCorrection, ok = v.(bool)
		case engine.ArgEwaldErrorTolerance:
			nb.EwaldErrorTolerance, ok = v.(float64)
		case engine.ArgHydrogenMass:
			_, ok = v.(engine.Daltons)
		case engine.ArgRemoveCMMotion:
			removeCM, ok = v.(bool)
		}
		if !ok {
			return nil, fmt.Errorf("reference: invalid value %v (%T) for argument %s", v, v, name)
		}
	}
	if nb.Method.Periodic() && sys.Box == nil {
		return nil, fmt.Errorf("reference: nonbonded method %s requires periodic box vectors", nb.Method)
	}
	if nb.UseSwitchingFunction && nb.SwitchingDistance >= nb.Cutoff {
		return nil, fmt.Errorf("reference: switching distance %.3f must be below the cutoff %.3f", nb.SwitchingDistance, nb.Cutoff)
	}

	nb.Sigma = make([]float64, top.NumAtoms())
	nb.Epsilon = make([]float64, top.NumAtoms())
	for i, a := range top.Atoms {
		el := lookupElement(a.Element)
		sys.Masses[i] = a.Mass
		nb.Sigma[i] = el.sigma
		nb.Epsilon[i] = el.epsilon
	}
	if hm, ok := args[engine.ArgHydrogenMass].(engine.Daltons); ok {
		repartitionHydrogen(top, sys.Masses, float64(hm))
	}

	bonds := &engine.HarmonicBondForce{}
	for _, b := range top.Bonds {
		length := lookupElement(top.Atoms[b.I].Element).covalent + lookupElement(top.Atoms[b.J].Element).covalent
		bonds.Bonds = append(bonds.Bonds, engine.BondParams{I: b.I, J: b.J, Length: length, K: bondK})
	}

	sys.AddForce(bonds)
	sys.AddForce(nb)
	if removeCM {
		sys.AddForce(&engine.CMMotionRemover{Frequency: cmmFrequency})
	}
	return sys, nil
}

// checkArgs rejects the first argument, in name order, the model does not
// consume.
func checkArgs(args engine.Args, accepted argSet) error {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !accepted[name] {
			return &engine.UnusedArgumentError{Arg: name}
		}
	}
	return nil
}

// repartitionHydrogen moves mass from heavy atoms onto their bonded
// hydrogens so every hydrogen weighs mass Da.
func repartitionHydrogen(top *engine.Topology, masses []float64, mass float64) {
	for _, b := range top.Bonds {
		h, heavy := b.I, b.J
		if top.Atoms[h].Element != "H" {
			h, heavy = heavy, h
		}
		if top.Atoms[h].Element != "H" || top.Atoms[heavy].Element == "H" {
			continue
		}
		delta := mass - masses[h]
		if masses[heavy]-delta <= 0 {
			continue
		}
		masses[h] += delta
		masses[heavy] -= delta
	}
}
