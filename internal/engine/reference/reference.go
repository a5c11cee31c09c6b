package reference

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/integrators"
)

// Engine is the in-process reference implementation of engine.Engine.
type Engine struct {
	name string
}

// New returns a reference engine reporting the given name; an empty name
// means "reference".
func New(name string) *Engine {
	if name == "" {
		name = "reference"
	}
	return &Engine{name: name}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Platforms() []string {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = p.name
	}
	return names
}

func (e *Engine) Platform(name string) (engine.Platform, error) {
	for _, p := range platforms {
		if !strings.EqualFold(p.name, name) {
			continue
		}
		if !p.available() {
			return nil, fmt.Errorf("%w: %s", engine.ErrPlatformUnavailable, p.name)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: no platform named %q", engine.ErrPlatformUnavailable, name)
}

// DefaultPlatform returns the fastest platform that can be instantiated.
func (e *Engine) DefaultPlatform() engine.Platform {
	avail := make([]*platform, 0, len(platforms))
	for _, p := range platforms {
		if p.available() {
			avail = append(avail, p)
		}
	}
	sort.SliceStable(avail, func(i, j int) bool { return avail[i].speed > avail[j].speed })
	return avail[0]
}

func (e *Engine) LoadPDB(path string) (*engine.Structure, error) {
	return readPDBFile(path)
}

func (e *Engine) LoadForceField(files []string) (engine.ForceField, error) {
	return loadForceField(files)
}

func (e *Engine) LoadAmber(prmtop, coords string) (engine.PrebuiltTopology, *engine.Structure, error) {
	top, err := readPrmtop(prmtop)
	if err != nil {
		return nil, nil, err
	}
	positions, box, err := readInpcrd(coords, top.NumAtoms())
	if err != nil {
		return nil, nil, err
	}
	if box != nil {
		top.Box = box
	}
	st := &engine.Structure{Topology: top, Positions: positions, Box: top.Box.Clone()}
	return &prebuiltTopology{top: top, accepted: amberArgs}, st, nil
}

// LoadGromacs reads coordinates and box from the .gro file. The .top file
// and include directories must exist; parameters come from the reference
// force field.
func (e *Engine) LoadGromacs(top, gro string, includeDirs []string) (engine.PrebuiltTopology, *engine.Structure, error) {
	if err := mustExist(top); err != nil {
		return nil, nil, err
	}
	for _, dir := range includeDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("include dir: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("include dir %s is not a directory", dir)
		}
	}
	st, err := readGRO(gro)
	if err != nil {
		return nil, nil, err
	}
	return &gromacsTopology{prebuiltTopology{top: st.Topology, accepted: amberArgs}}, st, nil
}

func (e *Engine) LoadCharmm(psf string, params []string, coords string) (engine.CharmmTopology, *engine.Structure, error) {
	top, err := readPSF(psf)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range params {
		if err := mustExist(p); err != nil {
			return nil, nil, err
		}
	}

	var positions []engine.Vec3
	var box *engine.Box
	if strings.EqualFold(filepath.Ext(coords), ".crd") {
		positions, err = readCRD(coords)
	} else {
		var st *engine.Structure
		st, err = readPDBFile(coords)
		if st != nil {
			positions, box = st.Positions, st.Box
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if len(positions) != top.NumAtoms() {
		return nil, nil, fmt.Errorf("%s: %d coordinates for %d PSF atoms", coords, len(positions), top.NumAtoms())
	}
	top.Box = box

	var ps *engine.ParameterSet
	if len(params) > 0 {
		ps = &engine.ParameterSet{Files: append([]string(nil), params...)}
	}
	st := &engine.Structure{Topology: top, Positions: positions, Box: box.Clone()}
	return &charmmTopology{top: top, params: ps}, st, nil
}

type integrator struct {
	spec engine.IntegratorSpec
}

func (i *integrator) Spec() engine.IntegratorSpec { return i.spec }

func (e *Engine) NewIntegrator(spec engine.IntegratorSpec) (engine.Integrator, error) {
	// Validate eagerly; each context builds its own stepper.
	if _, err := integrators.New(spec, nil); err != nil {
		return nil, err
	}
	return &integrator{spec: spec}, nil
}

func (e *Engine) NewContext(top *engine.Topology, sys *engine.System, integ engine.Integrator, p engine.Platform, props map[string]string, initial *engine.Structure) (engine.Context, error) {
	plat, ok := p.(*platform)
	if !ok {
		return nil, fmt.Errorf("reference: foreign platform %T", p)
	}
	return newContext(top, sys, integ.Spec(), plat, props, initial)
}

func (e *Engine) WritePDB(w io.Writer, top *engine.Topology, positions []engine.Vec3, box *engine.Box) error {
	return WritePDB(w, top, positions, box)
}

// AddSolvent sizes a cubic periodic box around the structure with the
// requested padding. Solvent molecules and ions are not placed.
func (e *Engine) AddSolvent(st *engine.Structure, ff engine.ForceField, opts engine.SolventOptions) (*engine.Structure, error) {
	if len(st.Positions) == 0 {
		return nil, fmt.Errorf("reference: cannot solvate an empty structure")
	}
	lo := engine.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := engine.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range st.Positions {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	extent := math.Max(hi[0]-lo[0], math.Max(hi[1]-lo[1], hi[2]-lo[2]))
	edge := extent + 2*opts.PaddingNm

	top := *st.Topology
	top.Box = engine.Rectangular(edge, edge, edge)
	out := &engine.Structure{
		Topology:  &top,
		Positions: make([]engine.Vec3, len(st.Positions)),
		Box:       top.Box.Clone(),
	}
	center := lo.Add(hi).Scale(0.5)
	shift := engine.Vec3{edge / 2, edge / 2, edge / 2}.Sub(center)
	for i, p := range st.Positions {
		out.Positions[i] = p.Add(shift)
	}
	return out, nil
}

func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}

var (
	_ engine.Engine   = (*Engine)(nil)
	_ engine.Solvator = (*Engine)(nil)
)
