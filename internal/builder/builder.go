// Package builder turns a system description into a ready-to-run simulation
// handle: it loads the input files, builds the system, picks an integrator
// and platform and writes the initial topology snapshot.
package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/integrators"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/platform"
	"github.com/san-kum/mdpipe/internal/report"
	"github.com/san-kum/mdpipe/internal/sim"
	"github.com/san-kum/mdpipe/internal/system"
)

// TopologyFile is the initial snapshot written to the run directory.
const TopologyFile = "topology.pdb"

// DefaultForceField is used for PDB inputs without a forcefield entry.
var DefaultForceField = []string{"amber14-all.xml", "amber14/tip3p.xml"}

type Builder struct {
	Engine engine.Engine
	Log    *log.Logger
}

func New(eng engine.Engine, logger *log.Logger) *Builder {
	return &Builder{Engine: eng, Log: logger}
}

// loaded is the outcome of a format loader: a construction model and the
// structure it describes.
type loaded struct {
	model     any
	topology  *engine.Topology
	structure *engine.Structure
}

// Build loads spec, creates the system from defaults and binds it to a new
// context. runDir is created if needed and receives topology.pdb.
func (b *Builder) Build(spec config.System, defaults config.Map, runDir string) (*sim.Handle, error) {
	logger := logging.OrDiscard(b.Log).With("system", spec.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	var (
		in  *loaded
		err error
	)
	switch src := spec.Source.(type) {
	case config.PDBSource:
		in, err = b.loadPDB(logger, src, defaults)
	case config.AmberSource:
		in, err = b.loadAmber(src)
	case config.GromacsSource:
		in, err = b.loadGromacs(src)
	case config.CharmmSource:
		in, err = b.loadCharmm(src)
	case nil:
		return nil, config.Invalidf("", "system %s has no input files", spec.ID)
	default:
		return nil, config.Invalidf("", "system %s: unsupported source %T", spec.ID, src)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s input: %w", spec.Source.Kind(), err)
	}
	logger.Info("loaded input", "format", spec.Source.Kind(), "atoms", in.topology.NumAtoms(), "residues", in.topology.NumResidues())

	args, err := system.Kwargs(defaults)
	if err != nil {
		return nil, err
	}
	sys, err := system.Create(logger, in.model, in.topology, args)
	if err != nil {
		return nil, err
	}

	ispec, err := integrators.FromConfig(defaults)
	if err != nil {
		return nil, err
	}
	integ, err := b.Engine.NewIntegrator(ispec)
	if err != nil {
		return nil, err
	}

	plat, err := platform.Select(logger, b.Engine, defaults.String("platform", platform.Auto))
	if err != nil {
		return nil, err
	}
	props := defaults.StringMap("platform_properties")
	ctx, err := b.Engine.NewContext(in.topology, sys, integ, plat, props, in.structure)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}

	box := in.structure.Box
	if box == nil {
		box = in.topology.Box
	}
	if err := report.WritePDB(b.Engine, filepath.Join(runDir, TopologyFile), in.topology, in.structure.Positions, box); err != nil {
		ctx.Close()
		return nil, fmt.Errorf("write %s: %w", TopologyFile, err)
	}

	logger.Info("system built",
		"forces", sys.NumForces(),
		"integrator", ispec.Kind,
		"platform", ctx.Platform().Name(),
		"periodic", sys.Periodic())
	return sim.New(b.Engine, in.topology, sys, integ, ctx), nil
}

func (b *Builder) loadPDB(logger *log.Logger, src config.PDBSource, defaults config.Map) (*loaded, error) {
	st, err := b.Engine.LoadPDB(src.Path)
	if err != nil {
		return nil, err
	}
	files := defaults.Strings("forcefield")
	if len(files) == 0 {
		files = DefaultForceField
	}
	ff, err := b.Engine.LoadForceField(files)
	if err != nil {
		return nil, err
	}

	if solv, ok := b.Engine.(engine.Solvator); ok && defaults.Bool("solvate", true) {
		opts := SolventOptions(defaults)
		st, err = solv.AddSolvent(st, ff, opts)
		if err != nil {
			return nil, fmt.Errorf("solvate: %w", err)
		}
		logger.Info("solvated", "padding_nm", opts.PaddingNm, "ionic_strength_M", opts.IonicStrength,
			"positive_ion", opts.PositiveIon, "negative_ion", opts.NegativeIon)
	}
	return &loaded{model: ff, topology: st.Topology, structure: st}, nil
}

func (b *Builder) loadAmber(src config.AmberSource) (*loaded, error) {
	model, st, err := b.Engine.LoadAmber(src.Prmtop, src.Coordinates)
	if err != nil {
		return nil, err
	}
	return &loaded{model: model, topology: model.Topology(), structure: st}, nil
}

func (b *Builder) loadGromacs(src config.GromacsSource) (*loaded, error) {
	for _, itp := range src.ITP {
		if _, err := os.Stat(itp); err != nil {
			return nil, fmt.Errorf("itp: %w", err)
		}
	}
	model, st, err := b.Engine.LoadGromacs(src.Top, src.Gro, IncludeDirs(src))
	if err != nil {
		return nil, err
	}
	return &loaded{model: model, topology: model.Topology(), structure: st}, nil
}

// IncludeDirs is the GROMACS include path: the explicit include_dirs, then
// the directory of every itp file not already listed.
func IncludeDirs(src config.GromacsSource) []string {
	dirs := append([]string(nil), src.IncludeDirs...)
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[filepath.Clean(d)] = true
	}
	for _, itp := range src.ITP {
		d := filepath.Dir(itp)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func (b *Builder) loadCharmm(src config.CharmmSource) (*loaded, error) {
	model, st, err := b.Engine.LoadCharmm(src.PSF, src.Params, src.Coordinates)
	if err != nil {
		return nil, err
	}
	return &loaded{model: model, topology: model.Topology(), structure: st}, nil
}
