// Package ligand parameterizes small molecules with GAFF and builds solvated
// protein-ligand AMBER systems using AmberTools.
package ligand

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/pdbfix"
	"github.com/san-kum/mdpipe/internal/toolexec"
)

const installHint = "install AmberTools, e.g. mamba install -c conda-forge ambertools"

var (
	ErrUnsupportedFormat = errors.New("unsupported ligand format")
	ErrInvalidOption     = errors.New("invalid ligand option")
)

type ChargeMethod string

const (
	ChargeBCC  ChargeMethod = "bcc"
	ChargeGas  ChargeMethod = "gas"
	ChargeRESP ChargeMethod = "resp"
)

type ForceField string

const (
	GAFF  ForceField = "gaff"
	GAFF2 ForceField = "gaff2"
)

// Options control ligand parameterization.
type Options struct {
	ChargeMethod ChargeMethod
	NetCharge    int
	Name         string
	ForceField   ForceField
}

func (o Options) withDefaults() (Options, error) {
	if o.ChargeMethod == "" {
		o.ChargeMethod = ChargeBCC
	}
	if o.ForceField == "" {
		o.ForceField = GAFF2
	}
	if o.Name == "" {
		o.Name = "LIG"
	}
	o.Name = strings.ToUpper(o.Name)
	switch o.ChargeMethod {
	case ChargeBCC, ChargeGas, ChargeRESP:
	default:
		return o, fmt.Errorf("%w: charge method %q", ErrInvalidOption, o.ChargeMethod)
	}
	switch o.ForceField {
	case GAFF, GAFF2:
	default:
		return o, fmt.Errorf("%w: force field %q", ErrInvalidOption, o.ForceField)
	}
	return o, nil
}

// Parameters are the files produced for one ligand.
type Parameters struct {
	Mol2       string
	Frcmod     string
	Name       string
	ForceField ForceField
}

// DetectFormat maps a ligand file extension to its antechamber format.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sdf":
		return "sdf", nil
	case ".mol2":
		return "mol2", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Builder drives the AmberTools workflow.
type Builder struct {
	Runner toolexec.Runner
	Fixer  pdbfix.Fixer
	Log    *log.Logger
}

func New(logger *log.Logger) *Builder {
	return &Builder{
		Runner: toolexec.Exec{Log: logger},
		Fixer:  pdbfix.New(logger),
		Log:    logger,
	}
}

// Parameterize assigns GAFF atom types and charges with antechamber and
// writes missing parameters with parmchk2 into workdir.
func (b *Builder) Parameterize(ctx context.Context, ligandFile, workdir string, opts Options) (*Parameters, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	ligandPath, err := filepath.Abs(ligandFile)
	if err != nil {
		return nil, err
	}
	work, err := filepath.Abs(workdir)
	if err != nil {
		return nil, err
	}
	format, err := DetectFormat(ligandPath)
	if err != nil {
		return nil, err
	}
	if err := toolexec.Ensure(b.Runner, installHint, "antechamber", "parmchk2"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(work, 0755); err != nil {
		return nil, err
	}

	params := &Parameters{
		Mol2:       filepath.Join(work, opts.Name+"_gaff.mol2"),
		Frcmod:     filepath.Join(work, opts.Name+".frcmod"),
		Name:       opts.Name,
		ForceField: opts.ForceField,
	}

	antechamber := []string{
		"-i", ligandPath,
		"-fi", format,
		"-o", params.Mol2,
		"-fo", "mol2",
		"-c", string(opts.ChargeMethod),
		"-s", "2",
		"-nc", strconv.Itoa(opts.NetCharge),
		"-rn", opts.Name,
		"-at", string(opts.ForceField),
	}
	if err := b.Runner.Run(ctx, work, "antechamber", antechamber...); err != nil {
		return nil, err
	}
	parmchk := []string{"-i", params.Mol2, "-f", "mol2", "-o", params.Frcmod, "-s", string(opts.ForceField)}
	if err := b.Runner.Run(ctx, work, "parmchk2", parmchk...); err != nil {
		return nil, err
	}
	return params, nil
}

// ComplexOptions control BuildComplex.
type ComplexOptions struct {
	Ligand       Options
	Fix          pdbfix.Options
	BoxPaddingNm float64
	Neutralize   bool
}

// Complex lists the artifacts of a combined protein-ligand build.
type Complex struct {
	Prmtop       string
	Inpcrd       string
	PDB          string
	LeapInput    string
	Ligand       string
	Frcmod       string
	FixedProtein string
}

// BuildComplex repairs the protein, parameterizes the ligand, then uses tleap
// to combine, solvate in a TIP3P box and optionally neutralize. Outputs are
// named outputPrefix.{prmtop,inpcrd,pdb}.
func (b *Builder) BuildComplex(ctx context.Context, proteinPDB, ligandFile, outputPrefix string, opts ComplexOptions) (*Complex, error) {
	logger := logging.OrDiscard(b.Log)
	if opts.BoxPaddingNm <= 0 {
		return nil, fmt.Errorf("%w: box padding must be positive, got %g nm", ErrInvalidOption, opts.BoxPaddingNm)
	}
	if _, err := os.Stat(proteinPDB); err != nil {
		return nil, err
	}
	if _, err := os.Stat(ligandFile); err != nil {
		return nil, err
	}
	if err := toolexec.Ensure(b.Runner, installHint, "antechamber", "parmchk2", "tleap"); err != nil {
		return nil, err
	}

	prefix, err := filepath.Abs(outputPrefix)
	if err != nil {
		return nil, err
	}
	outDir := filepath.Dir(prefix)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(proteinPDB), filepath.Ext(proteinPDB))
	out := &Complex{
		Prmtop:       prefix + ".prmtop",
		Inpcrd:       prefix + ".inpcrd",
		PDB:          prefix + ".pdb",
		LeapInput:    prefix + ".leap.in",
		FixedProtein: filepath.Join(outDir, stem+"_fixed.pdb"),
	}
	if err := b.Fixer.Fix(ctx, proteinPDB, out.FixedProtein, opts.Fix); err != nil {
		return nil, err
	}

	params, err := b.Parameterize(ctx, ligandFile, outDir, opts.Ligand)
	if err != nil {
		return nil, err
	}
	out.Ligand = params.Mol2
	out.Frcmod = params.Frcmod

	script := LeapScript(params, out, opts)
	if err := os.WriteFile(out.LeapInput, []byte(script), 0644); err != nil {
		return nil, err
	}
	if err := b.Runner.Run(ctx, outDir, "tleap", "-f", filepath.Base(out.LeapInput)); err != nil {
		return nil, err
	}

	logger.Info("built protein-ligand system", "prmtop", out.Prmtop, "inpcrd", out.Inpcrd, "pdb", out.PDB)
	return out, nil
}

// LeapScript renders the tleap input. Paths are relative to the output
// directory, where tleap runs.
func LeapScript(params *Parameters, out *Complex, opts ComplexOptions) string {
	lines := []string{
		"source leaprc.protein.ff14SB",
		"source leaprc." + string(params.ForceField),
		"source leaprc.water.tip3p",
		"loadamberparams " + filepath.Base(params.Frcmod),
		fmt.Sprintf("%s = loadmol2 %s", params.Name, filepath.Base(params.Mol2)),
		"PROT = loadpdb " + filepath.Base(out.FixedProtein),
		fmt.Sprintf("COMPLEX = combine {PROT %s}", params.Name),
		fmt.Sprintf("solvatebox COMPLEX TIP3PBOX %.3f", opts.BoxPaddingNm*10),
	}
	if opts.Neutralize {
		lines = append(lines, "addions COMPLEX Na+ 0", "addions COMPLEX Cl- 0")
	}
	lines = append(lines,
		fmt.Sprintf("saveamberparm COMPLEX %s %s", filepath.Base(out.Prmtop), filepath.Base(out.Inpcrd)),
		"savepdb COMPLEX "+filepath.Base(out.PDB),
		"quit",
	)
	return strings.Join(lines, "\n") + "\n"
}
