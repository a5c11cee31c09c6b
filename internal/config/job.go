package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

type Ensemble string

const (
	EnsembleNone Ensemble = ""
	EnsembleNVT  Ensemble = "NVT"
	EnsembleNPT  Ensemble = "NPT"
)

// Job is a validated job description.
type Job struct {
	Project  string
	Defaults Map
	Stages   []Stage
	Systems  []System
	Sweep    []Map
}

// Stage is one scheduled phase. Steps == 0 requests an energy minimization.
type Stage struct {
	Name      string
	Steps     int
	Ensemble  Ensemble
	Overrides Map
}

// Minimize reports whether the stage is a minimization rather than time integration.
func (s Stage) Minimize() bool { return s.Steps == 0 }

// Resolve layers the stage overrides over a copy of defaults.
func (s Stage) Resolve(defaults Map) Map {
	return Merge(Copy(defaults), Copy(s.Overrides))
}

type SourceKind string

const (
	KindPDB     SourceKind = "pdb"
	KindAmber   SourceKind = "amber"
	KindGromacs SourceKind = "gromacs"
	KindCharmm  SourceKind = "charmm"
)

// Source is one of the supported molecular input shapes: PDBSource,
// AmberSource, GromacsSource or CharmmSource.
type Source interface {
	Kind() SourceKind
	isSource()
}

type PDBSource struct {
	Path string
	// Fixed marks input that must not be sent through structure repair.
	Fixed bool
}

type AmberSource struct {
	Prmtop      string
	Coordinates string
}

type GromacsSource struct {
	Top         string
	Gro         string
	ITP         []string
	IncludeDirs []string
}

type CharmmSource struct {
	PSF         string
	Params      []string
	Coordinates string
}

func (PDBSource) Kind() SourceKind     { return KindPDB }
func (AmberSource) Kind() SourceKind   { return KindAmber }
func (GromacsSource) Kind() SourceKind { return KindGromacs }
func (CharmmSource) Kind() SourceKind  { return KindCharmm }

func (PDBSource) isSource()     {}
func (AmberSource) isSource()   {}
func (GromacsSource) isSource() {}
func (CharmmSource) isSource()  {}

// System is one molecular system of a job.
type System struct {
	ID     string
	Source Source
	// SourcePDB records the raw structure a repaired PDB was derived from.
	SourcePDB string
	Raw       Map
}

var (
	amberKeys   = []string{"prmtop", "inpcrd", "rst7"}
	gromacsKeys = []string{"top", "gro", "itp", "include_dirs"}
	charmmKeys  = []string{"psf", "params", "crd"}
)

// LoadJob reads and validates a job description. Missing files surface
// fs.ErrNotExist; malformed YAML surfaces ErrParse.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("job description %s: %w", path, err)
		}
		return nil, err
	}
	raw, err := ParseMap(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ParseJob(raw)
}

// ParseJob validates a decoded job document.
func ParseJob(raw Map) (*Job, error) {
	job := &Job{
		Project:  raw.String("project", ""),
		Defaults: raw.Sub("defaults"),
	}
	if job.Project == "" {
		return nil, Invalidf("project", "missing project name")
	}
	if job.Defaults == nil {
		job.Defaults = Map{}
	}

	stages, err := sequence(raw, "stages")
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, Invalidf("stages", "at least one stage is required")
	}
	seenStage := map[string]bool{}
	for i, item := range stages {
		st, err := ParseStage(item)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		if seenStage[st.Name] {
			return nil, Invalidf("stages", "duplicate stage name %q", st.Name)
		}
		seenStage[st.Name] = true
		job.Stages = append(job.Stages, st)
	}

	systems, err := sequence(raw, "systems")
	if err != nil {
		return nil, err
	}
	if len(systems) == 0 {
		return nil, Invalidf("systems", "at least one system is required")
	}
	seenID := map[string]bool{}
	for i, item := range systems {
		sys, err := ParseSystem(item)
		if err != nil {
			return nil, fmt.Errorf("system %d: %w", i+1, err)
		}
		if seenID[sys.ID] {
			return nil, Invalidf("systems", "duplicate system id %q", sys.ID)
		}
		seenID[sys.ID] = true
		job.Systems = append(job.Systems, sys)
	}

	sweep, err := sequence(raw, "sweep")
	if err != nil {
		return nil, err
	}
	if job.Sweep, err = ExpandSweep(sweep); err != nil {
		return nil, err
	}
	return job, nil
}

// Document renders the job back into its YAML document shape. The result
// always carries the keys project, defaults, stages, systems and sweep.
func (j *Job) Document() Map {
	stages := make([]any, 0, len(j.Stages))
	for _, st := range j.Stages {
		m := Copy(st.Overrides)
		if m == nil {
			m = Map{}
		}
		m["name"] = st.Name
		m["steps"] = st.Steps
		if st.Ensemble != EnsembleNone {
			m["ensemble"] = string(st.Ensemble)
		}
		stages = append(stages, m)
	}
	systems := make([]any, 0, len(j.Systems))
	for _, sys := range j.Systems {
		systems = append(systems, Copy(sys.Raw))
	}
	sweep := make([]any, 0, len(j.Sweep))
	for _, m := range j.Sweep {
		sweep = append(sweep, Copy(m))
	}
	return Map{
		"project":  j.Project,
		"defaults": Copy(j.Defaults),
		"stages":   stages,
		"systems":  systems,
		"sweep":    sweep,
	}
}

func sequence(raw Map, key string) ([]Map, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, Invalidf(key, "expected a sequence, got %T", v)
	}
	out := make([]Map, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, Invalidf(key, "entry %d is not a mapping", i+1)
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseStage validates one stage mapping. Keys other than name, steps and
// ensemble become per-stage overrides.
func ParseStage(raw Map) (Stage, error) {
	st := Stage{Name: raw.String("name", "")}
	if st.Name == "" {
		return st, Invalidf("name", "stage requires a name")
	}
	if raw.Has("steps") {
		f, ok := toFloat(raw["steps"])
		if !ok || f != float64(int(f)) {
			return st, Invalidf("steps", "stage %s: steps must be an integer", st.Name)
		}
		st.Steps = int(f)
	}
	if st.Steps < 0 {
		return st, Invalidf("steps", "stage %s: steps must be >= 0, got %d", st.Name, st.Steps)
	}
	ens, err := ParseEnsemble(raw.String("ensemble", ""))
	if err != nil {
		return st, err
	}
	st.Ensemble = ens
	st.Overrides = Map{}
	for k, v := range raw {
		switch k {
		case "name", "steps", "ensemble":
			continue
		}
		st.Overrides[k] = copyValue(v)
	}
	return st, nil
}

func ParseEnsemble(s string) (Ensemble, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return EnsembleNone, nil
	case "NVT":
		return EnsembleNVT, nil
	case "NPT":
		return EnsembleNPT, nil
	}
	return EnsembleNone, Invalidf("ensemble", "unknown ensemble %q (expected NVT or NPT)", s)
}

// ParseSystem validates a system mapping into one of the Source variants.
// An explicit type field wins over inference; otherwise the first matching
// shape is taken in the order PDB, AMBER, GROMACS, CHARMM.
func ParseSystem(raw Map) (System, error) {
	sys := System{
		ID:        raw.String("id", ""),
		SourcePDB: raw.String("source_pdb", ""),
		Raw:       raw,
	}
	src, err := InferSource(raw)
	if err != nil {
		if sys.ID != "" {
			return sys, fmt.Errorf("system %s: %w", sys.ID, err)
		}
		return sys, err
	}
	sys.Source = src
	if sys.ID == "" {
		return sys, Invalidf("id", "system requires an id")
	}
	return sys, nil
}

// InferSource maps a system mapping onto its Source variant.
func InferSource(raw Map) (Source, error) {
	if t := strings.ToLower(raw.String("type", "")); t != "" {
		switch SourceKind(t) {
		case KindPDB:
			return pdbSource(raw)
		case KindAmber:
			return amberSource(raw)
		case KindGromacs:
			return gromacsSource(raw)
		case KindCharmm:
			return charmmSource(raw)
		}
		return nil, Invalidf("type", "unknown system type %q", t)
	}

	hasAmber := anyKey(raw, amberKeys)
	hasGromacs := anyKey(raw, gromacsKeys)
	hasCharmm := anyKey(raw, charmmKeys)
	switch {
	case (raw.Has("pdb") || raw.Has("fixed_pdb")) && !hasAmber && !hasGromacs && !hasCharmm:
		return pdbSource(raw)
	case raw.Has("prmtop"):
		return amberSource(raw)
	case raw.Has("top") || raw.Has("gro"):
		return gromacsSource(raw)
	case raw.Has("psf") || raw.Has("params"):
		return charmmSource(raw)
	}
	return nil, Invalidf("", "unrecognized system spec (keys: %s)", strings.Join(keys(raw), ", "))
}

func pdbSource(raw Map) (Source, error) {
	if p := raw.String("fixed_pdb", ""); p != "" {
		return PDBSource{Path: p, Fixed: true}, nil
	}
	if p := raw.String("pdb", ""); p != "" {
		return PDBSource{Path: p}, nil
	}
	return nil, Invalidf("pdb", "PDB system requires pdb or fixed_pdb")
}

func amberSource(raw Map) (Source, error) {
	prmtop := raw.String("prmtop", "")
	if prmtop == "" {
		return nil, Invalidf("prmtop", "AMBER system requires prmtop")
	}
	coords := raw.String("inpcrd", "")
	if coords == "" {
		coords = raw.String("rst7", "")
	}
	if coords == "" {
		return nil, Invalidf("inpcrd", "AMBER system requires inpcrd or rst7 alongside prmtop")
	}
	return AmberSource{Prmtop: prmtop, Coordinates: coords}, nil
}

func gromacsSource(raw Map) (Source, error) {
	top := raw.String("top", "")
	gro := raw.String("gro", "")
	if top == "" {
		return nil, Invalidf("top", "GROMACS system requires top")
	}
	if gro == "" {
		return nil, Invalidf("gro", "GROMACS system requires gro alongside top")
	}
	return GromacsSource{
		Top:         top,
		Gro:         gro,
		ITP:         raw.Strings("itp"),
		IncludeDirs: raw.Strings("include_dirs"),
	}, nil
}

func charmmSource(raw Map) (Source, error) {
	psf := raw.String("psf", "")
	if psf == "" {
		return nil, Invalidf("psf", "CHARMM system requires psf")
	}
	params := raw.Strings("params")
	if len(params) == 0 {
		return nil, Invalidf("params", "CHARMM system requires params")
	}
	coords := raw.String("pdb", "")
	if coords == "" {
		coords = raw.String("crd", "")
	}
	if coords == "" {
		return nil, Invalidf("pdb", "CHARMM system requires a coordinate source (pdb or crd)")
	}
	return CharmmSource{PSF: psf, Params: params, Coordinates: coords}, nil
}

func anyKey(raw Map, keys []string) bool {
	for _, k := range keys {
		if raw.Has(k) {
			return true
		}
	}
	return false
}

func keys(m Map) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
