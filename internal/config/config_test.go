package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  Map
		src  Map
		want Map
	}{
		{"flat", Map{"a": 1, "b": 2}, Map{"b": 3, "c": 4}, Map{"a": 1, "b": 3, "c": 4}},
		{
			"nested",
			Map{"a": Map{"x": 1, "y": 2}, "b": 1},
			Map{"a": Map{"y": 3, "z": 4}},
			Map{"a": Map{"x": 1, "y": 3, "z": 4}, "b": 1},
		},
		{"empty src", Map{"a": 1}, Map{}, Map{"a": 1}},
		{"nil src", Map{"a": 1}, nil, Map{"a": 1}},
		{"mapping replaces scalar", Map{"a": 1, "b": "value"}, Map{"b": Map{"nested": "value"}}, Map{"a": 1, "b": Map{"nested": "value"}}},
		{"scalar replaces mapping", Map{"b": Map{"x": 1}}, Map{"b": 2}, Map{"b": 2}},
		{"lists replace", Map{"l": []any{1, 2}}, Map{"l": []any{3}}, Map{"l": []any{3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.dst, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Merge mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, tt.dst); diff != "" {
				t.Errorf("Merge should update dst in place (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeMixedMapTypes(t *testing.T) {
	dst := Map{"create_system": map[string]any{"constraints": "HBonds", "rigidWater": true}}
	src := Map{"create_system": Map{"constraints": "None"}}
	Merge(dst, src)

	cs := dst.Sub("create_system")
	if cs.String("constraints", "") != "None" {
		t.Errorf("expected constraints None, got %v", cs["constraints"])
	}
	if !cs.Bool("rigidWater", false) {
		t.Error("rigidWater should survive the merge")
	}
}

func TestMergeDoesNotAliasSource(t *testing.T) {
	src := Map{"a": Map{"x": 1}, "l": []any{1}}
	dst := Merge(Map{}, src)
	dst.Sub("a")["x"] = 2
	dst["l"].([]any)[0] = 9

	if src.Sub("a")["x"] != 1 {
		t.Error("merged mapping aliases source")
	}
	if src["l"].([]any)[0] != 1 {
		t.Error("merged list aliases source")
	}
}

func TestCopy(t *testing.T) {
	if Copy(nil) != nil {
		t.Error("Copy(nil) should be nil")
	}
	orig := Map{"a": Map{"b": []any{Map{"c": 1}}}}
	c := Copy(orig)
	c.Sub("a")["b"].([]any)[0].(Map)["c"] = 2
	if diff := cmp.Diff(Map{"a": Map{"b": []any{Map{"c": 1}}}}, orig); diff != "" {
		t.Errorf("Copy is shallow (-want +got):\n%s", diff)
	}
}

func TestAccessors(t *testing.T) {
	m := Map{
		"f":    1.5,
		"i":    3,
		"s":    "text",
		"n":    "2.5",
		"b":    "true",
		"list": []any{"a", 2, nil},
		"one":  "single",
		"sub":  Map{"k": 1},
		"null": nil,
	}
	if got := m.Float("i", 0); got != 3 {
		t.Errorf("Float(i) = %v", got)
	}
	if got := m.Float("n", 0); got != 2.5 {
		t.Errorf("Float(n) = %v", got)
	}
	if got := m.Int("f", 0); got != 1 {
		t.Errorf("Int(f) = %v", got)
	}
	if got := m.Float("missing", 7); got != 7 {
		t.Errorf("Float default = %v", got)
	}
	if got := m.String("i", ""); got != "3" {
		t.Errorf("String(i) = %q", got)
	}
	if !m.Bool("b", false) {
		t.Error("Bool(b) should parse string true")
	}
	if diff := cmp.Diff([]string{"a", "2"}, m.Strings("list")); diff != "" {
		t.Errorf("Strings(list) (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"single"}, m.Strings("one")); diff != "" {
		t.Errorf("Strings(one) (-want +got):\n%s", diff)
	}
	if m.Has("null") || m.Has("missing") || !m.Has("s") {
		t.Error("Has misreports presence")
	}
	if m.Sub("s") != nil || m.Sub("sub") == nil {
		t.Error("Sub misreports mappings")
	}
	if diff := cmp.Diff(map[string]string{"k": "1"}, m.StringMap("sub")); diff != "" {
		t.Errorf("StringMap (-want +got):\n%s", diff)
	}
}

func TestInferSource(t *testing.T) {
	tests := []struct {
		name string
		raw  Map
		want Source
		err  bool
	}{
		{"pdb", Map{"pdb": "a.pdb"}, PDBSource{Path: "a.pdb"}, false},
		{"fixed pdb", Map{"fixed_pdb": "a.pdb"}, PDBSource{Path: "a.pdb", Fixed: true}, false},
		{"amber inpcrd", Map{"prmtop": "a.prmtop", "inpcrd": "a.inpcrd"}, AmberSource{Prmtop: "a.prmtop", Coordinates: "a.inpcrd"}, false},
		{"amber rst7", Map{"prmtop": "a.prmtop", "rst7": "a.rst7"}, AmberSource{Prmtop: "a.prmtop", Coordinates: "a.rst7"}, false},
		{"amber wins over pdb", Map{"pdb": "a.pdb", "prmtop": "a.prmtop", "inpcrd": "a.inpcrd"}, AmberSource{Prmtop: "a.prmtop", Coordinates: "a.inpcrd"}, false},
		{
			"gromacs",
			Map{"top": "t.top", "gro": "c.gro", "itp": []any{"x.itp"}, "include_dirs": "ff"},
			GromacsSource{Top: "t.top", Gro: "c.gro", ITP: []string{"x.itp"}, IncludeDirs: []string{"ff"}},
			false,
		},
		{
			"charmm",
			Map{"psf": "s.psf", "params": []any{"a.prm", "b.str"}, "pdb": "c.pdb"},
			CharmmSource{PSF: "s.psf", Params: []string{"a.prm", "b.str"}, Coordinates: "c.pdb"},
			false,
		},
		{"explicit type", Map{"type": "PDB", "pdb": "a.pdb", "psf": "x"}, PDBSource{Path: "a.pdb"}, false},
		{"amber without coordinates", Map{"prmtop": "a.prmtop"}, nil, true},
		{"gromacs without gro", Map{"top": "t.top"}, nil, true},
		{"charmm without params", Map{"psf": "s.psf", "pdb": "c.pdb"}, nil, true},
		{"charmm without coordinates", Map{"psf": "s.psf", "params": "a.prm"}, nil, true},
		{"unknown type", Map{"type": "xyz"}, nil, true},
		{"unrecognized", Map{"foo": 1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferSource(tt.raw)
			if tt.err {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("source mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage(Map{"name": "npt", "steps": 100, "ensemble": "npt", "report_interval": 10})
	if err != nil {
		t.Fatal(err)
	}
	if st.Ensemble != EnsembleNPT || st.Steps != 100 || st.Minimize() {
		t.Errorf("unexpected stage %+v", st)
	}
	if diff := cmp.Diff(Map{"report_interval": 10}, st.Overrides); diff != "" {
		t.Errorf("overrides (-want +got):\n%s", diff)
	}

	minStage, err := ParseStage(Map{"name": "min"})
	if err != nil {
		t.Fatal(err)
	}
	if !minStage.Minimize() || minStage.Ensemble != EnsembleNone {
		t.Errorf("expected minimization without ensemble, got %+v", minStage)
	}

	bad := []Map{
		{"steps": 1},
		{"name": "x", "steps": -1},
		{"name": "x", "steps": 1.5},
		{"name": "x", "ensemble": "NVE"},
	}
	for _, raw := range bad {
		if _, err := ParseStage(raw); !errors.Is(err, ErrInvalid) {
			t.Errorf("ParseStage(%v): expected ErrInvalid, got %v", raw, err)
		}
	}
}

func TestStageResolve(t *testing.T) {
	defaults := Map{"temperature_K": 300, "create_system": Map{"constraints": "HBonds"}}
	st := Stage{Name: "hot", Overrides: Map{"temperature_K": 350, "create_system": Map{"rigidWater": true}}}

	got := st.Resolve(defaults)
	want := Map{"temperature_K": 350, "create_system": Map{"constraints": "HBonds", "rigidWater": true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve (-want +got):\n%s", diff)
	}
	if defaults.Sub("create_system").Has("rigidWater") {
		t.Error("Resolve modified defaults")
	}
}

func TestParseJob(t *testing.T) {
	raw := Map{
		"project":  "demo",
		"defaults": Map{"temperature_K": 300},
		"stages":   []any{Map{"name": "min", "steps": 0}, Map{"name": "md", "steps": 10, "ensemble": "NVT"}},
		"systems":  []any{Map{"id": "a", "pdb": "a.pdb", "source_pdb": "raw.pdb"}},
		"sweep":    []any{Map{"temperature_K": 310}},
	}
	job, err := ParseJob(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(job.Stages) != 2 || len(job.Systems) != 1 || len(job.Sweep) != 1 {
		t.Fatalf("unexpected job shape %+v", job)
	}
	if job.Systems[0].SourcePDB != "raw.pdb" {
		t.Errorf("source_pdb not kept: %q", job.Systems[0].SourcePDB)
	}

	doc := job.Document()
	again, err := ParseJob(doc)
	if err != nil {
		t.Fatalf("document does not parse back: %v", err)
	}
	if diff := cmp.Diff(job.Stages, again.Stages); diff != "" {
		t.Errorf("stages changed through Document (-want +got):\n%s", diff)
	}
}

func TestParseJobErrors(t *testing.T) {
	stages := []any{Map{"name": "min"}}
	systems := []any{Map{"id": "a", "pdb": "a.pdb"}}
	tests := []struct {
		name string
		raw  Map
	}{
		{"no project", Map{"stages": stages, "systems": systems}},
		{"no stages", Map{"project": "p", "systems": systems}},
		{"no systems", Map{"project": "p", "stages": stages}},
		{"stages not a list", Map{"project": "p", "stages": "min", "systems": systems}},
		{"duplicate stage", Map{"project": "p", "stages": []any{Map{"name": "a"}, Map{"name": "a"}}, "systems": systems}},
		{"duplicate system", Map{"project": "p", "stages": stages, "systems": []any{Map{"id": "a", "pdb": "x"}, Map{"id": "a", "pdb": "y"}}}},
		{"system without id", Map{"project": "p", "stages": stages, "systems": []any{Map{"pdb": "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJob(tt.raw); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadJob(filepath.Join(dir, "missing.yml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}

	bad := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(bad, []byte("invalid: yaml: content: ["), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadJob(bad)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}

	good := filepath.Join(dir, "job.yml")
	doc := "project: demo\nstages:\n  - name: min\n    steps: 0\nsystems:\n  - id: w\n    fixed_pdb: w.pdb\n"
	if err := os.WriteFile(good, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	job, err := LoadJob(good)
	if err != nil {
		t.Fatal(err)
	}
	if job.Project != "demo" || len(job.Defaults) != 0 {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestAutoPresets(t *testing.T) {
	d := AutoDefaults()
	if d.String("engine", "") != "openmm" {
		t.Errorf("expected openmm engine, got %v", d["engine"])
	}
	if d.Float("timestep_fs", 0) != 2.0 || d.Float("temperature_K", 0) != 300 {
		t.Error("unexpected auto integrator defaults")
	}
	stages := AutoStages()
	if len(stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(stages))
	}
	for _, item := range stages {
		if _, err := ParseStage(item.(Map)); err != nil {
			t.Errorf("auto stage does not parse: %v", err)
		}
	}
}
