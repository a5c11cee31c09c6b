package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/pdbfix"
	"github.com/san-kum/mdpipe/internal/storage"
)

type fixCall struct {
	input, output string
	opts          pdbfix.Options
}

// copyFixer stands in for pdbfixer by copying the input.
type copyFixer struct {
	mu    sync.Mutex
	calls []fixCall
	err   error
}

func (f *copyFixer) Fix(_ context.Context, input, output string, opts pdbfix.Options) error {
	f.mu.Lock()
	f.calls = append(f.calls, fixCall{input, output, opts})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, data, 0644)
}

func waterPDB() string {
	p, err := filepath.Abs(filepath.Join("testdata", "water.pdb"))
	Expect(err).NotTo(HaveOccurred())
	return p
}

func testDefaults() config.Map {
	return config.Map{
		"engine":          "openmm",
		"platform":        "Reference",
		"temperature_K":   300,
		"timestep_fs":     1.0,
		"integrator":      "langevin_middle",
		"report_interval": 5,
		"create_system": config.Map{
			"nonbondedMethod":    "PME",
			"nonbondedCutoff_nm": 1.0,
		},
	}
}

func writeJob(dir string, doc config.Map) string {
	path := filepath.Join(dir, "job.yml")
	Expect(config.Save(path, doc)).To(Succeed())
	return path
}

var _ = Describe("RunFromYAML", func() {
	var (
		tmp   string
		fixer *copyFixer
		opts  Options
	)

	BeforeEach(func() {
		tmp = GinkgoT().TempDir()
		fixer = &copyFixer{}
		opts = Options{
			Logging: logging.Options{Output: GinkgoWriter, Style: logging.StylePlain},
			Fixer:   fixer,
		}
	})

	It("runs a minimization-only job without a trajectory", func() {
		job := writeJob(tmp, config.Map{
			"project":  "WaterBox",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems":  []any{config.Map{"id": "water", "fixed_pdb": waterPDB()}},
		})

		out, err := RunFromYAML(context.Background(), job, filepath.Join(tmp, "out"), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(filepath.Join(tmp, "out", "WaterBox")))

		stageDir := filepath.Join(out, "water", "minimize")
		Expect(filepath.Join(stageDir, "topology.pdb")).To(BeAnExistingFile())
		Expect(filepath.Join(stageDir, storage.MetadataFile)).To(BeAnExistingFile())
		Expect(filepath.Join(stageDir, "traj.dcd")).NotTo(BeAnExistingFile())
		Expect(filepath.Join(out, ResolvedFile)).To(BeAnExistingFile())
		Expect(filepath.Join(out, RunLogFile)).To(BeAnExistingFile())
		Expect(fixer.calls).To(BeEmpty())
	})

	It("repairs raw pdb inputs into the build directory", func() {
		job := writeJob(tmp, config.Map{
			"project":  "raw",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems":  []any{config.Map{"id": "water", "pdb": waterPDB()}},
		})

		out, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(fixer.calls).To(HaveLen(1))
		call := fixer.calls[0]
		Expect(call.input).To(Equal(waterPDB()))
		Expect(call.output).To(Equal(filepath.Join(out, BuildDir, "water_fixed.pdb")))
		Expect(call.opts.PH).To(Equal(7.0))

		resolved, err := config.LoadJob(filepath.Join(out, ResolvedFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.Systems[0].SourcePDB).To(Equal(waterPDB()))
		Expect(resolved.Systems[0].Source).To(Equal(config.PDBSource{Path: call.output}))
	})

	It("keeps repaired inputs with the same file name apart", func() {
		water, err := os.ReadFile(waterPDB())
		Expect(err).NotTo(HaveOccurred())
		for _, dir := range []string{"a", "b"} {
			Expect(os.MkdirAll(filepath.Join(tmp, dir), 0755)).To(Succeed())
			content := append([]byte("REMARK   1 "+dir+"\n"), water...)
			Expect(os.WriteFile(filepath.Join(tmp, dir, "protein.pdb"), content, 0644)).To(Succeed())
		}
		job := writeJob(tmp, config.Map{
			"project":  "twins",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems": []any{
				config.Map{"id": "sysA", "pdb": filepath.Join(tmp, "a", "protein.pdb")},
				config.Map{"id": "sysB", "pdb": filepath.Join(tmp, "b", "protein.pdb")},
			},
		})

		out, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(fixer.calls).To(HaveLen(2))
		Expect(fixer.calls[0].output).NotTo(Equal(fixer.calls[1].output))

		resolved, err := config.LoadJob(filepath.Join(out, ResolvedFile))
		Expect(err).NotTo(HaveOccurred())
		for _, sys := range resolved.Systems {
			fixed := sys.Source.(config.PDBSource).Path
			Expect(fixed).To(Equal(filepath.Join(out, BuildDir, sys.ID+"_fixed.pdb")))
			got, err := os.ReadFile(fixed)
			Expect(err).NotTo(HaveOccurred())
			want, err := os.ReadFile(sys.SourcePDB)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})

	It("does not repair a pdb that records its source", func() {
		job := writeJob(tmp, config.Map{
			"project":  "prov",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems":  []any{config.Map{"id": "water", "pdb": waterPDB(), "source_pdb": "/raw/water.pdb"}},
		})
		_, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(fixer.calls).To(BeEmpty())
	})

	It("propagates repair failures", func() {
		fixer.err = errors.New("PDB fixing failed")
		job := writeJob(tmp, config.Map{
			"project":  "bad",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems":  []any{config.Map{"id": "water", "pdb": waterPDB()}},
		})
		_, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).To(MatchError(ContainSubstring("PDB fixing failed")))
	})

	It("threads the handle through integration stages", func() {
		job := writeJob(tmp, config.Map{
			"project":  "chain",
			"defaults": testDefaults(),
			"stages": []any{
				config.Map{"name": "minimize", "steps": 0},
				config.Map{"name": "nvt", "steps": 10, "ensemble": "NVT"},
				config.Map{"name": "npt", "steps": 10, "ensemble": "NPT", "barostat_interval": 5},
			},
			"systems": []any{config.Map{"id": "water", "fixed_pdb": waterPDB()}},
		})
		out, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).NotTo(HaveOccurred())

		store := storage.New(out)
		runs, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(3))

		npt, err := store.Load("water", "npt")
		Expect(err).NotTo(HaveOccurred())
		Expect(npt.FinalStep).To(Equal(int64(20)))
		Expect(npt.Ensemble).To(Equal("NPT"))
		Expect(npt.Artifacts).To(ContainElement("traj.dcd"))
	})

	It("runs each sweep entry as its own system directory", func() {
		job := writeJob(tmp, config.Map{
			"project":  "sweep",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "md", "steps": 5}},
			"systems":  []any{config.Map{"id": "water", "fixed_pdb": waterPDB()}},
			"sweep": []any{
				config.Map{"temperature_K": 280},
				config.Map{"temperature_K": 320},
			},
		})
		opts.Parallel = 2
		out, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(out, "water-sweep1", "md", storage.MetadataFile)).To(BeAnExistingFile())
		Expect(filepath.Join(out, "water-sweep2", "md", storage.MetadataFile)).To(BeAnExistingFile())
		Expect(filepath.Join(out, "water")).NotTo(BeADirectory())
	})

	It("keeps sibling systems running when one fails", func() {
		job := writeJob(tmp, config.Map{
			"project":  "mixed",
			"defaults": testDefaults(),
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems": []any{
				config.Map{"id": "broken", "fixed_pdb": filepath.Join(tmp, "missing.pdb")},
				config.Map{"id": "water", "fixed_pdb": waterPDB()},
			},
		})
		opts.Parallel = 2
		out, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).To(MatchError(ContainSubstring("system broken")))
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
		Expect(filepath.Join(out, "water", "minimize", storage.MetadataFile)).To(BeAnExistingFile())
	})

	It("rejects an unknown engine", func() {
		d := testDefaults()
		d["engine"] = "gromacs-mdrun"
		job := writeJob(tmp, config.Map{
			"project":  "engine",
			"defaults": d,
			"stages":   []any{config.Map{"name": "minimize", "steps": 0}},
			"systems":  []any{config.Map{"id": "water", "fixed_pdb": waterPDB()}},
		})
		_, err := RunFromYAML(context.Background(), job, tmp, opts)
		Expect(err).To(MatchError(ContainSubstring("unknown engine")))
		Expect(errors.Is(err, config.ErrInvalid)).To(BeTrue())
	})

	It("reports a missing job file as not found", func() {
		_, err := RunFromYAML(context.Background(), filepath.Join(tmp, "nope.yml"), tmp, opts)
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	It("reports malformed YAML as a parse error", func() {
		path := filepath.Join(tmp, "bad.yml")
		Expect(os.WriteFile(path, []byte("invalid: yaml: content: ["), 0644)).To(Succeed())
		_, err := RunFromYAML(context.Background(), path, tmp, opts)
		Expect(errors.Is(err, config.ErrParse)).To(BeTrue())
	})
})

var _ = Describe("Registry", func() {
	It("knows the reference engines", func() {
		r := NewRegistry()
		Expect(r.ListEngines()).To(Equal([]string{"openmm", "reference"}))
		eng, err := r.GetEngine("openmm")
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.Name()).To(Equal("openmm"))
	})

	It("fails on unknown names", func() {
		_, err := NewRegistry().GetEngine("amber")
		Expect(err).To(MatchError(config.ErrInvalid))
	})
})
