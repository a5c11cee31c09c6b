package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
)

var _ = Describe("auto config", func() {
	It("names projects after the structure", func() {
		Expect(AutoProjectName("protein.pdb")).To(Equal("protein-auto"))
		Expect(AutoProjectName("/path/to/my_protein.pdb")).To(Equal("my_protein-auto"))
		Expect(AutoProjectName("protein")).To(Equal("protein-auto"))
	})

	It("builds the four-stage pipeline", func() {
		doc := BuildAutoConfig("fixed_protein.pdb", "")
		Expect(doc["project"]).To(Equal("fixed_protein-auto"))
		Expect(doc).To(HaveKey("sweep"))

		sys := doc["systems"].([]any)[0].(config.Map)
		Expect(sys["pdb"]).To(Equal("fixed_protein.pdb"))
		Expect(sys).NotTo(HaveKey("source_pdb"))

		defaults := doc["defaults"].(config.Map)
		Expect(defaults["engine"]).To(Equal("openmm"))
		Expect(defaults.Float("temperature_K", 0)).To(Equal(300.0))
		Expect(defaults.Float("timestep_fs", 0)).To(Equal(2.0))

		var names []string
		for _, st := range doc["stages"].([]any) {
			names = append(names, st.(config.Map).String("name", ""))
		}
		Expect(names).To(Equal([]string{"minimize", "nvt", "npt", "production"}))

		Expect(BuildAutoConfig("x.pdb", "custom")["project"]).To(Equal("custom"))
	})
})

var _ = Describe("SimulateFromPDB", func() {
	var (
		tmp   string
		pdb   string
		fixer *copyFixer
		so    SimulateOptions
	)

	// Keeps the run short: the user document replaces the preset stages.
	fastConfig := func(extra string) string {
		path := filepath.Join(tmp, "config.yml")
		body := "defaults:\n  platform: Reference\n  timestep_fs: 1.0\n  temperature_K: 310\n" +
			"stages:\n  - name: minimize\n    steps: 0\n" + extra
		Expect(os.WriteFile(path, []byte(body), 0644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		tmp = GinkgoT().TempDir()
		data, err := os.ReadFile(filepath.Join("testdata", "water.pdb"))
		Expect(err).NotTo(HaveOccurred())
		pdb = filepath.Join(tmp, "test_protein.pdb")
		Expect(os.WriteFile(pdb, data, 0644)).To(Succeed())
		fixer = &copyFixer{}
		so = SimulateOptions{
			Options: Options{
				Logging: logging.Options{Output: GinkgoWriter, Style: logging.StylePlain},
				Fixer:   fixer,
			},
			Outdir: filepath.Join(tmp, "simulate_output"),
		}
	})

	It("writes the auto job and runs it", func() {
		so.Config = fastConfig("")
		out, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(filepath.Join(tmp, "simulate_output", "test_protein-auto")))
		Expect(fixer.calls).To(HaveLen(1))
		Expect(fixer.calls[0].output).To(Equal(filepath.Join(out, BuildDir, "test_protein_fixed.pdb")))

		doc, err := config.LoadMap(filepath.Join(out, BuildDir, AutoJobFile))
		Expect(err).NotTo(HaveOccurred())
		for _, key := range []string{"project", "defaults", "stages", "systems", "sweep"} {
			Expect(doc).To(HaveKey(key))
		}
		Expect(doc["project"]).To(Equal("test_protein-auto"))
		defaults := doc.Sub("defaults")
		Expect(defaults.Float("temperature_K", 0)).To(Equal(310.0))
		Expect(defaults.Float("timestep_fs", 0)).To(Equal(1.0))
		Expect(defaults["engine"]).To(Equal("openmm"))

		systems := doc["systems"].([]any)
		sys := config.Map(systems[0].(map[string]any))
		Expect(sys["source_pdb"]).To(Equal(pdb))
		Expect(sys["pdb"]).To(ContainSubstring("fixed"))

		Expect(filepath.Join(out, "test_protein", "minimize", "topology.pdb")).To(BeAnExistingFile())
	})

	It("passes the pH override to the repair", func() {
		so.Config = fastConfig("")
		ph := 6.5
		so.PH = &ph
		_, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(err).NotTo(HaveOccurred())
		Expect(fixer.calls[0].opts.PH).To(Equal(6.5))
	})

	It("fails for a missing structure", func() {
		_, err := SimulateFromPDB(context.Background(), filepath.Join(tmp, "nope.pdb"), so)
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
		Expect(fixer.calls).To(BeEmpty())
	})

	It("fails for a missing config", func() {
		so.Config = filepath.Join(tmp, "nonexistent_config.yml")
		_, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	It("rejects an invalid config document", func() {
		so.Config = filepath.Join(tmp, "invalid.yml")
		Expect(os.WriteFile(so.Config, []byte("invalid: yaml: content: ["), 0644)).To(Succeed())
		_, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(errors.Is(err, config.ErrParse)).To(BeTrue())
	})

	It("accepts an empty config document", func() {
		empty := filepath.Join(tmp, "empty.yml")
		Expect(os.WriteFile(empty, nil, 0644)).To(Succeed())
		so.Config = empty
		// Fail fast in the repair so the preset production run never starts.
		fixer.err = errors.New("stop")
		_, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(err).To(MatchError("stop"))
		Expect(fixer.calls).To(HaveLen(1))
	})

	It("propagates repair failures", func() {
		fixer.err = errors.New("PDB fixing failed")
		_, err := SimulateFromPDB(context.Background(), pdb, so)
		Expect(err).To(MatchError(ContainSubstring("PDB fixing failed")))
	})
})
