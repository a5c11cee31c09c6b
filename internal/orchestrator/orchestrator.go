// Package orchestrator drives jobs: it resolves raw structures, builds one
// simulation per system and runs the stage sequence on each.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/mdpipe/internal/builder"
	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/pdbfix"
	"github.com/san-kum/mdpipe/internal/stage"
	"github.com/san-kum/mdpipe/internal/storage"
)

const (
	// DefaultOutput is the output root when none is given.
	DefaultOutput = "simulate_output"
	BuildDir      = "_build"
	ResolvedFile  = "job.resolved.yml"
	RunLogFile    = "run.log"
)

type Options struct {
	Logging  logging.Options
	Registry *Registry
	// Fixer repairs raw PDB inputs. Defaults to the pdbfixer command.
	Fixer pdbfix.Fixer
	// Parallel bounds how many systems run at once. Values below 1 mean 1.
	Parallel int
}

// RunFromYAML loads the job description at path and runs it. Missing files
// surface fs.ErrNotExist and malformed documents config.ErrParse.
func RunFromYAML(ctx context.Context, path, output string, opts Options) (string, error) {
	job, err := config.LoadJob(path)
	if err != nil {
		return "", err
	}
	return Run(ctx, job, output, opts)
}

// unit is one system under one sweep variant.
type unit struct {
	id       string
	system   config.System
	defaults config.Map
	sweep    string
}

// Run executes job under <output>/<project> and returns that directory.
// Systems run on a bounded pool; stages within a system are sequential. A
// failing system does not stop its siblings, and the first failure in
// system order is returned.
func Run(ctx context.Context, job *config.Job, output string, opts Options) (string, error) {
	if output == "" {
		output = DefaultOutput
	}
	projectDir := filepath.Join(output, job.Project)
	store := storage.New(projectDir)
	if err := store.Init(); err != nil {
		return "", err
	}
	logger, closer, err := logging.WithFile(opts.Logging, filepath.Join(projectDir, RunLogFile))
	if err != nil {
		return "", err
	}
	defer closer.Close()

	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	fixer := opts.Fixer
	if fixer == nil {
		fixer = pdbfix.New(logger)
	}

	if err := prepareSystems(ctx, logger, fixer, job, projectDir); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(projectDir, ResolvedFile), job.Document()); err != nil {
		return "", fmt.Errorf("write %s: %w", ResolvedFile, err)
	}

	units := expand(job)
	logger.Info("job start", "project", job.Project, "systems", len(job.Systems), "stages", len(job.Stages), "runs", len(units))

	parallel := max(opts.Parallel, 1)
	errs := make([]error, len(units))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if err := runSystem(ctx, logger, registry, store, job.Stages, u); err != nil {
				logger.Error("system failed", "system", u.id, "err", err)
				errs[i] = fmt.Errorf("system %s: %w", u.id, err)
			}
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return projectDir, err
		}
	}
	logger.Info("job done", "project", job.Project, "output", projectDir)
	return projectDir, nil
}

// prepareSystems repairs raw PDB systems into the build directory, one file
// per system id. Systems given as fixed_pdb, or already carrying source_pdb
// provenance, are used as-is.
func prepareSystems(ctx context.Context, logger *log.Logger, fixer pdbfix.Fixer, job *config.Job, projectDir string) error {
	opts := pdbfix.OptionsFromConfig(job.Defaults)
	for i := range job.Systems {
		sys := &job.Systems[i]
		src, ok := sys.Source.(config.PDBSource)
		if !ok || src.Fixed || sys.SourcePDB != "" {
			continue
		}
		fixed := filepath.Join(projectDir, BuildDir, sys.ID+"_fixed.pdb")
		logger.Info("repairing structure", "system", sys.ID, "input", src.Path, "output", fixed)
		if err := fixer.Fix(ctx, src.Path, fixed, opts); err != nil {
			return fmt.Errorf("system %s: %w", sys.ID, err)
		}
		sys.Source = config.PDBSource{Path: fixed, Fixed: true}
		sys.SourcePDB = src.Path
		if sys.Raw == nil {
			sys.Raw = config.Map{"id": sys.ID}
		}
		sys.Raw["pdb"] = fixed
		sys.Raw["source_pdb"] = src.Path
	}
	return nil
}

// expand lists the runs of a job: every system once, or once per sweep
// entry as <id>-sweep<N> with the entry merged over the defaults.
func expand(job *config.Job) []unit {
	variants := []config.Map{nil}
	if len(job.Sweep) > 0 {
		variants = job.Sweep
	}
	var units []unit
	for _, sys := range job.Systems {
		for n, v := range variants {
			d := config.Merge(config.Copy(job.Defaults), v)
			d = config.Merge(d, sys.Raw.Sub("overrides"))
			u := unit{id: sys.ID, system: sys, defaults: d}
			if len(job.Sweep) > 0 {
				u.id = fmt.Sprintf("%s-sweep%d", sys.ID, n+1)
				u.sweep = config.SweepLabel(v)
			}
			units = append(units, u)
		}
	}
	return units
}

func runSystem(ctx context.Context, logger *log.Logger, registry *Registry, store *storage.Store, stages []config.Stage, u unit) error {
	logger = logger.With("system", u.id)
	if u.sweep != "" {
		logger.Info("sweep variant", "overrides", u.sweep)
	}
	eng, err := registry.GetEngine(u.defaults.String("engine", DefaultEngine))
	if err != nil {
		return err
	}
	h, err := builder.New(eng, logger).Build(u.system, u.defaults, filepath.Join(store.Dir(), u.id))
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer h.Close()

	runner := stage.New(store, logger)
	for _, st := range stages {
		if _, err := runner.Run(ctx, h, u.id, st, u.defaults); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
