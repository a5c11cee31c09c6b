package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/pdbfix"
)

// AutoJobFile is the synthesized job description inside the build directory.
const AutoJobFile = "job.auto.yml"

type SimulateOptions struct {
	Options
	// Config is an optional YAML document merged over the auto config.
	Config  string
	Outdir  string
	Project string
	// PH overrides defaults.ph for the structure repair when set.
	PH *float64
}

// AutoProjectName derives the project name from a structure path.
func AutoProjectName(path string) string {
	return stem(path) + "-auto"
}

// BuildAutoConfig synthesizes the job document for a single repaired
// structure: the preset defaults and the four-stage pipeline. An empty
// project is derived from the file name.
func BuildAutoConfig(fixedPDB, project string) config.Map {
	if project == "" {
		project = AutoProjectName(fixedPDB)
	}
	return config.Map{
		"project":  project,
		"defaults": config.AutoDefaults(),
		"stages":   config.AutoStages(),
		"systems":  []any{config.Map{"id": strings.TrimSuffix(stem(fixedPDB), "_fixed"), "pdb": fixedPDB}},
		"sweep":    []any{},
	}
}

// SimulateFromPDB runs the auto-config pipeline on one structure file. The
// structure is always repaired into <outdir>/<project>/_build, the user
// document is merged over the auto config, and the resulting job is written
// to _build/job.auto.yml before it runs. The system keeps the raw input as
// source_pdb.
func SimulateFromPDB(ctx context.Context, pdbPath string, so SimulateOptions) (string, error) {
	raw, err := filepath.Abs(expandHome(pdbPath))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(raw); err != nil {
		return "", fmt.Errorf("structure: %w", err)
	}

	user := config.Map{}
	if so.Config != "" {
		user, err = config.LoadMap(expandHome(so.Config))
		if err != nil {
			return "", fmt.Errorf("config %s: %w", so.Config, err)
		}
	}

	outdir := so.Outdir
	if outdir == "" {
		outdir = DefaultOutput
	}
	project := so.Project
	if project == "" {
		project = AutoProjectName(raw)
	}
	buildDir := filepath.Join(outdir, project, BuildDir)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", err
	}
	logger := logging.New(so.Logging)
	fixer := so.Fixer
	if fixer == nil {
		fixer = pdbfix.New(logger)
	}

	fixOpts := pdbfix.OptionsFromConfig(config.Merge(config.AutoDefaults(), user.Sub("defaults")))
	if so.PH != nil {
		fixOpts.PH = *so.PH
	}
	fixed := filepath.Join(buildDir, stem(raw)+"_fixed.pdb")
	if err := fixer.Fix(ctx, raw, fixed, fixOpts); err != nil {
		return "", err
	}

	doc := config.Merge(BuildAutoConfig(fixed, project), user)
	recordSource(doc, fixed, raw)
	autoPath := filepath.Join(buildDir, AutoJobFile)
	if err := config.Save(autoPath, doc); err != nil {
		return "", fmt.Errorf("write %s: %w", AutoJobFile, err)
	}
	logger.Info("auto config written", "path", autoPath)

	so.Options.Fixer = fixer
	return RunFromYAML(ctx, autoPath, outdir, so.Options)
}

// recordSource stamps the raw input onto every system that points at the
// repaired structure.
func recordSource(doc config.Map, fixed, raw string) {
	systems, _ := doc["systems"].([]any)
	for _, item := range systems {
		var sys config.Map
		switch m := item.(type) {
		case config.Map:
			sys = m
		case map[string]any:
			sys = config.Map(m)
		default:
			continue
		}
		if sys.String("pdb", "") == fixed {
			sys["source_pdb"] = raw
		}
	}
}
