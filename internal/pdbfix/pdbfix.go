// Package pdbfix repairs raw protein structures before simulation by running
// the pdbfixer command-line tool.
package pdbfix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/toolexec"
)

const Binary = "pdbfixer"

// Options control structure repair. Heterogens and water are removed unless
// kept explicitly; KeepHeterogens implies keeping water.
type Options struct {
	PH             float64
	KeepHeterogens bool
	KeepWater      bool
}

// OptionsFromConfig reads defaults.ph and the defaults.pdbfix section.
func OptionsFromConfig(defaults config.Map) Options {
	sec := defaults.Sub("pdbfix")
	opts := Options{PH: defaults.Float("ph", config.DefaultPH)}
	if sec != nil {
		opts.PH = sec.Float("ph", opts.PH)
		opts.KeepHeterogens = sec.Bool("keep_heterogens", false)
		opts.KeepWater = sec.Bool("keep_water", false)
	}
	return opts
}

// Fixer writes a repaired copy of input to output. Output is only written on
// success.
type Fixer interface {
	Fix(ctx context.Context, input, output string, opts Options) error
}

// Command runs pdbfixer through a toolexec.Runner.
type Command struct {
	Runner toolexec.Runner
	Log    *log.Logger
}

func New(logger *log.Logger) *Command {
	return &Command{Runner: toolexec.Exec{Log: logger}, Log: logger}
}

func (c *Command) Fix(ctx context.Context, input, output string, opts Options) error {
	logger := logging.OrDiscard(c.Log)
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("pdbfix: %w", err)
	}
	if err := toolexec.Ensure(c.Runner, "install pdbfixer, e.g. mamba install -c conda-forge pdbfixer", Binary); err != nil {
		return err
	}
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	logger.Info("fixing PDB", "input", input, "ph", opts.PH)
	tmp := partialPath(output)
	if err := c.Runner.Run(ctx, dir, Binary, Args(input, tmp, opts)...); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pdbfix %s: %w", input, err)
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("pdbfix %s: no output written: %w", input, err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return err
	}
	logger.Info("wrote fixed PDB", "output", output)
	return nil
}

// partialPath keeps the extension, which pdbfixer uses to pick the output
// format.
func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

// Args builds the pdbfixer command line: add missing residues, atoms and
// hydrogens at the requested pH.
func Args(input, output string, opts Options) []string {
	keep := "none"
	switch {
	case opts.KeepHeterogens:
		keep = "all"
	case opts.KeepWater:
		keep = "water"
	}
	return []string{
		input,
		"--output=" + output,
		"--add-residues",
		"--add-atoms=all",
		"--keep-heterogens=" + keep,
		"--ph=" + strconv.FormatFloat(opts.PH, 'f', -1, 64),
	}
}
