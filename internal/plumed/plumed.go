// Package plumed attaches PLUMED collective-variable scripts to a simulation.
package plumed

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/sim"
)

const (
	Section             = "plumed"
	DefaultLogFrequency = 100
)

var fileArg = regexp.MustCompile(`FILE=(\S+)`)

// Force carries a PLUMED script into the engine. Engines without PLUMED
// support keep it in the force list and ignore it.
type Force struct {
	Script       string
	ScriptPath   string
	LogFrequency int
}

func (*Force) Name() string { return "PlumedForce" }

// MergeConfig overlays the stage's plumed keys on the defaults' plumed keys.
// Unlike config.Merge this is one level deep: a stage value replaces the
// default value wholesale.
func MergeConfig(defaults, stage config.Map) config.Map {
	out := config.Map{}
	for k, v := range defaults.Sub(Section) {
		out[k] = v
	}
	for k, v := range stage.Sub(Section) {
		out[k] = v
	}
	return out
}

// AdjustPaths points every FILE= target at stageDir, keeping the base name.
func AdjustPaths(script, stageDir string) string {
	lines := strings.Split(script, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "FILE=") {
			continue
		}
		m := fileArg.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := filepath.ToSlash(filepath.Join(stageDir, filepath.Base(m[1])))
		lines[i] = strings.ReplaceAll(line, m[1], target)
	}
	return strings.Join(lines, "\n")
}

// Attach adds a PLUMED force to the handle's system when cfg enables it and
// reinitializes the context. It returns nil when disabled or when no script
// is configured. The adjusted script is saved as plumed_<name> in stageDir.
func Attach(logger *log.Logger, h *sim.Handle, cfg config.Map, stageDir string) (*Force, error) {
	logger = logging.OrDiscard(logger)
	if !cfg.Bool("enabled", false) {
		return nil, nil
	}
	scriptPath := cfg.String("script", "")
	if scriptPath == "" {
		logger.Warn("PLUMED enabled but no script provided; skipping")
		return nil, nil
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("PLUMED script: %w", err)
	}

	script := AdjustPaths(string(data), stageDir)
	f := &Force{
		Script:       script,
		ScriptPath:   scriptPath,
		LogFrequency: cfg.Int("log_frequency", DefaultLogFrequency),
	}
	h.System.AddForce(f)
	if err := h.Context.Reinitialize(); err != nil {
		return nil, fmt.Errorf("attach PLUMED force: %w", err)
	}
	logger.Info("PLUMED enabled", "script", filepath.Base(scriptPath), "log_every", f.LogFrequency)

	adjusted := filepath.Join(stageDir, "plumed_"+filepath.Base(scriptPath))
	if err := os.WriteFile(adjusted, []byte(script), 0644); err != nil {
		return nil, err
	}
	logger.Debug("adjusted PLUMED script saved", "path", adjusted)
	return f, nil
}

// Detach removes f from the handle's system, if present.
func Detach(h *sim.Handle, f *Force) error {
	if f == nil {
		return nil
	}
	for i := 0; i < h.System.NumForces(); i++ {
		if g, ok := h.System.Force(i).(*Force); ok && g == f {
			if err := h.System.RemoveForce(i); err != nil {
				return err
			}
			return h.Context.Reinitialize()
		}
	}
	return nil
}
