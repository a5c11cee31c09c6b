// Package platform chooses the compute platform a simulation runs on.
package platform

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/logging"
)

// Auto requests the fastest platform that instantiates.
const Auto = "auto"

// Priority is the order tried for Auto.
var Priority = []string{"CUDA", "OpenCL", "CPU"}

// Select returns the named platform. For Auto (or an empty name) each entry
// of Priority is tried in turn and the engine default is returned when none
// instantiates. An explicit name is tried alone and its error returned.
func Select(logger *log.Logger, eng engine.Engine, name string) (engine.Platform, error) {
	logger = logging.OrDiscard(logger)
	name = strings.TrimSpace(name)

	if name != "" && !strings.EqualFold(name, Auto) {
		p, err := eng.Platform(name)
		if err != nil {
			return nil, err
		}
		logger.Info("platform selected", "platform", p.Name())
		return p, nil
	}

	var errs []error
	for _, candidate := range Priority {
		p, err := eng.Platform(candidate)
		if err == nil {
			logger.Info("platform selected", "platform", p.Name(), "mode", Auto)
			return p, nil
		}
		errs = append(errs, err)
		logger.Debug("platform unavailable", "platform", candidate, "err", err)
	}

	p := eng.DefaultPlatform()
	logger.Warn("no preferred platform available, using engine default",
		"platform", p.Name(), "err", errors.Join(errs...))
	return p, nil
}
