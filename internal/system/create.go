package system

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/logging"
)

var unusedArgRe = regexp.MustCompile(`The argument '([^']+)' was specified to createSystem\(\) but was never used`)

// Create builds a system from model, which must be an engine.CharmmTopology,
// engine.ForceField or engine.PrebuiltTopology. A force field needs top; a
// CHARMM topology needs a bound parameter set. Any other model is
// engine.ErrUnsupportedModel.
//
// Models implementing engine.ArgumentChecker have unsupported arguments
// dropped up front. Otherwise a construction failure naming an unused
// argument drops that argument and retries; each retry has one argument
// fewer, so the loop ends after at most len(args)+1 attempts. Other
// failures are returned unchanged.
func Create(logger *log.Logger, model any, top *engine.Topology, args engine.Args) (*engine.System, error) {
	logger = logging.OrDiscard(logger)

	var build func(engine.Args) (*engine.System, error)
	switch m := model.(type) {
	case engine.CharmmTopology:
		params := m.Params()
		if params == nil || len(params.Files) == 0 {
			return nil, config.Invalidf("params", "CHARMM topology has no parameter set bound")
		}
		build = func(a engine.Args) (*engine.System, error) { return m.CreateSystemWithParams(params, a) }
	case engine.ForceField:
		if top == nil {
			return nil, config.Invalidf("topology", "force field system creation requires a topology")
		}
		build = func(a engine.Args) (*engine.System, error) { return m.CreateSystem(top, a) }
	case engine.PrebuiltTopology:
		build = m.CreateSystem
	default:
		return nil, fmt.Errorf("%w: %T", engine.ErrUnsupportedModel, model)
	}

	ctorArgs := args.Clone()
	removeCM, hasRemoveCM := ctorArgs[RemoveCMMotionKey].(bool)
	delete(ctorArgs, RemoveCMMotionKey)

	if checker, ok := model.(engine.ArgumentChecker); ok {
		for _, name := range sortedNames(ctorArgs) {
			if !checker.AcceptsArgument(name) {
				logger.Debug("model does not take argument, dropping", "arg", name)
				delete(ctorArgs, name)
			}
		}
	}

	sys, err := createWithRetry(logger, build, ctorArgs)
	if err != nil {
		return nil, err
	}
	if hasRemoveCM {
		SetCMMotionRemoval(sys, removeCM)
	}
	return sys, nil
}

func createWithRetry(logger *log.Logger, build func(engine.Args) (*engine.System, error), args engine.Args) (*engine.System, error) {
	for {
		sys, err := build(args.Clone())
		if err == nil {
			return sys, nil
		}
		m := unusedArgRe.FindStringSubmatch(err.Error())
		if m == nil {
			return nil, err
		}
		if _, ok := args[m[1]]; !ok {
			return nil, err
		}
		logger.Warn("engine did not use argument, retrying without it", "arg", m[1])
		delete(args, m[1])
	}
}

// SetCMMotionRemoval adds a center-of-mass motion remover when on and none
// exists, or removes every remover when off.
func SetCMMotionRemoval(sys *engine.System, on bool) {
	found := false
	for i := sys.NumForces() - 1; i >= 0; i-- {
		if _, ok := sys.Force(i).(*engine.CMMotionRemover); !ok {
			continue
		}
		found = true
		if !on {
			_ = sys.RemoveForce(i)
		}
	}
	if on && !found {
		sys.AddForce(&engine.CMMotionRemover{Frequency: 1})
	}
}

func sortedNames(args engine.Args) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
