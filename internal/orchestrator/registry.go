package orchestrator

import (
	"sort"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/engine/reference"
)

// DefaultEngine is used when a job's defaults name no engine.
const DefaultEngine = "openmm"

// Registry maps the defaults.engine name onto engine constructors. Each
// system gets its own engine instance.
type Registry struct {
	engines map[string]func() engine.Engine
}

func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]func() engine.Engine)}
	r.engines["openmm"] = func() engine.Engine { return reference.New("openmm") }
	r.engines["reference"] = func() engine.Engine { return reference.New("reference") }
	return r
}

func (r *Registry) Register(name string, fn func() engine.Engine) {
	r.engines[name] = fn
}

func (r *Registry) GetEngine(name string) (engine.Engine, error) {
	fn, ok := r.engines[name]
	if !ok {
		return nil, config.Invalidf("engine", "unknown engine: %s (known: %v)", name, r.ListEngines())
	}
	return fn(), nil
}

func (r *Registry) ListEngines() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
