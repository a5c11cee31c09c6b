package integrators

import (
	"strings"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
)

const (
	DefaultName           = engine.Langevin
	DefaultErrorTolerance = 0.001
)

// errorToleranceKeys are the accepted spellings of the variable-step error
// tolerance, in priority order.
var errorToleranceKeys = []string{"error_tolerance", "errorTol"}

// FromConfig builds an integrator spec from a defaults or stage mapping.
// The integrator entry is either a bare name, taking temperature, timestep
// and friction from the top level, or a mapping with a name whose own
// fields override the top-level values.
func FromConfig(cfg config.Map) (engine.IntegratorSpec, error) {
	name := string(DefaultName)
	params := config.Map{}

	switch v := cfg["integrator"].(type) {
	case nil:
	case string:
		name = v
	default:
		sub := cfg.Sub("integrator")
		if sub == nil {
			return engine.IntegratorSpec{}, config.Invalidf("integrator", "expected a name or a mapping, got %T", v)
		}
		params = sub
		name = sub.String("name", name)
	}

	temperature := pick(params, cfg, "temperature_K", config.DefaultTemperatureK)
	timestepFs := pick(params, cfg, "timestep_fs", config.DefaultTimestepFs)
	friction := pick(params, cfg, "friction_ps", config.DefaultFrictionPerPs)
	tolerance := errorTolerance(params, cfg)

	spec := engine.IntegratorSpec{Kind: engine.IntegratorKind(strings.ToLower(strings.TrimSpace(name)))}
	switch spec.Kind {
	case engine.Langevin, engine.LangevinMiddle, engine.Brownian:
		spec.Temperature = temperature
		spec.Friction = friction
		spec.StepSize = femtoToPico(timestepFs)
	case engine.VariableLangevin:
		spec.Temperature = temperature
		spec.Friction = friction
		spec.ErrorTolerance = tolerance
	case engine.VariableVerlet:
		spec.ErrorTolerance = tolerance
	default:
		return engine.IntegratorSpec{}, config.Invalidf("integrator", "unknown integrator %q", name)
	}

	if spec.StepSize < 0 || spec.ErrorTolerance < 0 || spec.Friction < 0 || spec.Temperature < 0 {
		return engine.IntegratorSpec{}, config.Invalidf("integrator", "%s: negative parameter", spec.Kind)
	}
	return spec, nil
}

func pick(params, cfg config.Map, key string, def float64) float64 {
	if params.Has(key) {
		return params.Float(key, def)
	}
	return cfg.Float(key, def)
}

func errorTolerance(params, cfg config.Map) float64 {
	for _, src := range []config.Map{params, cfg} {
		for _, key := range errorToleranceKeys {
			if src.Has(key) {
				return src.Float(key, DefaultErrorTolerance)
			}
		}
	}
	return DefaultErrorTolerance
}

func femtoToPico(fs float64) float64 { return fs / 1000 }
