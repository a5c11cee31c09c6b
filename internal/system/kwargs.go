package system

import (
	"strings"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
)

// RemoveCMMotionKey carries the removeCMMotion setting through Args. It is
// stripped before construction and applied to the built system, since not
// every model accepts it.
const RemoveCMMotionKey = "_removeCMMotion"

// Section is the config key holding construction settings.
const Section = "create_system"

// Kwargs translates the create_system section of cfg into construction
// arguments. An absent or empty section yields empty Args. A top-level
// constraints entry fills in when the section is present but has none.
// An unknown nonbondedMethod is a configuration error.
func Kwargs(cfg config.Map) (engine.Args, error) {
	args := engine.Args{}
	sec := cfg.Sub(Section)
	if len(sec) == 0 {
		return args, nil
	}

	if v, ok := pick(sec, cfg, "constraints"); ok {
		args[engine.ArgConstraints] = constraintValue(v)
	}

	if sec.Has("nonbondedMethod") {
		name := sec.String("nonbondedMethod", "")
		m, ok := LookupNonbondedMethod(name)
		if !ok {
			return nil, config.Invalidf(Section+".nonbondedMethod", "unknown nonbondedMethod %q", name)
		}
		args[engine.ArgNonbondedMethod] = m
	}

	lengths := []struct{ key, arg string }{
		{"nonbondedCutoff_nm", engine.ArgNonbondedCutoff},
		{"switchDistance_nm", engine.ArgSwitchingDistance},
	}
	for _, l := range lengths {
		if !sec.Has(l.key) {
			continue
		}
		f, ok := config.Number(sec[l.key])
		if !ok {
			return nil, config.Invalidf(Section+"."+l.key, "expected a length in nm, got %v", sec[l.key])
		}
		args[l.arg] = engine.Nanometers(f)
	}

	passthrough := []struct{ key, arg string }{
		{"useSwitchingFunction", engine.ArgUseSwitchingFunction},
		{"rigidWater", engine.ArgRigidWater},
		{"longRangeDispersionCorrection", engine.ArgDispersionCorrection},
	}
	for _, p := range passthrough {
		if sec.Has(p.key) {
			args[p.arg] = sec[p.key]
		}
	}

	if sec.Has("ewaldErrorTolerance") {
		if f, ok := config.Number(sec["ewaldErrorTolerance"]); ok {
			args[engine.ArgEwaldErrorTolerance] = f
		} else {
			args[engine.ArgEwaldErrorTolerance] = sec["ewaldErrorTolerance"]
		}
	}

	if sec.Has("hydrogenMass_amu") {
		f, ok := config.Number(sec["hydrogenMass_amu"])
		if !ok {
			return nil, config.Invalidf(Section+".hydrogenMass_amu", "expected a mass in amu, got %v", sec["hydrogenMass_amu"])
		}
		args[engine.ArgHydrogenMass] = engine.Daltons(f)
	}

	if sec.Has("removeCMMotion") {
		args[RemoveCMMotionKey] = sec.Bool("removeCMMotion", true)
	}
	return args, nil
}

func pick(sec, cfg config.Map, key string) (any, bool) {
	if sec.Has(key) {
		return sec[key], true
	}
	if cfg.Has(key) {
		return cfg[key], true
	}
	return nil, false
}

// constraintValue maps recognised constraint strings to their kind and
// passes anything else through for the engine to judge.
func constraintValue(v any) any {
	switch s := v.(type) {
	case string:
		if c, ok := ConstraintsFromString(s); ok {
			return c
		}
		return s
	case bool:
		if !s {
			return engine.ConstraintNone
		}
	}
	return v
}

// ConstraintsFromString recognises none/no/off/false and the constraint
// kinds hbonds, allbonds and hangles, case-insensitively.
func ConstraintsFromString(s string) (engine.Constraint, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no", "off", "false":
		return engine.ConstraintNone, true
	case "hbonds":
		return engine.HBonds, true
	case "allbonds":
		return engine.AllBonds, true
	case "hangles":
		return engine.HAngles, true
	}
	return engine.ConstraintNone, false
}

var nonbondedMethods = map[string]engine.NonbondedMethod{
	"nocutoff":          engine.NoCutoff,
	"cutoffnonperiodic": engine.CutoffNonPeriodic,
	"cutoffperiodic":    engine.CutoffPeriodic,
	"ewald":             engine.Ewald,
	"pme":               engine.PME,
	"ljpme":             engine.LJPME,
}

// LookupNonbondedMethod maps a method name to its engine value. Unlike
// Kwargs it reports an unknown name with ok == false instead of an error.
func LookupNonbondedMethod(name string) (engine.NonbondedMethod, bool) {
	m, ok := nonbondedMethods[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}
