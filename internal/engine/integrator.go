package engine

type IntegratorKind string

const (
	Langevin         IntegratorKind = "langevin"
	LangevinMiddle   IntegratorKind = "langevin_middle"
	VariableLangevin IntegratorKind = "variable_langevin"
	VariableVerlet   IntegratorKind = "variable_verlet"
	Brownian         IntegratorKind = "brownian"
)

// IntegratorSpec describes a time-integration policy in engine units.
// Variable-step kinds use ErrorTolerance instead of StepSize.
type IntegratorSpec struct {
	Kind           IntegratorKind
	Temperature    float64
	Friction       float64
	StepSize       float64
	ErrorTolerance float64
}

// Thermostatted reports whether the integrator couples to a heat bath.
func (s IntegratorSpec) Thermostatted() bool {
	return s.Kind != VariableVerlet
}

// Variable reports whether the step size adapts to an error tolerance.
func (s IntegratorSpec) Variable() bool {
	return s.Kind == VariableLangevin || s.Kind == VariableVerlet
}

type Integrator interface {
	Spec() IntegratorSpec
}
