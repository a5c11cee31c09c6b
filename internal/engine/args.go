package engine

// Construction argument names understood by CreateSystem.
const (
	ArgConstraints          = "constraints"
	ArgNonbondedMethod      = "nonbondedMethod"
	ArgNonbondedCutoff      = "nonbondedCutoff"
	ArgSwitchingDistance    = "switchingDistance"
	ArgUseSwitchingFunction = "useSwitchingFunction"
	ArgRigidWater           = "rigidWater"
	ArgDispersionCorrection = "useDispersionCorrection"
	ArgEwaldErrorTolerance  = "ewaldErrorTolerance"
	ArgHydrogenMass         = "hydrogenMass"
	ArgRemoveCMMotion       = "removeCMMotion"
)

// Args holds engine construction arguments. Values are typed: Constraint,
// NonbondedMethod, Nanometers, Daltons, bool and float64.
type Args map[string]any

func (a Args) Clone() Args {
	c := make(Args, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Nanometers is a length in engine units.
type Nanometers float64

// Daltons is a mass in engine units.
type Daltons float64

type Constraint int

const (
	ConstraintNone Constraint = iota
	HBonds
	AllBonds
	HAngles
)

func (c Constraint) String() string {
	switch c {
	case HBonds:
		return "HBonds"
	case AllBonds:
		return "AllBonds"
	case HAngles:
		return "HAngles"
	}
	return "None"
}

type NonbondedMethod int

const (
	NoCutoff NonbondedMethod = iota
	CutoffNonPeriodic
	CutoffPeriodic
	Ewald
	PME
	LJPME
)

func (m NonbondedMethod) String() string {
	switch m {
	case CutoffNonPeriodic:
		return "CutoffNonPeriodic"
	case CutoffPeriodic:
		return "CutoffPeriodic"
	case Ewald:
		return "Ewald"
	case PME:
		return "PME"
	case LJPME:
		return "LJPME"
	}
	return "NoCutoff"
}

// Periodic reports whether the method applies periodic boundary conditions.
func (m NonbondedMethod) Periodic() bool {
	return m != NoCutoff && m != CutoffNonPeriodic
}
