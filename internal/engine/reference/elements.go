package reference

import (
	"strings"
	"unicode"
)

// element carries the per-element parameters of the reference force field.
// Radii and sigma are in nm, masses in Da, epsilon in kJ/mol.
type element struct {
	mass     float64
	covalent float64
	sigma    float64
	epsilon  float64
}

var elements = map[string]element{
	"H":  {1.008, 0.031, 0.106, 0.066},
	"C":  {12.011, 0.076, 0.340, 0.360},
	"N":  {14.007, 0.071, 0.325, 0.711},
	"O":  {15.999, 0.066, 0.296, 0.879},
	"S":  {32.06, 0.105, 0.356, 1.046},
	"P":  {30.974, 0.107, 0.374, 0.837},
	"F":  {18.998, 0.057, 0.312, 0.255},
	"CL": {35.45, 0.102, 0.440, 0.418},
	"BR": {79.904, 0.120, 0.470, 1.339},
	"I":  {126.90, 0.139, 0.519, 1.674},
	"NA": {22.990, 0.166, 0.243, 0.365},
	"K":  {39.098, 0.203, 0.304, 0.810},
	"MG": {24.305, 0.141, 0.164, 3.660},
	"CA": {40.078, 0.176, 0.241, 0.954},
	"ZN": {65.38, 0.122, 0.196, 0.052},
	"FE": {55.845, 0.132, 0.260, 0.054},
}

var fallbackElement = element{12.011, 0.076, 0.340, 0.360}

func lookupElement(symbol string) element {
	if e, ok := elements[strings.ToUpper(symbol)]; ok {
		return e
	}
	return fallbackElement
}

// guessElement derives an element symbol from an atom name when the
// structure file carries none. Two-letter ions are recognised when the
// residue name equals the atom name.
func guessElement(atomName, residue string) string {
	name := strings.TrimSpace(atomName)
	if name == "" {
		return ""
	}
	upper := strings.ToUpper(name)
	if strings.EqualFold(strings.TrimRight(residue, "+-"), strings.TrimRight(name, "+-")) {
		sym := strings.TrimRight(upper, "+-0123456789")
		if _, ok := elements[sym]; ok {
			return sym
		}
	}
	trimmed := strings.TrimLeftFunc(upper, unicode.IsDigit)
	if trimmed == "" {
		return ""
	}
	return trimmed[:1]
}
