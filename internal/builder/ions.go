package builder

import (
	"strings"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
)

const (
	DefaultPositiveIon = "Na+"
	DefaultNegativeIon = "Cl-"
)

var salts = map[string][2]string{
	"nacl":  {"Na+", "Cl-"},
	"kcl":   {"K+", "Cl-"},
	"licl":  {"Li+", "Cl-"},
	"cscl":  {"Cs+", "Cl-"},
	"rbcl":  {"Rb+", "Cl-"},
	"nabr":  {"Na+", "Br-"},
	"kbr":   {"K+", "Br-"},
	"naf":   {"Na+", "F-"},
	"nai":   {"Na+", "I-"},
	"cacl2": {"Ca2+", "Cl-"},
	"mgcl2": {"Mg2+", "Cl-"},
}

// ParseIons reads defaults.ions, either a {positiveIon, negativeIon} mapping
// or a salt name such as "NaCl". Unknown salts fall back to Na+/Cl-.
func ParseIons(defaults config.Map) (positive, negative string) {
	if m := defaults.Sub("ions"); m != nil {
		return m.String("positiveIon", DefaultPositiveIon), m.String("negativeIon", DefaultNegativeIon)
	}
	if s, ok := defaults["ions"].(string); ok {
		if pair, ok := salts[strings.ToLower(strings.TrimSpace(s))]; ok {
			return pair[0], pair[1]
		}
	}
	return DefaultPositiveIon, DefaultNegativeIon
}

// SolventOptions collects the solvation settings from defaults.
func SolventOptions(defaults config.Map) engine.SolventOptions {
	pos, neg := ParseIons(defaults)
	return engine.SolventOptions{
		PaddingNm:     defaults.Float("box_padding_nm", 1.0),
		IonicStrength: defaults.Float("ionic_strength_molar", 0.15),
		PositiveIon:   pos,
		NegativeIon:   neg,
		Neutralize:    defaults.Bool("neutralize", true),
	}
}
