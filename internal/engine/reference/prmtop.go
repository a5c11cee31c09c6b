package reference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
)

var formatRe = regexp.MustCompile(`\(\s*(\d+)\s*([aAiIeEfF])\s*(\d+)`)

// prmtopSections splits an AMBER parameter/topology file into its %FLAG
// sections, each holding fixed-width fields per its %FORMAT.
func prmtopSections(path string) (map[string][]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	sections := map[string][]string{}
	var flag string
	width := 0
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "%VERSION"), strings.HasPrefix(line, "%COMMENT"):
			continue
		case strings.HasPrefix(line, "%FLAG"):
			flag = strings.TrimSpace(strings.TrimPrefix(line, "%FLAG"))
			sections[flag] = nil
			width = 0
		case strings.HasPrefix(line, "%FORMAT"):
			m := formatRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("%s: unrecognized format %q", path, line)
			}
			width, _ = strconv.Atoi(m[3])
		default:
			if flag == "" || width == 0 {
				continue
			}
			for start := 0; start < len(line); start += width {
				v := strings.TrimSpace(field(line, start, start+width))
				if v != "" {
					sections[flag] = append(sections[flag], v)
				}
			}
		}
	}
	if _, ok := sections["POINTERS"]; !ok {
		return nil, fmt.Errorf("%s: not an AMBER prmtop (no POINTERS section)", path)
	}
	return sections, nil
}

func readPrmtop(path string) (*engine.Topology, error) {
	sec, err := prmtopSections(path)
	if err != nil {
		return nil, err
	}
	natoms, err := strconv.Atoi(sec["POINTERS"][0])
	if err != nil {
		return nil, fmt.Errorf("%s: bad POINTERS: %w", path, err)
	}
	names := sec["ATOM_NAME"]
	masses := sec["MASS"]
	if len(names) < natoms || len(masses) < natoms {
		return nil, fmt.Errorf("%s: ATOM_NAME/MASS shorter than %d atoms", path, natoms)
	}

	labels := sec["RESIDUE_LABEL"]
	pointers := make([]int, 0, len(sec["RESIDUE_POINTER"]))
	for _, p := range sec["RESIDUE_POINTER"] {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: bad RESIDUE_POINTER: %w", path, err)
		}
		pointers = append(pointers, v-1)
	}

	top := &engine.Topology{Atoms: make([]engine.Atom, natoms)}
	res := -1
	for i := 0; i < natoms; i++ {
		for res+1 < len(pointers) && pointers[res+1] <= i {
			res++
		}
		mass, err := strconv.ParseFloat(masses[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad mass for atom %d: %w", path, i+1, err)
		}
		a := engine.Atom{Index: i, Name: names[i], Mass: mass, ResSeq: res + 1}
		if res >= 0 && res < len(labels) {
			a.Residue = labels[res]
		}
		a.Element = elementFromMass(mass)
		top.Atoms[i] = a
	}

	for _, key := range []string{"BONDS_INC_HYDROGEN", "BONDS_WITHOUT_HYDROGEN"} {
		vals := sec[key]
		for k := 0; k+2 < len(vals); k += 3 {
			i, err1 := strconv.Atoi(vals[k])
			j, err2 := strconv.Atoi(vals[k+1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%s: bad %s entry", path, key)
			}
			// Indices are stored as coordinate-array offsets.
			top.Bonds = append(top.Bonds, engine.Bond{I: i / 3, J: j / 3})
		}
	}

	if box := sec["BOX_DIMENSIONS"]; len(box) >= 4 {
		var l [3]float64
		for k := range l {
			l[k], _ = strconv.ParseFloat(box[k+1], 64)
		}
		top.Box = engine.Rectangular(l[0]*angstrom, l[1]*angstrom, l[2]*angstrom)
	}
	return top, nil
}

// elementFromMass picks the element whose mass is closest to m, which is
// how topologies without atomic numbers are usually resolved.
func elementFromMass(m float64) string {
	best, bestDiff := "", 1e9
	for sym, e := range elements {
		d := e.mass - m
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = sym, d
		}
	}
	return normalizeSymbol(best)
}
