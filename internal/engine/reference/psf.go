package reference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
)

// readPSF reads the atom and bond sections of a CHARMM/X-PLOR PSF.
func readPSF(path string) (*engine.Topology, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "PSF") {
		return nil, fmt.Errorf("%s: not a PSF file", path)
	}

	top := &engine.Topology{}
	for i := 1; i < len(lines); i++ {
		count, title, ok := psfSection(lines[i])
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(title, "!NATOM"):
			if i+count >= len(lines) {
				return nil, fmt.Errorf("%s: truncated atom section", path)
			}
			for a := 0; a < count; a++ {
				f := strings.Fields(lines[i+1+a])
				if len(f) < 8 {
					return nil, fmt.Errorf("%s: atom %d: short record", path, a+1)
				}
				resSeq, _ := strconv.Atoi(f[2])
				mass, err := strconv.ParseFloat(f[7], 64)
				if err != nil {
					return nil, fmt.Errorf("%s: atom %d: bad mass: %w", path, a+1, err)
				}
				top.Atoms = append(top.Atoms, engine.Atom{
					Index:   a,
					Chain:   f[1],
					ResSeq:  resSeq,
					Residue: f[3],
					Name:    f[4],
					Mass:    mass,
					Element: elementFromMass(mass),
				})
			}
			i += count
		case strings.HasPrefix(title, "!NBOND"):
			var ids []int
			for j := i + 1; j < len(lines) && len(ids) < 2*count; j++ {
				for _, s := range strings.Fields(lines[j]) {
					v, err := strconv.Atoi(s)
					if err != nil {
						return nil, fmt.Errorf("%s: bad bond index %q", path, s)
					}
					ids = append(ids, v-1)
				}
			}
			for k := 0; k+1 < len(ids) && k < 2*count; k += 2 {
				top.Bonds = append(top.Bonds, engine.Bond{I: ids[k], J: ids[k+1]})
			}
			i = len(lines)
		}
	}
	if len(top.Atoms) == 0 {
		return nil, fmt.Errorf("%s: no atoms", path)
	}
	return top, nil
}

func psfSection(line string) (int, string, bool) {
	f := strings.Fields(line)
	if len(f) < 2 || !strings.HasPrefix(f[1], "!") {
		return 0, "", false
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, "", false
	}
	return n, f[1], true
}
