package reference

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
)

// readGRO reads a GROMACS coordinate file. Coordinates are already in nm.
func readGRO(path string) (*engine.Structure, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("%s: truncated gro file", path)
	}
	n, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("%s: bad atom count: %w", path, err)
	}
	if len(lines) < n+3 {
		return nil, fmt.Errorf("%s: expected %d atoms, file has %d lines", path, n, len(lines))
	}

	top := &engine.Topology{}
	positions := make([]engine.Vec3, n)
	for i := 0; i < n; i++ {
		line := lines[2+i]
		resSeq, _ := strconv.Atoi(strings.TrimSpace(field(line, 0, 5)))
		atom := engine.Atom{
			Index:   i,
			ResSeq:  resSeq,
			Residue: strings.TrimSpace(field(line, 5, 10)),
			Name:    strings.TrimSpace(field(line, 10, 15)),
		}
		atom.Element = normalizeSymbol(guessElement(atom.Name, atom.Residue))
		atom.Mass = lookupElement(atom.Element).mass
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(field(line, 20+8*k, 28+8*k)), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: atom %d: bad coordinate: %w", path, i+1, err)
			}
			positions[i][k] = v
		}
		top.Atoms = append(top.Atoms, atom)
	}

	boxFields := strings.Fields(lines[2+n])
	if len(boxFields) >= 3 {
		var l [3]float64
		for k := range l {
			l[k], err = strconv.ParseFloat(boxFields[k], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad box line: %w", path, err)
			}
		}
		top.Box = engine.Rectangular(l[0], l[1], l[2])
	}

	perceiveBonds(top, positions, map[engine.Bond]bool{})
	return &engine.Structure{Topology: top, Positions: positions, Box: top.Box.Clone()}, nil
}

// readInpcrd reads AMBER ASCII restart coordinates (inpcrd or rst7). The
// values are in Angstrom, six 12-column fields per line.
func readInpcrd(path string, natoms int) ([]engine.Vec3, *engine.Box, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) < 2 {
		return nil, nil, fmt.Errorf("%s: truncated coordinate file", path)
	}
	header := strings.Fields(lines[1])
	if len(header) == 0 {
		return nil, nil, fmt.Errorf("%s: missing atom count", path)
	}
	n, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: bad atom count: %w", path, err)
	}
	if natoms >= 0 && n != natoms {
		return nil, nil, fmt.Errorf("%s: %d atoms in coordinates, %d in topology", path, n, natoms)
	}

	var values []float64
	for _, line := range lines[2:] {
		for start := 0; start < len(line); start += 12 {
			s := strings.TrimSpace(field(line, start, start+12))
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: bad value %q: %w", path, s, err)
			}
			values = append(values, v)
		}
	}
	if len(values) < 3*n {
		return nil, nil, fmt.Errorf("%s: expected %d coordinates, found %d", path, 3*n, len(values))
	}

	positions := make([]engine.Vec3, n)
	for i := range positions {
		for k := 0; k < 3; k++ {
			positions[i][k] = values[3*i+k] * angstrom
		}
	}

	// Optional velocities occupy another 3n values; a trailing group of six
	// is the box.
	var box *engine.Box
	rest := values[3*n:]
	if len(rest) == 6 || len(rest) == 3*n+6 {
		b := rest[len(rest)-6:]
		box = engine.Rectangular(b[0]*angstrom, b[1]*angstrom, b[2]*angstrom)
	}
	return positions, box, nil
}

// readCRD reads a CHARMM coordinate file (standard or EXT format).
func readCRD(path string) ([]engine.Vec3, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	i := 0
	for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "*") {
		i++
	}
	if i >= len(lines) {
		return nil, fmt.Errorf("%s: missing atom count", path)
	}
	header := strings.Fields(lines[i])
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: missing atom count", path)
	}
	n, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("%s: bad atom count: %w", path, err)
	}
	if len(lines) < i+1+n {
		return nil, fmt.Errorf("%s: expected %d atoms", path, n)
	}
	positions := make([]engine.Vec3, n)
	for a := 0; a < n; a++ {
		f := strings.Fields(lines[i+1+a])
		if len(f) < 7 {
			return nil, fmt.Errorf("%s: atom %d: short record", path, a+1)
		}
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(f[4+k], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: atom %d: bad coordinate: %w", path, a+1, err)
			}
			positions[a][k] = v * angstrom
		}
	}
	return positions, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
