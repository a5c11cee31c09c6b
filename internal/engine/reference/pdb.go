package reference

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/mdpipe/internal/engine"
)

const angstrom = 0.1 // nm

// ReadPDB parses ATOM, HETATM, CRYST1 and CONECT records. Only the first
// model of a multi-model file is read.
func ReadPDB(r io.Reader) (*engine.Structure, error) {
	top := &engine.Topology{}
	var positions []engine.Vec3
	serials := map[int]int{}
	var conect [][2]int

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
scan:
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		record := strings.TrimSpace(field(line, 0, 6))
		switch record {
		case "ATOM", "HETATM":
			atom, pos, serial, err := parseAtomRecord(line)
			if err != nil {
				return nil, fmt.Errorf("pdb line %d: %w", lineNo, err)
			}
			atom.Index = len(top.Atoms)
			atom.HetAtom = record == "HETATM"
			serials[serial] = atom.Index
			top.Atoms = append(top.Atoms, atom)
			positions = append(positions, pos)
		case "CRYST1":
			box, err := parseCryst1(line)
			if err != nil {
				return nil, fmt.Errorf("pdb line %d: %w", lineNo, err)
			}
			top.Box = box
		case "CONECT":
			conect = append(conect, parseConect(line)...)
		case "ENDMDL":
			break scan
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(top.Atoms) == 0 {
		return nil, fmt.Errorf("pdb: no atoms found")
	}

	seen := map[engine.Bond]bool{}
	for _, c := range conect {
		i, ok1 := serials[c[0]]
		j, ok2 := serials[c[1]]
		if !ok1 || !ok2 || i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		b := engine.Bond{I: i, J: j}
		if !seen[b] {
			seen[b] = true
			top.Bonds = append(top.Bonds, b)
		}
	}
	perceiveBonds(top, positions, seen)

	return &engine.Structure{Topology: top, Positions: positions, Box: top.Box.Clone()}, nil
}

func readPDBFile(path string) (*engine.Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := ReadPDB(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

func parseAtomRecord(line string) (engine.Atom, engine.Vec3, int, error) {
	serial, err := strconv.Atoi(strings.TrimSpace(field(line, 6, 11)))
	if err != nil {
		return engine.Atom{}, engine.Vec3{}, 0, fmt.Errorf("bad atom serial: %w", err)
	}
	var pos engine.Vec3
	for k, span := range [3][2]int{{30, 38}, {38, 46}, {46, 54}} {
		v, err := strconv.ParseFloat(strings.TrimSpace(field(line, span[0], span[1])), 64)
		if err != nil {
			return engine.Atom{}, engine.Vec3{}, 0, fmt.Errorf("bad coordinate: %w", err)
		}
		pos[k] = v * angstrom
	}
	resSeq, _ := strconv.Atoi(strings.TrimSpace(field(line, 22, 26)))

	atom := engine.Atom{
		Name:    strings.TrimSpace(field(line, 12, 16)),
		Residue: strings.TrimSpace(field(line, 17, 20)),
		Chain:   strings.TrimSpace(field(line, 21, 22)),
		ResSeq:  resSeq,
		Element: strings.TrimSpace(field(line, 76, 78)),
	}
	if atom.Element == "" {
		atom.Element = guessElement(atom.Name, atom.Residue)
	}
	atom.Element = normalizeSymbol(atom.Element)
	atom.Mass = lookupElement(atom.Element).mass
	return atom, pos, serial, nil
}

func parseCryst1(line string) (*engine.Box, error) {
	var lengths [3]float64
	for k, span := range [3][2]int{{6, 15}, {15, 24}, {24, 33}} {
		v, err := strconv.ParseFloat(strings.TrimSpace(field(line, span[0], span[1])), 64)
		if err != nil {
			return nil, fmt.Errorf("bad CRYST1 record: %w", err)
		}
		lengths[k] = v * angstrom
	}
	return engine.Rectangular(lengths[0], lengths[1], lengths[2]), nil
}

func parseConect(line string) [][2]int {
	from, err := strconv.Atoi(strings.TrimSpace(field(line, 6, 11)))
	if err != nil {
		return nil
	}
	var out [][2]int
	for start := 11; start+5 <= len(line); start += 5 {
		to, err := strconv.Atoi(strings.TrimSpace(field(line, start, start+5)))
		if err != nil {
			continue
		}
		out = append(out, [2]int{from, to})
	}
	return out
}

// field returns line[start:end], clipped to the line length.
func field(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

func normalizeSymbol(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// WritePDB writes positions with the given topology as a single model.
func WritePDB(w io.Writer, top *engine.Topology, positions []engine.Vec3, box *engine.Box) error {
	if len(positions) != top.NumAtoms() {
		return fmt.Errorf("pdb: %d positions for %d atoms", len(positions), top.NumAtoms())
	}
	bw := bufio.NewWriter(w)
	if box != nil {
		l := box.Lengths()
		fmt.Fprintf(bw, "CRYST1%9.3f%9.3f%9.3f%7.2f%7.2f%7.2f P 1           1\n",
			l[0]/angstrom, l[1]/angstrom, l[2]/angstrom, 90.0, 90.0, 90.0)
	}
	for i, a := range top.Atoms {
		record := "ATOM  "
		if a.HetAtom {
			record = "HETATM"
		}
		name := a.Name
		if len(name) < 4 && len(a.Element) == 1 {
			name = " " + name
		}
		p := positions[i]
		fmt.Fprintf(bw, "%s%5d %-4s %3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
			record, (i+1)%100000, name, a.Residue, a.Chain, a.ResSeq%10000,
			p[0]/angstrom, p[1]/angstrom, p[2]/angstrom, 1.0, 0.0, strings.ToUpper(a.Element))
	}
	for _, b := range top.Bonds {
		if top.Atoms[b.I].HetAtom || top.Atoms[b.J].HetAtom {
			fmt.Fprintf(bw, "CONECT%5d%5d\n", b.I+1, b.J+1)
		}
	}
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}
