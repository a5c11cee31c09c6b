package reference

import "github.com/san-kum/mdpipe/internal/engine"

const bondTolerance = 1.2

var solventResidues = map[string]bool{"HOH": true, "WAT": true, "SOL": true, "TIP3": true}

// perceiveBonds adds covalent bonds inferred from interatomic distances.
// Pairs are considered within a residue and between sequential residues of
// the same chain; solvent and single-atom residues only bond internally.
func perceiveBonds(top *engine.Topology, positions []engine.Vec3, seen map[engine.Bond]bool) {
	residues := groupResidues(top)
	for r, atoms := range residues {
		for x, i := range atoms {
			for _, j := range atoms[x+1:] {
				tryBond(top, positions, seen, i, j)
			}
		}
		if r+1 >= len(residues) || !linkable(top, atoms, residues[r+1]) {
			continue
		}
		for _, i := range atoms {
			for _, j := range residues[r+1] {
				tryBond(top, positions, seen, i, j)
			}
		}
	}
}

func groupResidues(top *engine.Topology) [][]int {
	var out [][]int
	for i, a := range top.Atoms {
		if i > 0 {
			prev := top.Atoms[i-1]
			if prev.Chain == a.Chain && prev.ResSeq == a.ResSeq && prev.Residue == a.Residue {
				out[len(out)-1] = append(out[len(out)-1], i)
				continue
			}
		}
		out = append(out, []int{i})
	}
	return out
}

func linkable(top *engine.Topology, a, b []int) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	first, next := top.Atoms[a[0]], top.Atoms[b[0]]
	if solventResidues[first.Residue] || solventResidues[next.Residue] {
		return false
	}
	return first.Chain == next.Chain && next.ResSeq-first.ResSeq <= 1
}

func tryBond(top *engine.Topology, positions []engine.Vec3, seen map[engine.Bond]bool, i, j int) {
	if i > j {
		i, j = j, i
	}
	b := engine.Bond{I: i, J: j}
	if seen[b] {
		return
	}
	ei, ej := top.Atoms[i].Element, top.Atoms[j].Element
	if ei == "H" && ej == "H" {
		return
	}
	limit := bondTolerance * (lookupElement(ei).covalent + lookupElement(ej).covalent)
	if positions[i].Sub(positions[j]).Norm() > limit {
		return
	}
	seen[b] = true
	top.Bonds = append(top.Bonds, b)
}
