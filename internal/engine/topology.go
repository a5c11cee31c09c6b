package engine

import "math"

// Vec3 is a Cartesian vector in nanometers (or nm/ps for velocities).
type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v[0] * f, v[1] * f, v[2] * f} }
func (v Vec3) Dot(o Vec3) float64   { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }
func (v Vec3) Norm() float64        { return math.Sqrt(v.Dot(v)) }

// Box holds the three periodic box vectors.
type Box [3]Vec3

// Rectangular returns an orthorhombic box with the given edge lengths.
func Rectangular(a, b, c float64) *Box {
	return &Box{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

// Volume returns the box volume in nm^3.
func (b *Box) Volume() float64 {
	a, bb, c := b[0], b[1], b[2]
	cross := Vec3{
		bb[1]*c[2] - bb[2]*c[1],
		bb[2]*c[0] - bb[0]*c[2],
		bb[0]*c[1] - bb[1]*c[0],
	}
	return math.Abs(a.Dot(cross))
}

// Lengths returns the diagonal edge lengths.
func (b *Box) Lengths() [3]float64 {
	return [3]float64{b[0][0], b[1][1], b[2][2]}
}

func (b *Box) Clone() *Box {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

type Atom struct {
	Index   int
	Name    string
	Element string
	Residue string
	ResSeq  int
	Chain   string
	Mass    float64
	HetAtom bool
}

type Bond struct {
	I, J int
}

// Topology is the static description of a molecular system.
type Topology struct {
	Atoms []Atom
	Bonds []Bond
	Box   *Box
}

func (t *Topology) NumAtoms() int { return len(t.Atoms) }

// NumResidues counts distinct (chain, residue number) pairs.
func (t *Topology) NumResidues() int {
	type key struct {
		chain string
		seq   int
	}
	seen := map[key]bool{}
	for _, a := range t.Atoms {
		seen[key{a.Chain, a.ResSeq}] = true
	}
	return len(seen)
}

// Structure is a topology with initial coordinates.
type Structure struct {
	Topology  *Topology
	Positions []Vec3
	Box       *Box
}
