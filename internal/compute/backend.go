package compute

// PairParams describes a Lennard-Jones pair term over flat xyz arrays.
type PairParams struct {
	Sigma   []float64
	Epsilon []float64
	// Cutoff in nm; zero disables the cutoff.
	Cutoff float64
	// Box edge lengths for minimum-image wrapping; zeros disable periodicity.
	Box [3]float64
	// Excluded reports pairs (i < j) that do not interact.
	Excluded func(i, j int) bool
}

type Backend interface {
	Name() string
	Available() bool
	// PairForces accumulates pair forces into f (kJ/mol/nm) and returns the
	// pair potential energy (kJ/mol). pos and f are flat xyz arrays.
	PairForces(pos []float64, p PairParams, f []float64) float64
	Cleanup()
}

// AutoSelectBackend returns the fastest available backend.
func AutoSelectBackend() Backend {
	for _, b := range []Backend{NewCUDABackend(), NewOpenCLBackend()} {
		if b.Available() {
			return b
		}
	}
	return NewCPUBackend()
}

// minClamp bounds the pair distance from below, in units of sigma, so that
// overlapping input structures produce finite forces.
const minClamp = 0.6

func pairTerm(pos []float64, p PairParams, i, j int) (e float64, fx, fy, fz float64, ok bool) {
	if p.Excluded != nil && p.Excluded(i, j) {
		return 0, 0, 0, 0, false
	}
	dx := pos[j*3] - pos[i*3]
	dy := pos[j*3+1] - pos[i*3+1]
	dz := pos[j*3+2] - pos[i*3+2]
	if p.Box[0] > 0 {
		dx -= p.Box[0] * round(dx/p.Box[0])
		dy -= p.Box[1] * round(dy/p.Box[1])
		dz -= p.Box[2] * round(dz/p.Box[2])
	}
	r2 := dx*dx + dy*dy + dz*dz
	if p.Cutoff > 0 && r2 > p.Cutoff*p.Cutoff {
		return 0, 0, 0, 0, false
	}

	sigma := 0.5 * (p.Sigma[i] + p.Sigma[j])
	eps := sqrt(p.Epsilon[i] * p.Epsilon[j])
	if eps == 0 {
		return 0, 0, 0, 0, false
	}
	rmin := minClamp * sigma
	if r2 < rmin*rmin {
		r2 = rmin * rmin
	}
	if r2 == 0 {
		return 0, 0, 0, 0, false
	}

	s2 := sigma * sigma / r2
	s6 := s2 * s2 * s2
	s12 := s6 * s6
	e = 4 * eps * (s12 - s6)
	// Force on j along +d; i receives the opposite.
	fOverR := 24 * eps * (2*s12 - s6) / r2
	return e, fOverR * dx, fOverR * dy, fOverR * dz, true
}
