package reference

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/mdpipe/internal/compute"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/integrators"
)

// barToKJMolNm3 converts bar to kJ/mol/nm^3.
const barToKJMolNm3 = 0.0602214076

const (
	nanCheckInterval   = 100
	barostatAdjustment = 10
	minimizeStartStep  = 0.01 // nm
	minimizeMinStep    = 1e-7
)

var errNaN = errors.New("reference: particle coordinate is NaN")

type simContext struct {
	top      *engine.Topology
	sys      *engine.System
	spec     engine.IntegratorSpec
	platform *platform
	backend  compute.Backend
	stepper  integrators.Stepper
	rng      *rand.Rand

	p    integrators.Particles
	box  *engine.Box
	step int64
	time float64

	pair      compute.PairParams
	usePair   bool
	bonds     []engine.BondParams
	cmmFreq   int
	barostat  *engine.MonteCarloBarostat
	excluded  map[[2]int]bool
	molecules [][]int

	volumeDelta float64
	attempted   int
	accepted    int
}

func newContext(top *engine.Topology, sys *engine.System, spec engine.IntegratorSpec, plat *platform, props map[string]string, initial *engine.Structure) (*simContext, error) {
	if initial == nil || len(initial.Positions) != sys.NumParticles() {
		return nil, fmt.Errorf("reference: initial structure does not match the system's %d particles", sys.NumParticles())
	}
	backend, err := plat.backend(props)
	if err != nil {
		return nil, err
	}
	seed := int64(1)
	if s, ok := props["RandomSeed"]; ok {
		if _, err := fmt.Sscan(s, &seed); err != nil {
			return nil, fmt.Errorf("reference: invalid RandomSeed %q", s)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	stepper, err := integrators.New(spec, rng)
	if err != nil {
		return nil, err
	}

	n := sys.NumParticles()
	c := &simContext{
		top:      top,
		sys:      sys,
		spec:     spec,
		platform: plat,
		backend:  backend,
		stepper:  stepper,
		rng:      rng,
		p: integrators.Particles{
			Pos:     make([]float64, 3*n),
			Vel:     make([]float64, 3*n),
			InvMass: make([]float64, n),
		},
		box:       initial.Box.Clone(),
		excluded:  exclusions(top),
		molecules: groupResidues(top),
	}
	if c.box == nil {
		c.box = sys.Box.Clone()
	}
	for i, pos := range initial.Positions {
		copy(c.p.Pos[3*i:3*i+3], pos[:])
	}
	if err := c.Reinitialize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *simContext) Platform() engine.Platform { return c.platform }

// Reinitialize re-reads the system's force set, keeping coordinates,
// velocities and the box.
func (c *simContext) Reinitialize() error {
	for i, m := range c.sys.Masses {
		if m > 0 {
			c.p.InvMass[i] = 1 / m
		} else {
			c.p.InvMass[i] = 0
		}
	}

	c.usePair, c.bonds, c.cmmFreq, c.barostat = false, nil, 0, nil
	for _, f := range c.sys.Forces {
		switch f := f.(type) {
		case *engine.NonbondedForce:
			c.usePair = true
			c.pair = compute.PairParams{
				Sigma:    f.Sigma,
				Epsilon:  f.Epsilon,
				Excluded: c.isExcluded,
			}
			if f.Method != engine.NoCutoff {
				c.pair.Cutoff = f.Cutoff
			}
			if f.Method.Periodic() && c.box != nil {
				c.pair.Box = c.box.Lengths()
			}
		case *engine.HarmonicBondForce:
			c.bonds = append(c.bonds, f.Bonds...)
		case *engine.CMMotionRemover:
			c.cmmFreq = f.Frequency
		case *engine.MonteCarloBarostat:
			if c.box == nil {
				return fmt.Errorf("reference: %s requires periodic box vectors", f.Name())
			}
			c.barostat = f
			if c.volumeDelta == 0 {
				c.volumeDelta = 0.01 * c.box.Volume()
			}
		}
		// Forces contributed by plugins are not evaluated here.
	}
	c.stepper.Reset()
	return nil
}

func (c *simContext) SetIntegrator(integ engine.Integrator) error {
	stepper, err := integrators.New(integ.Spec(), c.rng)
	if err != nil {
		return err
	}
	c.spec, c.stepper = integ.Spec(), stepper
	return nil
}

func (c *simContext) isExcluded(i, j int) bool { return c.excluded[[2]int{i, j}] }

// exclusions lists 1-2 and 1-3 pairs (i < j).
func exclusions(top *engine.Topology) map[[2]int]bool {
	neighbors := make([][]int, top.NumAtoms())
	out := map[[2]int]bool{}
	add := func(i, j int) {
		if i == j {
			return
		}
		if i > j {
			i, j = j, i
		}
		out[[2]int{i, j}] = true
	}
	for _, b := range top.Bonds {
		neighbors[b.I] = append(neighbors[b.I], b.J)
		neighbors[b.J] = append(neighbors[b.J], b.I)
		add(b.I, b.J)
	}
	for _, nb := range neighbors {
		for x, i := range nb {
			for _, j := range nb[x+1:] {
				add(i, j)
			}
		}
	}
	return out
}

// forces is the integrators.ForceFunc of this context.
func (c *simContext) forces(pos, f []float64) float64 {
	for i := range f {
		f[i] = 0
	}
	energy := 0.0
	if c.usePair {
		energy += c.backend.PairForces(pos, c.pair, f)
	}
	box := c.pair.Box
	for _, b := range c.bonds {
		var d [3]float64
		for k := 0; k < 3; k++ {
			d[k] = pos[3*b.J+k] - pos[3*b.I+k]
			if box[k] > 0 {
				d[k] -= box[k] * math.Floor(d[k]/box[k]+0.5)
			}
		}
		r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if r == 0 {
			continue
		}
		dr := r - b.Length
		energy += 0.5 * b.K * dr * dr
		scale := -b.K * dr / r
		for k := 0; k < 3; k++ {
			f[3*b.J+k] += scale * d[k]
			f[3*b.I+k] -= scale * d[k]
		}
	}
	return energy
}

func (c *simContext) Step(n int) error {
	for i := 0; i < n; i++ {
		c.time += c.stepper.Step(&c.p, c.forces)
		c.step++
		if c.cmmFreq > 0 && c.step%int64(c.cmmFreq) == 0 {
			c.removeCMMotion()
		}
		if c.barostat != nil && c.barostat.Frequency > 0 && c.step%int64(c.barostat.Frequency) == 0 {
			c.volumeMove()
		}
		if c.step%nanCheckInterval == 0 || i == n-1 {
			if hasNaN(c.p.Pos) {
				return fmt.Errorf("%w at step %d", errNaN, c.step)
			}
		}
	}
	return nil
}

func (c *simContext) removeCMMotion() {
	var mom [3]float64
	total := 0.0
	for i, im := range c.p.InvMass {
		if im == 0 {
			continue
		}
		m := 1 / im
		total += m
		for k := 0; k < 3; k++ {
			mom[k] += m * c.p.Vel[3*i+k]
		}
	}
	if total == 0 {
		return
	}
	for i, im := range c.p.InvMass {
		if im == 0 {
			continue
		}
		for k := 0; k < 3; k++ {
			c.p.Vel[3*i+k] -= mom[k] / total
		}
	}
}

// volumeMove attempts one Monte Carlo box rescaling, moving molecule
// centers so bonded geometry is preserved.
func (c *simContext) volumeMove() {
	kT := integrators.BoltzmannKJ * c.barostat.Temperature
	if kT == 0 {
		kT = integrators.BoltzmannKJ * c.spec.Temperature
	}
	scratch := make([]float64, len(c.p.Pos))
	before := c.forces(c.p.Pos, scratch)

	volume := c.box.Volume()
	dv := c.volumeDelta * (2*c.rng.Float64() - 1)
	newVolume := volume + dv
	if newVolume <= 0 {
		return
	}
	scale := math.Cbrt(newVolume / volume)

	saved := append([]float64(nil), c.p.Pos...)
	oldBox := c.box.Clone()
	c.scaleMolecules(scale)
	after := c.forces(c.p.Pos, scratch)

	pressure := c.barostat.Pressure * barToKJMolNm3
	w := after - before + pressure*dv - float64(len(c.molecules))*kT*math.Log(newVolume/volume)
	c.attempted++
	if w > 0 && c.rng.Float64() > math.Exp(-w/kT) {
		copy(c.p.Pos, saved)
		c.box = oldBox
		c.pair.Box = c.periodicLengths()
	} else {
		c.accepted++
	}
	c.stepper.Reset()

	if c.attempted >= barostatAdjustment {
		switch rate := float64(c.accepted) / float64(c.attempted); {
		case rate < 0.25:
			c.volumeDelta /= 1.1
		case rate > 0.75:
			c.volumeDelta = math.Min(c.volumeDelta*1.1, 0.3*c.box.Volume())
		}
		c.attempted, c.accepted = 0, 0
	}
}

func (c *simContext) scaleMolecules(scale float64) {
	for _, mol := range c.molecules {
		var center [3]float64
		for _, i := range mol {
			for k := 0; k < 3; k++ {
				center[k] += c.p.Pos[3*i+k]
			}
		}
		for k := range center {
			center[k] /= float64(len(mol))
		}
		for _, i := range mol {
			for k := 0; k < 3; k++ {
				c.p.Pos[3*i+k] += center[k] * (scale - 1)
			}
		}
	}
	for v := range c.box {
		c.box[v] = c.box[v].Scale(scale)
	}
	c.pair.Box = c.periodicLengths()
}

func (c *simContext) periodicLengths() [3]float64 {
	if c.pair.Box == ([3]float64{}) || c.box == nil {
		return c.pair.Box
	}
	return c.box.Lengths()
}

// Minimize runs steepest descent until the RMS force (PerLength) or the
// energy change per accepted step drops below tol, or maxIterations is
// reached. maxIterations <= 0 means no limit.
func (c *simContext) Minimize(tol engine.Tolerance, maxIterations int) error {
	n := len(c.p.Pos)
	f := make([]float64, n)
	trialF := make([]float64, n)
	trial := make([]float64, n)
	energy := c.forces(c.p.Pos, f)
	step := minimizeStartStep

	for iter := 0; maxIterations <= 0 || iter < maxIterations; iter++ {
		rms, fmax := forceNorms(f, c.p.InvMass)
		if tol.PerLength && rms < tol.Value {
			break
		}
		if fmax == 0 {
			break
		}
		for i := range trial {
			if c.p.InvMass[i/3] == 0 {
				trial[i] = c.p.Pos[i]
				continue
			}
			trial[i] = c.p.Pos[i] + step*f[i]/fmax
		}
		next := c.forces(trial, trialF)
		if next < energy {
			delta := energy - next
			copy(c.p.Pos, trial)
			f, trialF = trialF, f
			energy = next
			step *= 1.2
			if !tol.PerLength && delta < tol.Value {
				break
			}
			continue
		}
		step *= 0.5
		if step < minimizeMinStep {
			break
		}
	}
	c.stepper.Reset()
	if hasNaN(c.p.Pos) {
		return errNaN
	}
	return nil
}

func forceNorms(f, invMass []float64) (rms, peak float64) {
	sum, count := 0.0, 0
	for i := 0; i+2 < len(f); i += 3 {
		if invMass[i/3] == 0 {
			continue
		}
		m2 := f[i]*f[i] + f[i+1]*f[i+1] + f[i+2]*f[i+2]
		sum += m2
		count++
		if m := math.Sqrt(m2); m > peak {
			peak = m
		}
	}
	if count == 0 {
		return 0, 0
	}
	return math.Sqrt(sum / float64(count)), peak
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func (c *simContext) State() (engine.State, error) {
	n := c.sys.NumParticles()
	st := engine.State{
		Step:       c.step,
		Time:       c.time,
		Positions:  make([]engine.Vec3, n),
		Velocities: make([]engine.Vec3, n),
		Box:        c.box.Clone(),
		Kinetic:    c.p.KineticEnergy(),
	}
	for i := 0; i < n; i++ {
		copy(st.Positions[i][:], c.p.Pos[3*i:3*i+3])
		copy(st.Velocities[i][:], c.p.Vel[3*i:3*i+3])
	}
	st.Potential = c.forces(c.p.Pos, make([]float64, len(c.p.Pos)))
	return st, nil
}

func (c *simContext) Close() error {
	c.backend.Cleanup()
	return nil
}
