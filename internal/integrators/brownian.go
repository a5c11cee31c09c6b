package integrators

import (
	"math"
	"math/rand"
)

// Brownian is overdamped Langevin dynamics. Velocities are reported as
// the displacement over the step.
type Brownian struct {
	forceCache
	dt    float64
	gamma float64
	kT    float64
	rng   *rand.Rand
}

func (b *Brownian) Step(p *Particles, force ForceFunc) float64 {
	f := b.current(p, force)
	for i := range p.Pos {
		im := p.InvMass[i/3]
		if im == 0 {
			p.Vel[i] = 0
			continue
		}
		mobility := b.dt * im / b.gamma
		dx := mobility*f[i] + math.Sqrt(2*b.kT*mobility)*b.rng.NormFloat64()
		p.Pos[i] += dx
		p.Vel[i] = dx / b.dt
	}
	b.refresh(p, force)
	return b.dt
}
