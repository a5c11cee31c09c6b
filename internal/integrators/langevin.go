package integrators

import (
	"math"
	"math/rand"
)

// Langevin is a leapfrog Langevin integrator. Velocities lag positions by
// half a step.
type Langevin struct {
	forceCache
	dt    float64
	gamma float64
	kT    float64
	rng   *rand.Rand
}

func (l *Langevin) Step(p *Particles, force ForceFunc) float64 {
	f := l.current(p, force)
	a := math.Exp(-l.gamma * l.dt)
	drift := l.dt
	if l.gamma > 0 {
		drift = (1 - a) / l.gamma
	}
	noise := math.Sqrt(1 - a*a)

	for i := range p.Pos {
		im := p.InvMass[i/3]
		if im == 0 {
			p.Vel[i] = 0
			continue
		}
		p.Vel[i] = a*p.Vel[i] + drift*f[i]*im + noise*math.Sqrt(l.kT*im)*l.rng.NormFloat64()
		p.Pos[i] += p.Vel[i] * l.dt
	}
	l.refresh(p, force)
	return l.dt
}

// LangevinMiddle splits each step as kick, drift, thermostat, drift, kick.
// With zero friction it reduces to velocity Verlet.
type LangevinMiddle struct {
	forceCache
	dt    float64
	gamma float64
	kT    float64
	rng   *rand.Rand
}

func (l *LangevinMiddle) Step(p *Particles, force ForceFunc) float64 {
	l.advance(p, force, l.dt)
	return l.dt
}

func (l *LangevinMiddle) advance(p *Particles, force ForceFunc, dt float64) {
	f := l.current(p, force)
	half := 0.5 * dt

	for i := range p.Pos {
		im := p.InvMass[i/3]
		p.Vel[i] += half * f[i] * im
		p.Pos[i] += half * p.Vel[i]
	}

	if l.gamma > 0 {
		a := math.Exp(-l.gamma * dt)
		noise := math.Sqrt(1 - a*a)
		for i := range p.Vel {
			im := p.InvMass[i/3]
			if im == 0 {
				p.Vel[i] = 0
				continue
			}
			p.Vel[i] = a*p.Vel[i] + noise*math.Sqrt(l.kT*im)*l.rng.NormFloat64()
		}
	}

	for i := range p.Pos {
		p.Pos[i] += half * p.Vel[i]
	}

	f = l.refresh(p, force)
	for i := range p.Vel {
		p.Vel[i] += half * f[i] * p.InvMass[i/3]
	}
}

// VariableLangevin runs the LangevinMiddle scheme with a step size chosen
// from the current forces and an error tolerance.
type VariableLangevin struct {
	LangevinMiddle
	tol float64
}

func (v *VariableLangevin) Step(p *Particles, force ForceFunc) float64 {
	dt := adaptiveStep(v.current(p, force), p.InvMass, v.tol)
	v.advance(p, force, dt)
	return dt
}
