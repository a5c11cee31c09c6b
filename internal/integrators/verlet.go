package integrators

// VariableVerlet is velocity Verlet with a step size chosen from the
// current forces and an error tolerance.
type VariableVerlet struct {
	forceCache
	tol float64
}

func (v *VariableVerlet) Step(p *Particles, force ForceFunc) float64 {
	f := v.current(p, force)
	dt := adaptiveStep(f, p.InvMass, v.tol)
	halfDt := 0.5 * dt

	for i := range p.Pos {
		im := p.InvMass[i/3]
		p.Vel[i] += halfDt * f[i] * im
		p.Pos[i] += dt * p.Vel[i]
	}

	f = v.refresh(p, force)
	for i := range p.Vel {
		p.Vel[i] += halfDt * f[i] * p.InvMass[i/3]
	}
	return dt
}
