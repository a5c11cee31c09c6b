package metrics

import (
	"math"

	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/report"
)

// Metric accumulates a scalar summary over observed states.
type Metric interface {
	Name() string
	Observe(st engine.State)
	Value() float64
	Reset()
}

// Energy is the mean total energy over all samples.
type Energy struct {
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string { return "mean_total_energy" }

func (e *Energy) Observe(st engine.State) {
	e.totalEnergy += st.Potential + st.Kinetic
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation of total energy from the
// first sample.
type EnergyDrift struct {
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(st engine.State) {
	energy := st.Potential + st.Kinetic
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Temperature is the mean instantaneous temperature in K.
type Temperature struct {
	dof     int
	sum     float64
	samples int
}

func NewTemperature(dof int) *Temperature { return &Temperature{dof: dof} }

func (t *Temperature) Name() string { return "mean_temperature_K" }

func (t *Temperature) Observe(st engine.State) {
	t.sum += report.Temperature(st.Kinetic, t.dof)
	t.samples++
}

func (t *Temperature) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *Temperature) Reset() {
	t.sum = 0
	t.samples = 0
}

// Volume is the mean periodic box volume in nm^3; non-periodic samples are
// skipped.
type Volume struct {
	sum     float64
	samples int
}

func NewVolume() *Volume { return &Volume{} }

func (v *Volume) Name() string { return "mean_volume_nm3" }

func (v *Volume) Observe(st engine.State) {
	if st.Box == nil {
		return
	}
	v.sum += st.Box.Volume()
	v.samples++
}

func (v *Volume) Value() float64 {
	if v.samples == 0 {
		return 0
	}
	return v.sum / float64(v.samples)
}

func (v *Volume) Reset() {
	v.sum = 0
	v.samples = 0
}

// Stability is the fraction of samples with finite energies.
type Stability struct {
	violations int
	samples    int
}

func NewStability() *Stability { return &Stability{} }

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(st engine.State) {
	s.samples++
	e := st.Potential + st.Kinetic
	if math.IsNaN(e) || math.IsInf(e, 0) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Standard returns the metrics recorded for every integration stage.
func Standard(dof int) []Metric {
	return []Metric{NewEnergy(), NewEnergyDrift(), NewTemperature(dof), NewVolume(), NewStability()}
}

// Collect returns the current value of each metric by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
