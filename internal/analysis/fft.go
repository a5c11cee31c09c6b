package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrum is a one-sided power spectrum. Freqs are in cycles per unit of
// the sample spacing passed to PowerSpectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean, applies a Hann window and transforms.
// Series shorter than two samples or a non-positive spacing give an empty
// spectrum.
func PowerSpectrum(data []float64, spacing float64) Spectrum {
	n := len(data)
	if n < 2 || spacing <= 0 {
		return Spectrum{}
	}

	x := make([]float64, n)
	mean := Mean(data)
	for i, v := range data {
		x[i] = v - mean
	}
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)
	half := n/2 + 1
	s := Spectrum{Freqs: make([]float64, half), Power: make([]float64, half)}
	for k := 0; k < half; k++ {
		s.Freqs[k] = float64(k) / (float64(n) * spacing)
		a := cmplx.Abs(coeffs[k])
		s.Power[k] = a * a / float64(n)
	}
	return s
}

// Dominant returns the frequency and power of the strongest bin above zero
// frequency.
func (s Spectrum) Dominant() (freq, power float64) {
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > power {
			freq, power = s.Freqs[k], s.Power[k]
		}
	}
	return freq, power
}
