// Package analysis characterizes state-log series from a stage run.
//
//   - [PowerSpectrum]: one-sided spectrum of a mean-removed, Hann-windowed series
//   - [Dominant]: strongest non-zero frequency of a spectrum
//   - [Drift]: least-squares trend and spread of a series
//
// Energies sampled every report interval are the usual input:
//
//	spec := analysis.PowerSpectrum(totals, dtPs)
//	f, p := spec.Dominant()
package analysis
