// Package compute provides the pairwise nonbonded kernels behind the
// reference engine's platforms.
//
//   - CPU: worker pool over particle rows, serial below a size threshold
//   - serial: single goroutine, used by the Reference platform
//   - CUDA, OpenCL: stubs that report themselves unavailable
//
// Backends operate on flat xyz arrays:
//
//	backend := compute.AutoSelectBackend()
//	energy := backend.PairForces(pos, compute.PairParams{Sigma: s, Epsilon: e}, forces)
package compute
