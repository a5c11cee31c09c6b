// Package reference is an in-process CPU implementation of engine.Engine.
//
// It reads PDB, GROMACS .gro, AMBER prmtop/inpcrd and CHARMM PSF/CRD files
// and builds a simple energy function: harmonic bonds at covalent-radius
// lengths plus an element-typed Lennard-Jones term with 1-2 and 1-3
// exclusions. Electrostatics and constraints are recorded on the System but
// not evaluated. It is intended for dry runs of a pipeline and for tests,
// not for production sampling.
//
// Platforms:
//
//	Reference  single-threaded pair kernel
//	CPU        worker-pool pair kernel (property "Threads")
//	CUDA       reported unavailable
//	OpenCL     reported unavailable
//
// Every platform accepts the "RandomSeed" context property.
package reference
