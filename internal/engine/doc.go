// Package engine defines the boundary between the preparation pipeline and
// the molecular-dynamics engine that performs force evaluation and
// integration.
//
// The pipeline never evaluates forces itself. It loads structures and
// models through an [Engine], builds a [System] from a model, and drives a
// [Context] that owns coordinates and velocities:
//
//	st, _ := eng.LoadPDB("protein.pdb")
//	ff, _ := eng.LoadForceField([]string{"amber14-all.xml"})
//	sys, _ := ff.CreateSystem(st.Topology, engine.Args{})
//	integ, _ := eng.NewIntegrator(spec)
//	ctx, _ := eng.NewContext(st.Topology, sys, integ, platform, nil, st)
//
// Models are polymorphic over three capability sets: [ForceField] needs a
// topology, [PrebuiltTopology] carries its own (AMBER, GROMACS), and
// [CharmmTopology] additionally needs a bound parameter set.
//
// # Units
//
// Lengths are nanometers, times picoseconds, masses daltons, energies
// kJ/mol, temperatures kelvin and pressures bar.
package engine
