package reference

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mdpipe/internal/engine"
)

const waterPDB = `CRYST1   30.000   30.000   30.000  90.00  90.00  90.00 P 1           1
HETATM    1  O   HOH A   1       0.000   0.000   0.000  1.00  0.00           O
HETATM    2  H1  HOH A   1       0.957   0.000   0.000  1.00  0.00           H
HETATM    3  H2  HOH A   1      -0.240   0.927   0.000  1.00  0.00           H
HETATM    4  O   HOH A   2       5.000   0.000   0.000  1.00  0.00           O
HETATM    5  H1  HOH A   2       5.957   0.000   0.000  1.00  0.00           H
HETATM    6  H2  HOH A   2       4.760   0.927   0.000  1.00  0.00           H
HETATM    7  NA   NA A   3       0.000   5.000   0.000  1.00  0.00          NA
END
`

const waterPrmtop = `%VERSION  VERSION_STAMP = V0001.000  DATE = 01/01/24  00:00:00
%FLAG TITLE
%FORMAT(20a4)
WAT
%FLAG POINTERS
%FORMAT(10I8)
       3       2       2       0       0       0       0       0       0       0
%FLAG ATOM_NAME
%FORMAT(20a4)
O   H1  H2  
%FLAG MASS
%FORMAT(5E16.8)
  1.59990000E+01  1.00800000E+00  1.00800000E+00
%FLAG RESIDUE_LABEL
%FORMAT(20a4)
WAT 
%FLAG RESIDUE_POINTER
%FORMAT(10I8)
       1
%FLAG BONDS_INC_HYDROGEN
%FORMAT(10I8)
       0       3       1       0       6       1
%FLAG BONDS_WITHOUT_HYDROGEN
%FORMAT(10I8)

`

const waterInpcrd = `WAT
     3
   0.0000000   0.0000000   0.0000000   0.9572000   0.0000000   0.0000000
  -0.2400000   0.9270000   0.0000000
  30.0000000  30.0000000  30.0000000  90.0000000  90.0000000  90.0000000
`

const waterGRO = `water
    3
    1SOL     OW    1   0.000   0.000   0.000
    1SOL    HW1    2   0.096   0.000   0.000
    1SOL    HW2    3  -0.024   0.093   0.000
   3.00000   3.00000   3.00000
`

const waterPSF = `PSF

       1 !NTITLE
 REMARKS water

       3 !NATOM
       1 W        1 TIP3 OH2  OT    -0.834000       15.9994           0
       2 W        1 TIP3 H1   HT     0.417000        1.0080           0
       3 W        1 TIP3 H2   HT     0.417000        1.0080           0

       2 !NBOND: bonds
       1       2       1       3
`

const waterCRD = `* water
*
    3
    1    1 TIP3 OH2    0.00000   0.00000   0.00000 W    1      0.00000
    2    1 TIP3 H1     0.95720   0.00000   0.00000 W    1      0.00000
    3    1 TIP3 H2    -0.24000   0.92700   0.00000 W    1      0.00000
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadPDB(t *testing.T) {
	st, err := ReadPDB(strings.NewReader(waterPDB))
	require.NoError(t, err)

	top := st.Topology
	require.Equal(t, 7, top.NumAtoms())
	assert.Equal(t, 3, top.NumResidues())
	assert.Equal(t, "Na", top.Atoms[6].Element)
	assert.True(t, top.Atoms[0].HetAtom)
	assert.InDelta(t, 0.0957, st.Positions[1][0], 1e-9)

	require.NotNil(t, st.Box)
	assert.InDelta(t, 3.0, st.Box.Lengths()[0], 1e-9)

	// Two O-H bonds per water, nothing between waters or to the ion.
	assert.ElementsMatch(t, []engine.Bond{{I: 0, J: 1}, {I: 0, J: 2}, {I: 3, J: 4}, {I: 3, J: 5}}, top.Bonds)
}

func TestReadPDBRejectsEmptyInput(t *testing.T) {
	_, err := ReadPDB(strings.NewReader("REMARK nothing here\nEND\n"))
	assert.Error(t, err)
}

func TestWritePDBReadsBack(t *testing.T) {
	st, err := ReadPDB(strings.NewReader(waterPDB))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePDB(&buf, st.Topology, st.Positions, st.Box))

	again, err := ReadPDB(&buf)
	require.NoError(t, err)
	require.Equal(t, st.Topology.NumAtoms(), again.Topology.NumAtoms())
	for i := range st.Positions {
		assert.InDeltaSlice(t, st.Positions[i][:], again.Positions[i][:], 1e-4)
	}
	assert.Equal(t, st.Box.Lengths(), again.Box.Lengths())
}

func TestWritePDBChecksLength(t *testing.T) {
	st, err := ReadPDB(strings.NewReader(waterPDB))
	require.NoError(t, err)
	err = WritePDB(&bytes.Buffer{}, st.Topology, st.Positions[:2], nil)
	assert.Error(t, err)
}

func TestLoadAmber(t *testing.T) {
	dir := t.TempDir()
	prmtop := writeFile(t, dir, "water.prmtop", waterPrmtop)
	inpcrd := writeFile(t, dir, "water.inpcrd", waterInpcrd)

	model, st, err := New("").LoadAmber(prmtop, inpcrd)
	require.NoError(t, err)

	top := model.Topology()
	require.Equal(t, 3, top.NumAtoms())
	assert.Equal(t, "WAT", top.Atoms[0].Residue)
	assert.Equal(t, "O", top.Atoms[0].Element)
	assert.Equal(t, "H", top.Atoms[2].Element)
	assert.ElementsMatch(t, []engine.Bond{{I: 0, J: 1}, {I: 0, J: 2}}, top.Bonds)
	assert.InDelta(t, -0.024, st.Positions[2][0], 1e-9)
	require.NotNil(t, st.Box)
	assert.InDelta(t, 3.0, st.Box.Lengths()[2], 1e-9)
}

func TestLoadAmberAtomCountMismatch(t *testing.T) {
	dir := t.TempDir()
	prmtop := writeFile(t, dir, "water.prmtop", waterPrmtop)
	inpcrd := writeFile(t, dir, "bad.inpcrd", "WAT\n     2\n   0.0000000   0.0000000   0.0000000   0.9572000   0.0000000   0.0000000\n")

	_, _, err := New("").LoadAmber(prmtop, inpcrd)
	assert.Error(t, err)
}

func TestLoadGromacs(t *testing.T) {
	dir := t.TempDir()
	top := writeFile(t, dir, "topol.top", "[ system ]\nwater\n")
	gro := writeFile(t, dir, "conf.gro", waterGRO)

	model, st, err := New("").LoadGromacs(top, gro, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, model.Topology().NumAtoms())
	assert.Len(t, model.Topology().Bonds, 2)
	assert.InDelta(t, 3.0, st.Box.Lengths()[1], 1e-9)

	checker, ok := model.(engine.ArgumentChecker)
	require.True(t, ok)
	assert.True(t, checker.AcceptsArgument(engine.ArgNonbondedMethod))
	assert.False(t, checker.AcceptsArgument(engine.ArgUseSwitchingFunction))

	_, _, err = New("").LoadGromacs(filepath.Join(dir, "missing.top"), gro, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCharmm(t *testing.T) {
	dir := t.TempDir()
	psf := writeFile(t, dir, "water.psf", waterPSF)
	prm := writeFile(t, dir, "par.prm", "* params\n")
	crd := writeFile(t, dir, "water.crd", waterCRD)

	model, st, err := New("").LoadCharmm(psf, []string{prm}, crd)
	require.NoError(t, err)
	assert.Equal(t, "TIP3", model.Topology().Atoms[0].Residue)
	assert.Equal(t, "O", model.Topology().Atoms[0].Element)
	assert.ElementsMatch(t, []engine.Bond{{I: 0, J: 1}, {I: 0, J: 2}}, model.Topology().Bonds)
	require.NotNil(t, model.Params())
	assert.Equal(t, []string{prm}, model.Params().Files)
	assert.InDelta(t, 0.09572, st.Positions[1][0], 1e-9)

	_, err = model.CreateSystemWithParams(nil, engine.Args{})
	assert.Error(t, err)
	sys, err := model.CreateSystemWithParams(model.Params(), engine.Args{})
	require.NoError(t, err)
	assert.Equal(t, 3, sys.NumParticles())
}

func TestGuessElement(t *testing.T) {
	tests := []struct {
		name, residue, want string
	}{
		{"CA", "ALA", "C"},
		{"CA", "CA", "CA"},
		{"1HB", "ALA", "H"},
		{"OW", "SOL", "O"},
		{"Cl-", "Cl-", "CL"},
		{"NA", "NA", "NA"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.residue, func(t *testing.T) {
			assert.Equal(t, tt.want, guessElement(tt.name, tt.residue))
		})
	}
}
