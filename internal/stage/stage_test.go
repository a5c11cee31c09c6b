package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mdpipe/internal/builder"
	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/engine/reference"
	"github.com/san-kum/mdpipe/internal/report"
	"github.com/san-kum/mdpipe/internal/sim"
	"github.com/san-kum/mdpipe/internal/storage"
)

func defaults() config.Map {
	return config.Map{
		"temperature_K":     300,
		"timestep_fs":       1.0,
		"integrator":        "langevin_middle",
		"platform":          "Reference",
		"report_interval":   5,
		"barostat_interval": 5,
		"create_system": config.Map{
			"nonbondedMethod":    "PME",
			"nonbondedCutoff_nm": 1.0,
		},
	}
}

func newHandle(t *testing.T, root string) *sim.Handle {
	t.Helper()
	b := builder.New(reference.New("openmm"), nil)
	h, err := b.Build(config.System{ID: "water", Source: config.PDBSource{Path: "testdata/water.pdb"}}, defaults(), filepath.Join(root, "water"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func newRunner(t *testing.T) (*Runner, string) {
	root := t.TempDir()
	store := storage.New(root)
	require.NoError(t, store.Init())
	return New(store, nil), root
}

func countBarostats(sys *engine.System) int {
	n := 0
	for _, f := range sys.Forces {
		if _, ok := f.(*engine.MonteCarloBarostat); ok {
			n++
		}
	}
	return n
}

func TestMinimizeStage(t *testing.T) {
	r, root := newRunner(t)
	h := newHandle(t, root)

	res, err := r.Run(context.Background(), h, "water", config.Stage{Name: "min", Overrides: config.Map{}}, defaults())
	require.NoError(t, err)

	dir := filepath.Join(root, "water", "min")
	assert.Equal(t, dir, res.Dir)
	assert.FileExists(t, filepath.Join(dir, storage.MetadataFile))
	assert.FileExists(t, filepath.Join(dir, TopologyFile))
	assert.FileExists(t, filepath.Join(dir, FinalFile))
	assert.NoFileExists(t, filepath.Join(dir, TrajectoryFile))
	assert.NoFileExists(t, filepath.Join(dir, LogFile))
	assert.Empty(t, h.Reporters())

	meta, err := r.Store.Load("water", "min")
	require.NoError(t, err)
	assert.True(t, meta.Minimized)
	assert.Equal(t, int64(0), meta.FinalStep)
	assert.Contains(t, meta.Artifacts, storage.MetadataFile)
	assert.NotContains(t, meta.Artifacts, TrajectoryFile)
}

func TestIntegrationStage(t *testing.T) {
	r, root := newRunner(t)
	h := newHandle(t, root)

	st := config.Stage{Name: "nvt", Steps: 20, Ensemble: config.EnsembleNVT, Overrides: config.Map{"checkpoint_interval": 10}}
	res, err := r.Run(context.Background(), h, "water", st, defaults())
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Final.Step)
	assert.Empty(t, h.Reporters())
	assert.Empty(t, h.Metrics())

	dir := res.Dir
	f, err := os.Open(filepath.Join(dir, TrajectoryFile))
	require.NoError(t, err)
	defer f.Close()
	info, err := report.ReadDCDInfo(f)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Frames)
	assert.Equal(t, 7, info.Atoms)

	stateLog, err := storage.LoadStateLog(dir)
	require.NoError(t, err)
	assert.Len(t, stateLog.Rows, 4)
	steps, err := stateLog.Column("step")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 10, 15, 20}, steps)

	chk, err := report.ReadCheckpoint(filepath.Join(dir, CheckpointFile))
	require.NoError(t, err)
	assert.Equal(t, int64(20), chk.Step)
	assert.FileExists(t, filepath.Join(dir, StateFile))

	assert.Contains(t, res.Metadata.Metrics, "mean_total_energy")
	assert.Equal(t, "NVT", res.Metadata.Ensemble)
	assert.Equal(t, "openmm", res.Metadata.Engine)
	assert.Equal(t, "Reference", res.Metadata.Platform)

	// The next stage continues from the final state.
	res2, err := r.Run(context.Background(), h, "water", config.Stage{Name: "more", Steps: 5, Overrides: config.Map{}}, defaults())
	require.NoError(t, err)
	assert.Equal(t, int64(25), res2.Final.Step)
}

func TestEnsembleTransitions(t *testing.T) {
	r, root := newRunner(t)
	h := newHandle(t, root)
	forces := h.System.NumForces()

	nvt := config.Stage{Name: "nvt", Steps: 5, Ensemble: config.EnsembleNVT, Overrides: config.Map{}}
	_, err := r.Run(context.Background(), h, "water", nvt, defaults())
	require.NoError(t, err)
	assert.Equal(t, forces, h.System.NumForces())

	for _, name := range []string{"npt1", "npt2"} {
		st := config.Stage{Name: name, Steps: 5, Ensemble: config.EnsembleNPT, Overrides: config.Map{}}
		_, err := r.Run(context.Background(), h, "water", st, defaults())
		require.NoError(t, err)
		assert.Equal(t, 1, countBarostats(h.System), name)
		assert.Equal(t, config.EnsembleNPT, h.Ensemble)
	}

	b := h.System.Force(h.System.FindBarostat()).(*engine.MonteCarloBarostat)
	assert.InDelta(t, 1.01325, b.Pressure, 1e-12)
	assert.Equal(t, 5, b.Frequency)

	// No ensemble keeps the barostat.
	_, err = r.Run(context.Background(), h, "water", config.Stage{Name: "keep", Steps: 5, Overrides: config.Map{}}, defaults())
	require.NoError(t, err)
	assert.Equal(t, 1, countBarostats(h.System))

	_, err = r.Run(context.Background(), h, "water", nvt, defaults())
	require.NoError(t, err)
	assert.Equal(t, 0, countBarostats(h.System))
	assert.Equal(t, forces, h.System.NumForces())
	assert.Equal(t, config.EnsembleNVT, h.Ensemble)
}

func TestStageIntegratorOverrides(t *testing.T) {
	r, root := newRunner(t)
	h := newHandle(t, root)
	assert.Equal(t, 300.0, h.Integrator.Spec().Temperature)

	hot := config.Stage{Name: "hot", Steps: 5, Overrides: config.Map{"temperature_K": 1000, "timestep_fs": 2.0}}
	res, err := r.Run(context.Background(), h, "water", hot, defaults())
	require.NoError(t, err)
	spec := h.Integrator.Spec()
	assert.Equal(t, engine.LangevinMiddle, spec.Kind)
	assert.Equal(t, 1000.0, spec.Temperature)
	assert.InDelta(t, 0.002, spec.StepSize, 1e-12)
	assert.InDelta(t, 5*0.002, res.Final.Time, 1e-9)
	assert.Equal(t, 1000.0, res.Metadata.Temperature)

	// A stage without overrides runs at the defaults again.
	res, err = r.Run(context.Background(), h, "water", config.Stage{Name: "cool", Steps: 5, Overrides: config.Map{}}, defaults())
	require.NoError(t, err)
	assert.Equal(t, 300.0, h.Integrator.Spec().Temperature)
	assert.InDelta(t, 5*0.002+5*0.001, res.Final.Time, 1e-9)

	named := config.Stage{Name: "named", Steps: 5, Overrides: config.Map{"integrator": config.Map{"name": "langevin", "temperature_K": 350}}}
	_, err = r.Run(context.Background(), h, "water", named, defaults())
	require.NoError(t, err)
	assert.Equal(t, engine.Langevin, h.Integrator.Spec().Kind)
	assert.Equal(t, 350.0, h.Integrator.Spec().Temperature)

	bad := config.Stage{Name: "bad", Steps: 5, Overrides: config.Map{"integrator": "leapfrog"}}
	_, err = r.Run(context.Background(), h, "water", bad, defaults())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunCancelled(t *testing.T) {
	r, root := newRunner(t)
	h := newHandle(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, h, "water", config.Stage{Name: "nvt", Steps: 50, Overrides: config.Map{}}, defaults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, h.Reporters())
}

func TestReportIntervals(t *testing.T) {
	d := config.Map{"report_interval": 100, "checkpoint_interval": 1000}

	iv := ReportIntervals(d, config.Stage{Overrides: config.Map{}})
	assert.Equal(t, Intervals{Trajectory: 100, StateLog: 100, Checkpoint: 1000}, iv)

	iv = ReportIntervals(d, config.Stage{Overrides: config.Map{"report_interval": 10, "checkpoint_interval": 20}})
	assert.Equal(t, Intervals{Trajectory: 10, StateLog: 10, Checkpoint: 20}, iv)

	iv = ReportIntervals(config.Map{}, config.Stage{Overrides: config.Map{}})
	assert.Equal(t, Intervals{Trajectory: 1000, StateLog: 1000, Checkpoint: 10000}, iv)
}

func TestMinimizeTolerance(t *testing.T) {
	tol, err := MinimizeTolerance(config.Map{})
	require.NoError(t, err)
	assert.Equal(t, engine.Tolerance{Value: 10, PerLength: true}, tol)

	tol, err = MinimizeTolerance(config.Map{"minimize_tolerance_kjmol": 0.5})
	require.NoError(t, err)
	assert.Equal(t, engine.Tolerance{Value: 0.5}, tol)

	tol, err = MinimizeTolerance(config.Map{"minimize_tolerance_kjmol_per_nm": 2})
	require.NoError(t, err)
	assert.Equal(t, engine.Tolerance{Value: 2, PerLength: true}, tol)

	_, err = MinimizeTolerance(config.Map{"minimize_tolerance_kjmol_per_nm": 2, "minimize_tolerance_kjmol": 1})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = MinimizeTolerance(config.Map{"minimize_tolerance_kjmol": -1})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestBarostatFromConfig(t *testing.T) {
	b := Barostat(config.Map{"pressure_atm": 2.0, "temperature_K": 310, "barostat_interval": 50})
	assert.InDelta(t, 2*AtmToBar, b.Pressure, 1e-12)
	assert.Equal(t, 310.0, b.Temperature)
	assert.Equal(t, 50, b.Frequency)
}
