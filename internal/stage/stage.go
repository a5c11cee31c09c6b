// Package stage advances a simulation handle through one configured stage
// and persists the stage's artifacts.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/metrics"
	"github.com/san-kum/mdpipe/internal/plumed"
	"github.com/san-kum/mdpipe/internal/report"
	"github.com/san-kum/mdpipe/internal/sim"
	"github.com/san-kum/mdpipe/internal/storage"
)

// Artifact file names inside a stage directory.
const (
	TopologyFile   = "topology.pdb"
	FinalFile      = "final.pdb"
	StateFile      = "state.chk"
	TrajectoryFile = "traj.dcd"
	LogFile        = "log.csv"
	CheckpointFile = "checkpoint.chk"
)

const (
	DefaultMinimizeTolerance = 10.0 // kJ/mol/nm
	keyTolPerNm              = "minimize_tolerance_kjmol_per_nm"
	keyTolEnergy             = "minimize_tolerance_kjmol"
)

// Result describes a finished stage. Its final state is the starting point
// of the next stage on the same handle.
type Result struct {
	Dir      string
	Final    engine.State
	Metadata storage.StageMetadata
}

type Runner struct {
	Store *storage.Store
	Log   *log.Logger
}

func New(store *storage.Store, logger *log.Logger) *Runner {
	return &Runner{Store: store, Log: logger}
}

// Intervals are the reporter sampling periods in steps.
type Intervals struct {
	Trajectory int
	StateLog   int
	Checkpoint int
}

// ReportIntervals resolves intervals with stage overrides taking precedence
// over defaults.
func ReportIntervals(defaults config.Map, st config.Stage) Intervals {
	pick := func(key string, def int) int {
		if st.Overrides.Has(key) {
			return st.Overrides.Int(key, def)
		}
		return defaults.Int(key, def)
	}
	every := pick("report_interval", config.DefaultReportInterval)
	return Intervals{
		Trajectory: pick("trajectory_interval", every),
		StateLog:   every,
		Checkpoint: pick("checkpoint_interval", config.DefaultCheckpointEvery),
	}
}

// MinimizeTolerance reads the minimizer criterion: a force tolerance in
// kJ/mol/nm or an energy tolerance in kJ/mol. Setting both is an error;
// setting neither gives DefaultMinimizeTolerance kJ/mol/nm.
func MinimizeTolerance(cfg config.Map) (engine.Tolerance, error) {
	perNm, energy := cfg.Has(keyTolPerNm), cfg.Has(keyTolEnergy)
	var tol engine.Tolerance
	switch {
	case perNm && energy:
		return tol, config.Invalidf(keyTolPerNm, "conflicts with %s; set only one", keyTolEnergy)
	case perNm:
		tol = engine.Tolerance{Value: cfg.Float(keyTolPerNm, 0), PerLength: true}
	case energy:
		tol = engine.Tolerance{Value: cfg.Float(keyTolEnergy, 0)}
	default:
		return engine.Tolerance{Value: DefaultMinimizeTolerance, PerLength: true}, nil
	}
	if tol.Value <= 0 {
		return tol, config.Invalidf("minimize_tolerance", "must be positive, got %v", tol.Value)
	}
	return tol, nil
}

// Run executes st on h. Configuration is the stage overrides merged over
// defaults. Output goes to <store>/<systemID>/<stage name>.
func (r *Runner) Run(ctx context.Context, h *sim.Handle, systemID string, st config.Stage, defaults config.Map) (*Result, error) {
	logger := logging.OrDiscard(r.Log).With("system", systemID, "stage", st.Name)
	cfg := st.Resolve(defaults)
	dir := r.Store.StageDir(systemID, st.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	started := time.Now()
	if err := Transition(logger, h, st.Ensemble, cfg); err != nil {
		return nil, err
	}
	if err := ApplyIntegrator(logger, h, cfg); err != nil {
		return nil, err
	}

	initial, err := h.State()
	if err != nil {
		return nil, err
	}
	if err := report.WritePDB(h.Engine, filepath.Join(dir, TopologyFile), h.Topology, initial.Positions, initial.Box); err != nil {
		return nil, fmt.Errorf("write %s: %w", TopologyFile, err)
	}

	force, err := plumed.Attach(logger, h, plumed.MergeConfig(defaults, st.Overrides), dir)
	if err != nil {
		return nil, err
	}

	var collected map[string]float64
	if st.Minimize() {
		err = r.minimize(logger, h, cfg)
	} else {
		collected, err = r.integrate(ctx, logger, h, dir, st, defaults)
	}
	if derr := plumed.Detach(h, force); err == nil {
		err = derr
	}
	if err != nil {
		return nil, err
	}

	final, err := h.State()
	if err != nil {
		return nil, err
	}
	if err := report.WritePDB(h.Engine, filepath.Join(dir, FinalFile), h.Topology, final.Positions, final.Box); err != nil {
		return nil, fmt.Errorf("write %s: %w", FinalFile, err)
	}
	if err := report.WriteCheckpoint(filepath.Join(dir, StateFile), final); err != nil {
		return nil, fmt.Errorf("write %s: %w", StateFile, err)
	}

	finished := time.Now()
	meta := storage.StageMetadata{
		System:      systemID,
		Stage:       st.Name,
		Steps:       st.Steps,
		Minimized:   st.Minimize(),
		Ensemble:    string(h.Ensemble),
		Platform:    h.Platform().Name(),
		StartedAt:   started,
		FinishedAt:  finished,
		WallSeconds: finished.Sub(started).Seconds(),
		FinalStep:   final.Step,
		TimePs:      final.Time,
		Potential:   final.Potential,
		Kinetic:     final.Kinetic,
		Metrics:     collected,
		Artifacts:   artifacts(dir),
	}
	if h.Engine != nil {
		meta.Engine = h.Engine.Name()
	}
	if h.Integrator != nil {
		spec := h.Integrator.Spec()
		meta.Integrator = string(spec.Kind)
		if spec.Thermostatted() {
			meta.Temperature = spec.Temperature
		}
	}
	if final.Box != nil {
		l := final.Box.Lengths()
		meta.Box = &l
	}
	meta.Artifacts = append(meta.Artifacts, storage.MetadataFile)
	if err := r.Store.SaveStage(meta); err != nil {
		return nil, fmt.Errorf("write %s: %w", storage.MetadataFile, err)
	}

	logger.Info("stage done",
		"steps", st.Steps,
		"ensemble", h.Ensemble,
		"potential_kj_mol", final.Potential,
		"wall", finished.Sub(started).Round(time.Millisecond).String())
	return &Result{Dir: dir, Final: final, Metadata: meta}, nil
}

func (r *Runner) minimize(logger *log.Logger, h *sim.Handle, cfg config.Map) error {
	tol, err := MinimizeTolerance(cfg)
	if err != nil {
		return err
	}
	maxIter := cfg.Int("minimize_max_iterations", 0)
	if maxIter < 0 {
		return config.Invalidf("minimize_max_iterations", "must be >= 0, got %d", maxIter)
	}
	logger.Info("minimizing", "tolerance", tol.Value, "per_nm", tol.PerLength, "max_iterations", maxIter)
	if err := h.Minimize(tol, maxIter); err != nil {
		return fmt.Errorf("minimize: %w", err)
	}
	return nil
}

// integrate attaches the trajectory, state-log and checkpoint reporters,
// steps and detaches them. It returns the stage metrics.
func (r *Runner) integrate(ctx context.Context, logger *log.Logger, h *sim.Handle, dir string, st config.Stage, defaults config.Map) (map[string]float64, error) {
	iv := ReportIntervals(defaults, st)
	if err := attachReporters(h, dir, iv); err != nil {
		return nil, errors.Join(err, h.ClearReporters())
	}
	logger.Info("integrating", "steps", st.Steps, "report_every", iv.StateLog, "checkpoint_every", iv.Checkpoint)

	err := h.Step(ctx, st.Steps)
	collected := metrics.Collect(h.Metrics())
	if cerr := h.ClearReporters(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return collected, nil
}

func attachReporters(h *sim.Handle, dir string, iv Intervals) error {
	stepSize := 0.0
	if h.Integrator != nil {
		stepSize = h.Integrator.Spec().StepSize
	}
	traj, err := report.NewDCDReporter(filepath.Join(dir, TrajectoryFile), iv.Trajectory, h.Topology.NumAtoms(), stepSize)
	if err != nil {
		return err
	}
	h.AddReporter(traj)

	dof := report.DegreesOfFreedom(h.System)
	state, err := report.NewStateDataReporter(filepath.Join(dir, LogFile), iv.StateLog, dof)
	if err != nil {
		return err
	}
	h.AddReporter(state)

	chk, err := report.NewCheckpointReporter(filepath.Join(dir, CheckpointFile), iv.Checkpoint)
	if err != nil {
		return err
	}
	h.AddReporter(chk)

	for _, m := range metrics.Standard(dof) {
		h.AddMetric(m)
	}
	return nil
}

func artifacts(dir string) []string {
	var out []string
	for _, name := range []string{TopologyFile, FinalFile, StateFile, TrajectoryFile, LogFile, CheckpointFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			out = append(out, name)
		}
	}
	return out
}
