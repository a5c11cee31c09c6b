package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/san-kum/mdpipe/internal/engine"
)

// Checkpoint is the restart state written by CheckpointReporter.
type Checkpoint struct {
	Step       int64         `msgpack:"step"`
	Time       float64       `msgpack:"time_ps"`
	Positions  []engine.Vec3 `msgpack:"positions"`
	Velocities []engine.Vec3 `msgpack:"velocities"`
	Box        *engine.Box   `msgpack:"box,omitempty"`
	Potential  float64       `msgpack:"potential"`
	Kinetic    float64       `msgpack:"kinetic"`
}

func CheckpointFromState(st engine.State) Checkpoint {
	return Checkpoint{
		Step:       st.Step,
		Time:       st.Time,
		Positions:  st.Positions,
		Velocities: st.Velocities,
		Box:        st.Box,
		Potential:  st.Potential,
		Kinetic:    st.Kinetic,
	}
}

// State converts the checkpoint back into an engine state.
func (c Checkpoint) State() engine.State {
	return engine.State{
		Step:       c.Step,
		Time:       c.Time,
		Positions:  c.Positions,
		Velocities: c.Velocities,
		Box:        c.Box,
		Potential:  c.Potential,
		Kinetic:    c.Kinetic,
	}
}

// WriteCheckpoint replaces path atomically with the encoded state.
func WriteCheckpoint(path string, st engine.State) error {
	data, err := msgpack.Marshal(CheckpointFromState(st))
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chk-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ReadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Checkpoint
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return &c, nil
}

// CheckpointReporter overwrites a single checkpoint file every interval.
type CheckpointReporter struct {
	path     string
	interval int
	written  int
}

func NewCheckpointReporter(path string, interval int) (*CheckpointReporter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("checkpoint: interval must be positive, got %d", interval)
	}
	return &CheckpointReporter{path: path, interval: interval}, nil
}

func (c *CheckpointReporter) Kind() string  { return KindCheckpoint }
func (c *CheckpointReporter) Interval() int { return c.interval }
func (c *CheckpointReporter) Path() string  { return c.path }
func (c *CheckpointReporter) Written() int  { return c.written }

func (c *CheckpointReporter) Report(st engine.State) error {
	if err := WriteCheckpoint(c.path, st); err != nil {
		return err
	}
	c.written++
	return nil
}

func (c *CheckpointReporter) Close() error { return nil }
