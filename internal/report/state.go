package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/san-kum/mdpipe/internal/engine"
)

// StateColumns is the header of log.csv.
var StateColumns = []string{
	"step",
	"time_ps",
	"potential_kj_mol",
	"kinetic_kj_mol",
	"total_kj_mol",
	"temperature_K",
	"volume_nm3",
}

// StateDataReporter appends one CSV row of energies per report.
type StateDataReporter struct {
	f        *os.File
	w        *csv.Writer
	interval int
	dof      int
	rows     int
}

func NewStateDataReporter(path string, interval, dof int) (*StateDataReporter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("state log: interval must be positive, got %d", interval)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(StateColumns); err != nil {
		f.Close()
		return nil, err
	}
	return &StateDataReporter{f: f, w: w, interval: interval, dof: dof}, nil
}

func (s *StateDataReporter) Kind() string  { return KindStateData }
func (s *StateDataReporter) Interval() int { return s.interval }

func (s *StateDataReporter) Report(st engine.State) error {
	volume := 0.0
	if st.Box != nil {
		volume = st.Box.Volume()
	}
	row := []string{
		strconv.FormatInt(st.Step, 10),
		formatFloat(st.Time),
		formatFloat(st.Potential),
		formatFloat(st.Kinetic),
		formatFloat(st.Potential + st.Kinetic),
		formatFloat(Temperature(st.Kinetic, s.dof)),
		formatFloat(volume),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.rows++
	s.w.Flush()
	return s.w.Error()
}

func (s *StateDataReporter) Rows() int { return s.rows }

func (s *StateDataReporter) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
