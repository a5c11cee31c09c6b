package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// MetadataFile is the per-stage metadata document.
const MetadataFile = "stage.json"

// Store is rooted at one project output directory,
// <output>/<project>/<system>/<stage>.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// StageDir returns the output directory of one stage of one system.
func (s *Store) StageDir(system, stage string) string {
	return filepath.Join(s.baseDir, system, stage)
}

type StageMetadata struct {
	System      string             `json:"system"`
	Stage       string             `json:"stage"`
	Steps       int                `json:"steps"`
	Minimized   bool               `json:"minimized"`
	Ensemble    string             `json:"ensemble"`
	Engine      string             `json:"engine"`
	Platform    string             `json:"platform"`
	Integrator  string             `json:"integrator"`
	Temperature float64            `json:"temperature_K,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	WallSeconds float64            `json:"wall_seconds"`
	FinalStep   int64              `json:"final_step"`
	TimePs      float64            `json:"time_ps"`
	Potential   float64            `json:"potential_kj_mol"`
	Kinetic     float64            `json:"kinetic_kj_mol"`
	Box         *[3]float64        `json:"box_nm,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Artifacts   []string           `json:"artifacts"`
}

// SaveStage writes stage.json into the stage directory.
func (s *Store) SaveStage(meta StageMetadata) error {
	dir := s.StageDir(meta.System, meta.Stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, MetadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) Load(system, stage string) (*StageMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.StageDir(system, stage), MetadataFile))
	if err != nil {
		return nil, err
	}

	var meta StageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s/%s: %w", system, stage, err)
	}
	return &meta, nil
}

// List returns every readable stage record, ordered by system and start
// time. Directories without metadata are skipped.
func (s *Store) List() ([]StageMetadata, error) {
	systems, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []StageMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]StageMetadata, 0)
	for _, sys := range systems {
		if !sys.IsDir() {
			continue
		}
		stages, err := os.ReadDir(filepath.Join(s.baseDir, sys.Name()))
		if err != nil {
			continue
		}
		for _, st := range stages {
			if !st.IsDir() {
				continue
			}
			meta, err := s.Load(sys.Name(), st.Name())
			if err != nil {
				continue
			}
			runs = append(runs, *meta)
		}
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].System != runs[j].System {
			return runs[i].System < runs[j].System
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// ExportJSON writes records as an indented JSON array.
func ExportJSON(w io.Writer, runs []StageMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runs)
}

// StateLog is a parsed log.csv.
type StateLog struct {
	Header []string
	Rows   [][]float64
}

// Column returns one named column.
func (l *StateLog) Column(name string) ([]float64, error) {
	idx := -1
	for i, h := range l.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no column %q (have %v)", name, l.Header)
	}
	out := make([]float64, 0, len(l.Rows))
	for _, row := range l.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out, nil
}

// LoadStateLog reads the log.csv of a stage directory. Rows that fail to
// parse are skipped.
func LoadStateLog(stageDir string) (*StateLog, error) {
	file, err := os.Open(filepath.Join(stageDir, "log.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &StateLog{}, nil
	}

	log := &StateLog{Header: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for _, record := range records[1:] {
		row := make([]float64, 0, len(record))
		ok := true
		for _, field := range record {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			row = append(row, val)
		}
		if ok {
			log.Rows = append(log.Rows, row)
		}
	}
	return log, nil
}
