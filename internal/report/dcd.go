package report

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/san-kum/mdpipe/internal/engine"
)

const (
	dcdHeaderSize  = 84
	dcdTitleLength = 80
	dcdNSetOffset  = 8
	dcdNStepOffset = 20
	angstromPerNm  = 10.0
)

// DCDReporter writes a CHARMM/NAMD style DCD trajectory with unit cell
// records. Coordinates are stored in Angstrom. The file is created with the
// first frame.
type DCDReporter struct {
	path     string
	f        *os.File
	interval int
	natoms   int
	stepSize float64
	frames   int32
	first    int64
	last     int64
}

// NewDCDReporter reports to path. stepSize is the integrator step in ps and
// is recorded in the header.
func NewDCDReporter(path string, interval, natoms int, stepSize float64) (*DCDReporter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("dcd: interval must be positive, got %d", interval)
	}
	return &DCDReporter{path: path, interval: interval, natoms: natoms, stepSize: stepSize}, nil
}

func (d *DCDReporter) Kind() string  { return KindTrajectory }
func (d *DCDReporter) Interval() int { return d.interval }

func (d *DCDReporter) Report(st engine.State) error {
	if len(st.Positions) != d.natoms {
		return fmt.Errorf("dcd: frame has %d atoms, trajectory has %d", len(st.Positions), d.natoms)
	}
	if d.f == nil {
		f, err := os.Create(d.path)
		if err != nil {
			return err
		}
		d.f = f
		d.first = st.Step
		if err := d.writeHeader(); err != nil {
			return err
		}
	}
	d.last = st.Step

	if _, err := d.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if err := d.writeCell(st.Box); err != nil {
		return err
	}
	axis := make([]float32, d.natoms)
	for k := 0; k < 3; k++ {
		for i, p := range st.Positions {
			axis[i] = float32(p[k] * angstromPerNm)
		}
		if err := writeRecord(d.f, axis); err != nil {
			return err
		}
	}
	d.frames++
	return d.updateCounts()
}

func (d *DCDReporter) writeHeader() error {
	var icntrl [20]int32
	icntrl[1] = int32(d.first)
	icntrl[2] = int32(d.interval)
	icntrl[10] = 1 // unit cell present
	icntrl[19] = 24

	hdr := make([]byte, 0, dcdHeaderSize)
	hdr = append(hdr, "CORD"...)
	for i, v := range icntrl {
		if i == 9 {
			hdr = binary.LittleEndian.AppendUint32(hdr, math.Float32bits(float32(d.stepSize)))
			continue
		}
		hdr = binary.LittleEndian.AppendUint32(hdr, uint32(v))
	}
	if err := writeRecord(d.f, hdr); err != nil {
		return err
	}

	title := make([]byte, 4+dcdTitleLength)
	binary.LittleEndian.PutUint32(title, 1)
	copy(title[4:], fmt.Sprintf("%-80s", "Created by mdpipe"))
	if err := writeRecord(d.f, title); err != nil {
		return err
	}
	return writeRecord(d.f, int32(d.natoms))
}

func (d *DCDReporter) writeCell(box *engine.Box) error {
	var l [3]float64
	if box != nil {
		l = box.Lengths()
	}
	cell := [6]float64{l[0] * angstromPerNm, 90, l[1] * angstromPerNm, 90, 90, l[2] * angstromPerNm}
	return writeRecord(d.f, cell)
}

// updateCounts rewrites the frame count and last step in the header.
func (d *DCDReporter) updateCounts() error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(d.frames))
	if _, err := d.f.WriteAt(buf, dcdNSetOffset); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf, uint32(d.last))
	_, err := d.f.WriteAt(buf, dcdNStepOffset)
	return err
}

func (d *DCDReporter) Frames() int { return int(d.frames) }

func (d *DCDReporter) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// writeRecord writes v framed by Fortran record-length markers.
func writeRecord(w io.Writer, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("dcd: cannot encode %T", v)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(size)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int32(size))
}

// DCDInfo is the header summary of a DCD file.
type DCDInfo struct {
	Frames   int
	Atoms    int
	Interval int
	First    int
}

// ReadDCDInfo reads the header of a DCD file written by DCDReporter.
func ReadDCDInfo(r io.Reader) (DCDInfo, error) {
	var marker int32
	if err := binary.Read(r, binary.LittleEndian, &marker); err != nil {
		return DCDInfo{}, err
	}
	if marker != dcdHeaderSize {
		return DCDInfo{}, fmt.Errorf("dcd: unexpected header size %d", marker)
	}
	hdr := make([]byte, dcdHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return DCDInfo{}, err
	}
	if string(hdr[:4]) != "CORD" {
		return DCDInfo{}, fmt.Errorf("dcd: bad magic %q", hdr[:4])
	}
	info := DCDInfo{
		Frames:   int(int32(binary.LittleEndian.Uint32(hdr[4:]))),
		First:    int(int32(binary.LittleEndian.Uint32(hdr[8:]))),
		Interval: int(int32(binary.LittleEndian.Uint32(hdr[12:]))),
	}

	// Skip the trailing marker and the title record.
	var skip [4]byte
	if _, err := io.ReadFull(r, skip[:]); err != nil {
		return DCDInfo{}, err
	}
	var titleSize int32
	if err := binary.Read(r, binary.LittleEndian, &titleSize); err != nil {
		return DCDInfo{}, err
	}
	if _, err := io.CopyN(io.Discard, r, int64(titleSize)+4); err != nil {
		return DCDInfo{}, err
	}
	var natoms [3]int32
	if err := binary.Read(r, binary.LittleEndian, &natoms); err != nil {
		return DCDInfo{}, err
	}
	info.Atoms = int(natoms[1])
	return info, nil
}
