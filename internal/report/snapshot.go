package report

import (
	"bufio"
	"os"

	"github.com/san-kum/mdpipe/internal/engine"
)

// WritePDB writes a structure snapshot through the engine's PDB writer.
func WritePDB(eng engine.Engine, path string, top *engine.Topology, positions []engine.Vec3, box *engine.Box) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := eng.WritePDB(w, top, positions, box); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
