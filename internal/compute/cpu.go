package compute

import (
	"math"
	"runtime"
	"sync"
)

// serialThreshold is the particle count below which the CPU backend skips
// the worker pool.
const serialThreshold = 64

type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

// NewWorkerBackend returns a CPU backend with a fixed worker count.
func NewWorkerBackend(workers int) *CPUBackend {
	if workers < 1 {
		workers = 1
	}
	return &CPUBackend{workers: workers}
}

// NewSerialBackend returns a single-threaded backend, used by the
// Reference platform.
func NewSerialBackend() *CPUBackend {
	return &CPUBackend{workers: 1}
}

func (c *CPUBackend) Name() string {
	if c.workers == 1 {
		return "serial"
	}
	return "cpu"
}
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) PairForces(pos []float64, p PairParams, f []float64) float64 {
	n := len(pos) / 3
	if n < serialThreshold || c.workers <= 1 {
		return c.pairSerial(pos, p, f)
	}
	return c.pairParallel(pos, p, f)
}

func (c *CPUBackend) pairSerial(pos []float64, p PairParams, f []float64) float64 {
	n := len(pos) / 3
	energy := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			e, fx, fy, fz, ok := pairTerm(pos, p, i, j)
			if !ok {
				continue
			}
			energy += e
			f[i*3] -= fx
			f[i*3+1] -= fy
			f[i*3+2] -= fz
			f[j*3] += fx
			f[j*3+1] += fy
			f[j*3+2] += fz
		}
	}
	return energy
}

// pairParallel visits every ordered pair so each worker only writes the
// rows it owns; energies are halved to compensate.
func (c *CPUBackend) pairParallel(pos []float64, p PairParams, f []float64) float64 {
	n := len(pos) / 3
	energies := make([]float64, c.workers)

	var wg sync.WaitGroup
	chunkSize := (n + c.workers - 1) / c.workers

	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			start := worker * chunkSize
			end := start + chunkSize
			if end > n {
				end = n
			}

			local := 0.0
			for i := start; i < end; i++ {
				for j := 0; j < n; j++ {
					if i == j {
						continue
					}
					a, b := i, j
					sign := 1.0
					if a > b {
						a, b = b, a
						sign = -1.0
					}
					e, fx, fy, fz, ok := pairTerm(pos, p, a, b)
					if !ok {
						continue
					}
					local += 0.5 * e
					// pairTerm returns the force on b; i is a when sign > 0.
					f[i*3] -= sign * fx
					f[i*3+1] -= sign * fy
					f[i*3+2] -= sign * fz
				}
			}
			energies[worker] = local
		}(w)
	}

	wg.Wait()

	total := 0.0
	for _, e := range energies {
		total += e
	}
	return total
}

func round(x float64) float64 { return math.Floor(x + 0.5) }
func sqrt(x float64) float64  { return math.Sqrt(x) }
