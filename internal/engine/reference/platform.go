package reference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/mdpipe/internal/compute"
	"github.com/san-kum/mdpipe/internal/engine"
)

const (
	PlatformReference = "Reference"
	PlatformCPU       = "CPU"
	PlatformCUDA      = "CUDA"
	PlatformOpenCL    = "OpenCL"
)

type platform struct {
	name  string
	speed float64
	probe func() compute.Backend
}

func (p *platform) Name() string    { return p.name }
func (p *platform) Speed() float64  { return p.speed }
func (p *platform) String() string  { return p.name }
func (p *platform) available() bool { return p.probe().Available() }

// backend returns a fresh kernel for one context. The CPU platform honours
// the Threads property; other properties are ignored.
func (p *platform) backend(props map[string]string) (compute.Backend, error) {
	if p.name == PlatformCPU {
		if v, ok := props["Threads"]; ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("reference: invalid Threads property %q", v)
			}
			return compute.NewWorkerBackend(n), nil
		}
	}
	b := p.probe()
	if !b.Available() {
		return nil, fmt.Errorf("%w: %s", engine.ErrPlatformUnavailable, p.name)
	}
	return b, nil
}

var platforms = []*platform{
	{name: PlatformReference, speed: 1, probe: func() compute.Backend { return compute.NewSerialBackend() }},
	{name: PlatformCPU, speed: 10, probe: func() compute.Backend { return compute.NewCPUBackend() }},
	{name: PlatformCUDA, speed: 100, probe: func() compute.Backend { return compute.NewCUDABackend() }},
	{name: PlatformOpenCL, speed: 50, probe: func() compute.Backend { return compute.NewOpenCLBackend() }},
}
