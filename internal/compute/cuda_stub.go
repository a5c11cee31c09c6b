package compute

// CUDABackend is a placeholder until a CUDA kernel build is wired in; it
// always reports itself unavailable.
type CUDABackend struct{}

func NewCUDABackend() *CUDABackend {
	return &CUDABackend{}
}

func (c *CUDABackend) Name() string    { return "cuda (not available)" }
func (c *CUDABackend) Available() bool { return false }
func (c *CUDABackend) Cleanup()        {}

func (c *CUDABackend) PairForces(pos []float64, p PairParams, f []float64) float64 {
	return NewCPUBackend().PairForces(pos, p, f)
}

// OpenCLBackend is the OpenCL counterpart of CUDABackend.
type OpenCLBackend struct{}

func NewOpenCLBackend() *OpenCLBackend {
	return &OpenCLBackend{}
}

func (o *OpenCLBackend) Name() string    { return "opencl (not available)" }
func (o *OpenCLBackend) Available() bool { return false }
func (o *OpenCLBackend) Cleanup()        {}

func (o *OpenCLBackend) PairForces(pos []float64, p PairParams, f []float64) float64 {
	return NewCPUBackend().PairForces(pos, p, f)
}
