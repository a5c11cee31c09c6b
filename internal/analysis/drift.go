package analysis

import "math"

// DriftStats summarizes a series against its sample positions.
type DriftStats struct {
	Samples int
	Mean    float64
	StdDev  float64
	// Slope is the least-squares trend per unit of x.
	Slope float64
	// Relative is the fitted change over the whole span divided by |Mean|.
	Relative float64
}

func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Drift fits y against x. Mismatched or short inputs give zero statistics
// apart from the sample count.
func Drift(x, y []float64) DriftStats {
	n := len(y)
	st := DriftStats{Samples: n}
	if n == 0 || len(x) != n {
		return st
	}
	st.Mean = Mean(y)
	mx := Mean(x)

	var sxx, sxy, syy float64
	for i := range y {
		dx, dy := x[i]-mx, y[i]-st.Mean
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	st.StdDev = math.Sqrt(syy / float64(n))
	if sxx == 0 {
		return st
	}
	st.Slope = sxy / sxx
	if st.Mean != 0 {
		st.Relative = st.Slope * (x[n-1] - x[0]) / math.Abs(st.Mean)
	}
	return st
}
