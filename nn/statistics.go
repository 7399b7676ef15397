package nn

// Descriptives holds the per-feature statistics consumed by the scaling and
// unscaling layers. They are computed by an external collaborator (a data
// set pipeline) and supplied precomputed.
type Descriptives struct {
	Minimum           float64 `json:"minimum"`
	Maximum           float64 `json:"maximum"`
	Mean              float64 `json:"mean"`
	StandardDeviation float64 `json:"standard_deviation"`
}

// defaultDescriptives matches an untrained feature: range [-1, 1], zero
// mean, unit standard deviation.
func defaultDescriptives() Descriptives {
	return Descriptives{Minimum: -1, Maximum: 1, Mean: 0, StandardDeviation: 1}
}

const numericEpsilon = 1e-12

// safeStandardDeviation clamps a degenerate standard deviation to one.
// Constant-valued features are a common, expected input in small data sets.
func (d Descriptives) safeStandardDeviation() float64 {
	if d.StandardDeviation < numericEpsilon {
		return 1
	}
	return d.StandardDeviation
}

// safeRange returns Maximum-Minimum, clamped to one when degenerate.
func (d Descriptives) safeRange() float64 {
	r := d.Maximum - d.Minimum
	if r < numericEpsilon {
		return 1
	}
	return r
}
