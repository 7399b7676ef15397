package nn

import (
	"gonum.org/v1/gonum/mat"
)

// ScalingMethod selects how a feature is normalized.
type ScalingMethod int

const (
	NoScaling             ScalingMethod = 0 // pass through
	MinimumMaximum        ScalingMethod = 1 // map [min, max] to [-1, 1]
	MeanStandardDeviation ScalingMethod = 2 // (x - mean) / std
)

var scalingMethodNames = map[ScalingMethod]string{
	NoScaling:             "NoScaling",
	MinimumMaximum:        "MinimumMaximum",
	MeanStandardDeviation: "MeanStandardDeviation",
}

func (m ScalingMethod) String() string {
	if name, ok := scalingMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseScalingMethod is the inverse of String.
func ParseScalingMethod(name string) (ScalingMethod, error) {
	for m, n := range scalingMethodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, errConfigf("ParseScalingMethod", "unknown scaling method %q", name)
}

// ScalingLayer normalizes each input feature from its descriptive
// statistics. It has no learnable parameters; neuron count equals input
// count.
type ScalingLayer struct {
	descriptives []Descriptives
	methods      []ScalingMethod
}

// NewScalingLayer creates a scaling layer for the given feature count with
// default descriptives (range [-1,1], zero mean, unit deviation) and
// min-max scaling.
func NewScalingLayer(neurons int) *ScalingLayer {
	s := &ScalingLayer{
		descriptives: make([]Descriptives, neurons),
		methods:      make([]ScalingMethod, neurons),
	}
	for i := range s.descriptives {
		s.descriptives[i] = defaultDescriptives()
		s.methods[i] = MinimumMaximum
	}
	return s
}

func (s *ScalingLayer) Kind() LayerKind    { return LayerScaling }
func (s *ScalingLayer) InputsNumber() int  { return len(s.descriptives) }
func (s *ScalingLayer) NeuronsNumber() int { return len(s.descriptives) }

// Descriptives returns a copy of the per-feature statistics.
func (s *ScalingLayer) Descriptives() []Descriptives {
	return append([]Descriptives(nil), s.descriptives...)
}

// SetDescriptives replaces the per-feature statistics.
func (s *ScalingLayer) SetDescriptives(descriptives []Descriptives) error {
	if len(descriptives) != len(s.descriptives) {
		return errConfigf("ScalingLayer.SetDescriptives",
			"got %d descriptives, layer has %d features", len(descriptives), len(s.descriptives))
	}
	copy(s.descriptives, descriptives)
	return nil
}

// Methods returns a copy of the per-feature scaling methods.
func (s *ScalingLayer) Methods() []ScalingMethod {
	return append([]ScalingMethod(nil), s.methods...)
}

// SetMethods replaces the per-feature scaling methods.
func (s *ScalingLayer) SetMethods(methods []ScalingMethod) error {
	if len(methods) != len(s.methods) {
		return errConfigf("ScalingLayer.SetMethods",
			"got %d methods, layer has %d features", len(methods), len(s.methods))
	}
	copy(s.methods, methods)
	return nil
}

// SetMethod applies one scaling method to every feature.
func (s *ScalingLayer) SetMethod(method ScalingMethod) {
	for i := range s.methods {
		s.methods[i] = method
	}
}

func (s *ScalingLayer) ParametersNumber() int { return 0 }
func (s *ScalingLayer) Parameters() []float64 { return nil }

func (s *ScalingLayer) SetParameters(params []float64, offset int) error {
	if offset < 0 || offset > len(params) {
		return errConfigf("ScalingLayer.SetParameters", "offset %d out of range", offset)
	}
	return nil
}

// scaleFactor is the constant derivative of feature i's scaling.
func (s *ScalingLayer) scaleFactor(i int) float64 {
	switch s.methods[i] {
	case MinimumMaximum:
		return 2.0 / s.descriptives[i].safeRange()
	case MeanStandardDeviation:
		return 1.0 / s.descriptives[i].safeStandardDeviation()
	default:
		return 1.0
	}
}

// Forward scales the batch feature by feature. Inputs outside the recorded
// [minimum, maximum] raise a NumericalWarning; computation continues.
func (s *ScalingLayer) Forward(inputs *mat.Dense) (*mat.Dense, *LayerRecord, error) {
	const op = "ScalingLayer.Forward"
	if err := checkLayerWidth(op, s.InputsNumber(), s.NeuronsNumber()); err != nil {
		return nil, nil, err
	}
	if err := checkBatchColumns(op, inputs, s.InputsNumber()); err != nil {
		return nil, nil, err
	}
	rows, cols := inputs.Dims()

	outputs := mat.NewDense(rows, cols, nil)
	derivatives := mat.NewDense(rows, cols, nil)
	warned := false

	for r := 0; r < rows; r++ {
		in := inputs.RawRowView(r)
		out := outputs.RawRowView(r)
		der := derivatives.RawRowView(r)
		for i := 0; i < cols; i++ {
			d := s.descriptives[i]
			if !warned && s.methods[i] == MinimumMaximum && (in[i] < d.Minimum || in[i] > d.Maximum) {
				warnf(op, "input %.4g outside recorded range [%.4g, %.4g] for feature %d",
					in[i], d.Minimum, d.Maximum, i)
				warned = true
			}
			switch s.methods[i] {
			case MinimumMaximum:
				out[i] = 2.0*(in[i]-d.Minimum)/d.safeRange() - 1.0
			case MeanStandardDeviation:
				out[i] = (in[i] - d.Mean) / d.safeStandardDeviation()
			default:
				out[i] = in[i]
			}
			der[i] = s.scaleFactor(i)
		}
	}

	record := &LayerRecord{
		Inputs:       mat.DenseCopyOf(inputs),
		Combinations: mat.DenseCopyOf(inputs),
		Activations:  mat.DenseCopyOf(outputs),
		Derivatives:  derivatives,
	}
	return outputs, record, nil
}

// CombinationJacobian returns the diagonal of constant scale factors.
func (s *ScalingLayer) CombinationJacobian(combination []float64) (*mat.Dense, error) {
	const op = "ScalingLayer.CombinationJacobian"
	if err := checkLayerWidth(op, s.InputsNumber(), s.NeuronsNumber()); err != nil {
		return nil, err
	}
	if len(combination) != s.NeuronsNumber() {
		return nil, errConfigf(op,
			"combination has length %d, layer has %d features", len(combination), s.NeuronsNumber())
	}
	factors := make([]float64, s.NeuronsNumber())
	for i := range factors {
		factors[i] = s.scaleFactor(i)
	}
	return diagFromSlice(factors), nil
}

// UnscalingLayer inverts a ScalingLayer: it maps normalized network outputs
// back to the original feature ranges.
type UnscalingLayer struct {
	descriptives []Descriptives
	methods      []ScalingMethod
}

// NewUnscalingLayer creates an unscaling layer for the given feature count
// with default descriptives and min-max unscaling.
func NewUnscalingLayer(neurons int) *UnscalingLayer {
	u := &UnscalingLayer{
		descriptives: make([]Descriptives, neurons),
		methods:      make([]ScalingMethod, neurons),
	}
	for i := range u.descriptives {
		u.descriptives[i] = defaultDescriptives()
		u.methods[i] = MinimumMaximum
	}
	return u
}

func (u *UnscalingLayer) Kind() LayerKind    { return LayerUnscaling }
func (u *UnscalingLayer) InputsNumber() int  { return len(u.descriptives) }
func (u *UnscalingLayer) NeuronsNumber() int { return len(u.descriptives) }

// Descriptives returns a copy of the per-feature statistics.
func (u *UnscalingLayer) Descriptives() []Descriptives {
	return append([]Descriptives(nil), u.descriptives...)
}

// SetDescriptives replaces the per-feature statistics.
func (u *UnscalingLayer) SetDescriptives(descriptives []Descriptives) error {
	if len(descriptives) != len(u.descriptives) {
		return errConfigf("UnscalingLayer.SetDescriptives",
			"got %d descriptives, layer has %d features", len(descriptives), len(u.descriptives))
	}
	copy(u.descriptives, descriptives)
	return nil
}

// Methods returns a copy of the per-feature unscaling methods.
func (u *UnscalingLayer) Methods() []ScalingMethod {
	return append([]ScalingMethod(nil), u.methods...)
}

// SetMethods replaces the per-feature unscaling methods.
func (u *UnscalingLayer) SetMethods(methods []ScalingMethod) error {
	if len(methods) != len(u.methods) {
		return errConfigf("UnscalingLayer.SetMethods",
			"got %d methods, layer has %d features", len(methods), len(u.methods))
	}
	copy(u.methods, methods)
	return nil
}

// SetMethod applies one unscaling method to every feature.
func (u *UnscalingLayer) SetMethod(method ScalingMethod) {
	for i := range u.methods {
		u.methods[i] = method
	}
}

func (u *UnscalingLayer) ParametersNumber() int { return 0 }
func (u *UnscalingLayer) Parameters() []float64 { return nil }

func (u *UnscalingLayer) SetParameters(params []float64, offset int) error {
	if offset < 0 || offset > len(params) {
		return errConfigf("UnscalingLayer.SetParameters", "offset %d out of range", offset)
	}
	return nil
}

func (u *UnscalingLayer) scaleFactor(i int) float64 {
	switch u.methods[i] {
	case MinimumMaximum:
		return u.descriptives[i].safeRange() / 2.0
	case MeanStandardDeviation:
		return u.descriptives[i].safeStandardDeviation()
	default:
		return 1.0
	}
}

// Forward maps normalized values back to the original feature ranges.
func (u *UnscalingLayer) Forward(inputs *mat.Dense) (*mat.Dense, *LayerRecord, error) {
	const op = "UnscalingLayer.Forward"
	if err := checkLayerWidth(op, u.InputsNumber(), u.NeuronsNumber()); err != nil {
		return nil, nil, err
	}
	if err := checkBatchColumns(op, inputs, u.InputsNumber()); err != nil {
		return nil, nil, err
	}
	rows, cols := inputs.Dims()

	outputs := mat.NewDense(rows, cols, nil)
	derivatives := mat.NewDense(rows, cols, nil)

	for r := 0; r < rows; r++ {
		in := inputs.RawRowView(r)
		out := outputs.RawRowView(r)
		der := derivatives.RawRowView(r)
		for i := 0; i < cols; i++ {
			d := u.descriptives[i]
			switch u.methods[i] {
			case MinimumMaximum:
				out[i] = d.Minimum + (in[i]+1.0)*d.safeRange()/2.0
			case MeanStandardDeviation:
				out[i] = d.Mean + in[i]*d.safeStandardDeviation()
			default:
				out[i] = in[i]
			}
			der[i] = u.scaleFactor(i)
		}
	}

	record := &LayerRecord{
		Inputs:       mat.DenseCopyOf(inputs),
		Combinations: mat.DenseCopyOf(inputs),
		Activations:  mat.DenseCopyOf(outputs),
		Derivatives:  derivatives,
	}
	return outputs, record, nil
}

// CombinationJacobian returns the diagonal of constant unscale factors.
func (u *UnscalingLayer) CombinationJacobian(combination []float64) (*mat.Dense, error) {
	const op = "UnscalingLayer.CombinationJacobian"
	if err := checkLayerWidth(op, u.InputsNumber(), u.NeuronsNumber()); err != nil {
		return nil, err
	}
	if len(combination) != u.NeuronsNumber() {
		return nil, errConfigf(op,
			"combination has length %d, layer has %d features", len(combination), u.NeuronsNumber())
	}
	factors := make([]float64, u.NeuronsNumber())
	for i := range factors {
		factors[i] = u.scaleFactor(i)
	}
	return diagFromSlice(factors), nil
}
