package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PerceptronLayer is a fully-connected feed-forward layer: each neuron
// combines the whole input vector through a weight row plus a bias, then
// applies an elementwise activation.
type PerceptronLayer struct {
	inputs  int
	neurons int

	biases  []float64 // [neurons]
	weights []float64 // [neurons*inputs], neuron-major: weights[n*inputs+i]

	activation ActivationFunction
}

// NewPerceptronLayer creates a perceptron layer with zero parameters.
// A layer with zero inputs or neurons is constructible but rejects every
// batch operation with a ConfigurationError: dense matrices cannot have a
// zero dimension.
func NewPerceptronLayer(inputs, neurons int, activation ActivationFunction) *PerceptronLayer {
	return &PerceptronLayer{
		inputs:     inputs,
		neurons:    neurons,
		biases:     make([]float64, neurons),
		weights:    make([]float64, neurons*inputs),
		activation: activation,
	}
}

func (p *PerceptronLayer) Kind() LayerKind     { return LayerPerceptron }
func (p *PerceptronLayer) InputsNumber() int   { return p.inputs }
func (p *PerceptronLayer) NeuronsNumber() int  { return p.neurons }

// ActivationFunction returns the layer's activation.
func (p *PerceptronLayer) ActivationFunction() ActivationFunction { return p.activation }

// SetActivationFunction replaces the layer's activation.
func (p *PerceptronLayer) SetActivationFunction(fn ActivationFunction) { p.activation = fn }

// ParametersNumber returns the number of learnable scalars: one bias per
// neuron plus the weight matrix.
func (p *PerceptronLayer) ParametersNumber() int {
	return p.neurons + p.neurons*p.inputs
}

// Parameters returns the biases followed by the weights, as a fresh copy.
func (p *PerceptronLayer) Parameters() []float64 {
	params := make([]float64, 0, p.ParametersNumber())
	params = append(params, p.biases...)
	params = append(params, p.weights...)
	return params
}

// SetParameters overwrites the layer's parameters from params[offset:].
func (p *PerceptronLayer) SetParameters(params []float64, offset int) error {
	n := p.ParametersNumber()
	if offset < 0 || offset+n > len(params) {
		return errConfigf("PerceptronLayer.SetParameters",
			"need %d values at offset %d, vector has %d", n, offset, len(params))
	}
	copy(p.biases, params[offset:offset+p.neurons])
	copy(p.weights, params[offset+p.neurons:offset+n])
	return nil
}

// InitializeParametersConstant sets every bias and weight to v.
func (p *PerceptronLayer) InitializeParametersConstant(v float64) {
	for i := range p.biases {
		p.biases[i] = v
	}
	for i := range p.weights {
		p.weights[i] = v
	}
}

// RandomizeParametersGlorot draws weights from the Glorot uniform
// distribution for the layer's fan-in and fan-out; biases are zeroed.
func (p *PerceptronLayer) RandomizeParametersGlorot() {
	limit := math.Sqrt(6.0 / float64(p.inputs+p.neurons))
	dist := distuv.Uniform{Min: -limit, Max: limit}
	for i := range p.weights {
		p.weights[i] = dist.Rand()
	}
	for i := range p.biases {
		p.biases[i] = 0
	}
}

// Combination computes bias + W·input for one sample.
func (p *PerceptronLayer) Combination(input []float64) []float64 {
	combination := make([]float64, p.neurons)
	for n := 0; n < p.neurons; n++ {
		sum := p.biases[n]
		row := p.weights[n*p.inputs : (n+1)*p.inputs]
		for i, w := range row {
			sum += w * input[i]
		}
		combination[n] = sum
	}
	return combination
}

// Forward propagates a batch through the layer. Rows are samples; the
// output has one row per input row and one column per neuron.
func (p *PerceptronLayer) Forward(inputs *mat.Dense) (*mat.Dense, *LayerRecord, error) {
	const op = "PerceptronLayer.Forward"
	if err := checkLayerWidth(op, p.inputs, p.neurons); err != nil {
		return nil, nil, err
	}
	if err := checkBatchColumns(op, inputs, p.inputs); err != nil {
		return nil, nil, err
	}
	rows, _ := inputs.Dims()

	combinations := mat.NewDense(rows, p.neurons, nil)
	w := mat.NewDense(p.neurons, p.inputs, p.weights)
	combinations.Mul(inputs, w.T())
	for r := 0; r < rows; r++ {
		row := combinations.RawRowView(r)
		floats.Add(row, p.biases)
		checkSaturation(op, row, p.activation)
	}

	activations := mat.NewDense(rows, p.neurons, nil)
	derivatives := mat.NewDense(rows, p.neurons, nil)
	for r := 0; r < rows; r++ {
		c := combinations.RawRowView(r)
		activateVec(activations.RawRowView(r), c, p.activation)
		activateDerivativeVec(derivatives.RawRowView(r), c, p.activation)
	}

	record := &LayerRecord{
		Inputs:       mat.DenseCopyOf(inputs),
		Combinations: combinations,
		Activations:  activations,
		Derivatives:  derivatives,
	}
	return mat.DenseCopyOf(activations), record, nil
}

// CombinationJacobian returns diag(a'(c)): the derivative of the layer's
// output with respect to its own combination.
func (p *PerceptronLayer) CombinationJacobian(combination []float64) (*mat.Dense, error) {
	const op = "PerceptronLayer.CombinationJacobian"
	if err := checkLayerWidth(op, p.inputs, p.neurons); err != nil {
		return nil, err
	}
	if len(combination) != p.neurons {
		return nil, errConfigf(op,
			"combination has length %d, layer has %d neurons", len(combination), p.neurons)
	}
	d := make([]float64, p.neurons)
	activateDerivativeVec(d, combination, p.activation)
	return diagFromSlice(d), nil
}

// PerceptronGradient holds the error gradient of one backward pass through
// a perceptron layer.
type PerceptronGradient struct {
	Biases  []float64
	Weights []float64

	// InputDeltas is the error gradient with respect to the layer's
	// inputs, for chaining into the preceding layer.
	InputDeltas *mat.Dense
}

// Flatten returns the gradient in the layer's parameter order.
func (g *PerceptronGradient) Flatten() []float64 {
	flat := make([]float64, 0, len(g.Biases)+len(g.Weights))
	flat = append(flat, g.Biases...)
	flat = append(flat, g.Weights...)
	return flat
}

// CalculateErrorGradient computes the gradient of the error with respect to
// the layer's parameters, given the forward record and the error gradient
// with respect to the layer's outputs. Contributions are summed over the
// batch rows.
func (p *PerceptronLayer) CalculateErrorGradient(record *LayerRecord, outputDeltas *mat.Dense) (*PerceptronGradient, error) {
	rows, cols := outputDeltas.Dims()
	recRows, _ := record.Activations.Dims()
	if cols != p.neurons || rows != recRows {
		return nil, errConfigf("PerceptronLayer.CalculateErrorGradient",
			"deltas are %dx%d, record holds %d rows of %d neurons", rows, cols, recRows, p.neurons)
	}

	grad := &PerceptronGradient{
		Biases:      make([]float64, p.neurons),
		Weights:     make([]float64, p.neurons*p.inputs),
		InputDeltas: mat.NewDense(rows, p.inputs, nil),
	}

	for r := 0; r < rows; r++ {
		input := record.Inputs.RawRowView(r)
		derivative := record.Derivatives.RawRowView(r)
		delta := outputDeltas.RawRowView(r)
		inputDelta := grad.InputDeltas.RawRowView(r)

		for n := 0; n < p.neurons; n++ {
			// Chain through the elementwise activation.
			d := delta[n] * derivative[n]
			grad.Biases[n] += d
			row := p.weights[n*p.inputs : (n+1)*p.inputs]
			for i := 0; i < p.inputs; i++ {
				grad.Weights[n*p.inputs+i] += d * input[i]
				inputDelta[i] += d * row[i]
			}
		}
	}
	return grad, nil
}

// GrowInput appends one input to the layer. The new weight column is
// zero-initialized; existing parameters are untouched.
func (p *PerceptronLayer) GrowInput() {
	grown := make([]float64, p.neurons*(p.inputs+1))
	for n := 0; n < p.neurons; n++ {
		copy(grown[n*(p.inputs+1):], p.weights[n*p.inputs:(n+1)*p.inputs])
	}
	p.weights = grown
	p.inputs++
}

// PruneInput removes input index from the layer. The last input cannot be
// removed.
func (p *PerceptronLayer) PruneInput(index int) error {
	if p.inputs == 1 {
		return errStructf("PerceptronLayer.PruneInput", "cannot remove the last input")
	}
	if index < 0 || index >= p.inputs {
		return errStructf("PerceptronLayer.PruneInput",
			"input index %d out of range [0, %d)", index, p.inputs)
	}
	pruned := make([]float64, p.neurons*(p.inputs-1))
	for n := 0; n < p.neurons; n++ {
		dst := pruned[n*(p.inputs-1):]
		src := p.weights[n*p.inputs : (n+1)*p.inputs]
		copy(dst, src[:index])
		copy(dst[index:], src[index+1:])
	}
	p.weights = pruned
	p.inputs--
	return nil
}

// GrowNeuron appends one neuron with zero bias and zero weights.
func (p *PerceptronLayer) GrowNeuron() {
	p.biases = append(p.biases, 0)
	p.weights = append(p.weights, make([]float64, p.inputs)...)
	p.neurons++
}

// PruneNeuron removes neuron index from the layer. The last neuron cannot
// be removed.
func (p *PerceptronLayer) PruneNeuron(index int) error {
	if p.neurons == 1 {
		return errStructf("PerceptronLayer.PruneNeuron", "cannot remove the last neuron")
	}
	if index < 0 || index >= p.neurons {
		return errStructf("PerceptronLayer.PruneNeuron",
			"neuron index %d out of range [0, %d)", index, p.neurons)
	}
	p.biases = append(p.biases[:index], p.biases[index+1:]...)
	p.weights = append(p.weights[:index*p.inputs], p.weights[(index+1)*p.inputs:]...)
	p.neurons--
	return nil
}
