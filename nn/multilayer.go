package nn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MultilayerPerceptron owns an ordered sequence of heterogeneous layers and
// chains each layer's output into the next layer's input. It aggregates all
// learnable parameters into one flat vector for optimizer drivers, and
// propagates Jacobians and Hessian forms for sensitivity analysis.
//
// The flattened parameter vector is a single logical resource; reader and
// writer access is expected to be serialized externally by the training
// loop. The composition itself performs no locking.
type MultilayerPerceptron struct {
	layers []Layer
}

// NewMultilayerPerceptron builds a chain of perceptron layers from an
// architecture vector [inputs, n1, ..., nN] and one activation per layer.
// A single activation is broadcast to every layer.
func NewMultilayerPerceptron(architecture []int, activations ...ActivationFunction) (*MultilayerPerceptron, error) {
	const op = "NewMultilayerPerceptron"
	if len(architecture) < 2 {
		return nil, errConfigf(op, "architecture needs at least inputs and one layer, got %v", architecture)
	}
	for _, n := range architecture {
		if n < 1 {
			return nil, errConfigf(op, "architecture %v has a non-positive layer size", architecture)
		}
	}
	layersNumber := len(architecture) - 1
	if len(activations) != 1 && len(activations) != layersNumber {
		return nil, errConfigf(op, "got %d activations for %d layers", len(activations), layersNumber)
	}

	layers := make([]Layer, layersNumber)
	for i := 0; i < layersNumber; i++ {
		fn := activations[0]
		if len(activations) == layersNumber {
			fn = activations[i]
		}
		layers[i] = NewPerceptronLayer(architecture[i], architecture[i+1], fn)
	}
	return &MultilayerPerceptron{layers: layers}, nil
}

// NewComposition builds a multilayer composition from explicit layers,
// validating that each layer's input count matches its predecessor's neuron
// count.
func NewComposition(layers ...Layer) (*MultilayerPerceptron, error) {
	const op = "NewComposition"
	if len(layers) == 0 {
		return nil, errConfigf(op, "composition needs at least one layer")
	}
	for i, layer := range layers {
		if layer.InputsNumber() < 1 || layer.NeuronsNumber() < 1 {
			return nil, errConfigf(op, "layer %d has %d inputs and %d neurons, both must be positive",
				i, layer.InputsNumber(), layer.NeuronsNumber())
		}
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].InputsNumber() != layers[i-1].NeuronsNumber() {
			return nil, errConfigf(op,
				"layer %d expects %d inputs but layer %d has %d neurons",
				i, layers[i].InputsNumber(), i-1, layers[i-1].NeuronsNumber())
		}
	}
	return &MultilayerPerceptron{layers: layers}, nil
}

// LayersNumber returns the number of layers.
func (m *MultilayerPerceptron) LayersNumber() int { return len(m.layers) }

// Layer returns layer index, or nil when out of range.
func (m *MultilayerPerceptron) Layer(index int) Layer {
	if index < 0 || index >= len(m.layers) {
		return nil
	}
	return m.layers[index]
}

// InputsNumber returns the input count of the first layer.
func (m *MultilayerPerceptron) InputsNumber() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[0].InputsNumber()
}

// OutputsNumber returns the neuron count of the last layer.
func (m *MultilayerPerceptron) OutputsNumber() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[len(m.layers)-1].NeuronsNumber()
}

// Architecture returns [inputs, n1, ..., nN]. The vector is derived from
// the layers, never stored.
func (m *MultilayerPerceptron) Architecture() []int {
	if len(m.layers) == 0 {
		return nil
	}
	architecture := make([]int, len(m.layers)+1)
	architecture[0] = m.layers[0].InputsNumber()
	for i, layer := range m.layers {
		architecture[i+1] = layer.NeuronsNumber()
	}
	return architecture
}

// ParametersNumber returns the total learnable-scalar count.
func (m *MultilayerPerceptron) ParametersNumber() int {
	total := 0
	for _, layer := range m.layers {
		total += layer.ParametersNumber()
	}
	return total
}

// LayerParameterOffsets returns the index where each layer's parameters
// begin in the flat vector: offsets[i] is the sum of the parameter counts
// of layers 0..i-1.
func (m *MultilayerPerceptron) LayerParameterOffsets() []int {
	offsets := make([]int, len(m.layers))
	total := 0
	for i, layer := range m.layers {
		offsets[i] = total
		total += layer.ParametersNumber()
	}
	return offsets
}

// Parameters flattens every layer's parameters into one vector, in layer
// order.
func (m *MultilayerPerceptron) Parameters() []float64 {
	params := make([]float64, 0, m.ParametersNumber())
	for _, layer := range m.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// SetParameters slices the flat vector back into per-layer assignments by
// the precomputed offsets. The length is validated before any layer is
// mutated; sub-range writes cannot alias across layer boundaries.
func (m *MultilayerPerceptron) SetParameters(params []float64) error {
	if len(params) != m.ParametersNumber() {
		return errConfigf("MultilayerPerceptron.SetParameters",
			"vector has %d values, composition has %d parameters", len(params), m.ParametersNumber())
	}
	offsets := m.LayerParameterOffsets()
	for i, layer := range m.layers {
		if err := layer.SetParameters(params, offsets[i]); err != nil {
			return err
		}
	}
	return nil
}

// InitializeParametersConstant sets every learnable parameter to v.
func (m *MultilayerPerceptron) InitializeParametersConstant(v float64) {
	for _, layer := range m.layers {
		switch l := layer.(type) {
		case *PerceptronLayer:
			l.InitializeParametersConstant(v)
		case *LSTMLayer:
			l.InitializeParametersConstant(v)
		}
	}
}

// RandomizeParametersGlorot draws every layer's weights from its Glorot
// distribution.
func (m *MultilayerPerceptron) RandomizeParametersGlorot() {
	for _, layer := range m.layers {
		switch l := layer.(type) {
		case *PerceptronLayer:
			l.RandomizeParametersGlorot()
		case *LSTMLayer:
			l.RandomizeParametersGlorot()
		}
	}
}

// Forward propagates a batch through every layer in order and returns the
// final output plus the per-layer records needed by backward passes.
func (m *MultilayerPerceptron) Forward(inputs *mat.Dense) (*mat.Dense, []*LayerRecord, error) {
	if len(m.layers) == 0 {
		return nil, nil, errConfigf("MultilayerPerceptron.Forward", "composition is empty")
	}
	records := make([]*LayerRecord, len(m.layers))
	current := inputs
	for i, layer := range m.layers {
		output, record, err := layer.Forward(current)
		if err != nil {
			return nil, nil, err
		}
		records[i] = record
		current = output
	}
	return current, records, nil
}

// Outputs propagates a batch and returns only the final output.
func (m *MultilayerPerceptron) Outputs(inputs *mat.Dense) (*mat.Dense, error) {
	outputs, _, err := m.Forward(inputs)
	return outputs, err
}

// CalculateErrorGradient backpropagates outputDeltas (the error gradient
// with respect to the final layer's outputs) through every layer and
// returns the gradient over the flat parameter vector, aligned with
// Parameters. Layers without learnable parameters contribute only delta
// chaining.
func (m *MultilayerPerceptron) CalculateErrorGradient(records []*LayerRecord, outputDeltas *mat.Dense) ([]float64, error) {
	const op = "MultilayerPerceptron.CalculateErrorGradient"
	if len(records) != len(m.layers) {
		return nil, errConfigf(op, "got %d records for %d layers", len(records), len(m.layers))
	}

	gradient := make([]float64, m.ParametersNumber())
	offsets := m.LayerParameterOffsets()
	deltas := outputDeltas

	for i := len(m.layers) - 1; i >= 0; i-- {
		switch layer := m.layers[i].(type) {
		case *PerceptronLayer:
			grad, err := layer.CalculateErrorGradient(records[i], deltas)
			if err != nil {
				return nil, err
			}
			copy(gradient[offsets[i]:], grad.Flatten())
			deltas = grad.InputDeltas
		case *LSTMLayer:
			grad, err := layer.CalculateErrorGradient(records[i], deltas)
			if err != nil {
				return nil, err
			}
			copy(gradient[offsets[i]:], grad.Flatten())
			deltas = grad.InputDeltas
		case *ScalingLayer, *UnscalingLayer:
			scaled, err := chainDiagonalDeltas(m.layers[i], records[i], deltas)
			if err != nil {
				return nil, err
			}
			deltas = scaled
		default:
			return nil, errConfigf(op, "layer %d has unsupported kind %s", i, m.layers[i].Kind())
		}
	}
	return gradient, nil
}

// chainDiagonalDeltas propagates deltas through a layer whose Jacobian is a
// constant diagonal (the scaling kinds).
func chainDiagonalDeltas(layer Layer, record *LayerRecord, deltas *mat.Dense) (*mat.Dense, error) {
	rows, cols := deltas.Dims()
	if cols != layer.NeuronsNumber() {
		return nil, errConfigf("chainDiagonalDeltas",
			"deltas have %d columns, layer has %d neurons", cols, layer.NeuronsNumber())
	}
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		floats.MulTo(out.RawRowView(r), deltas.RawRowView(r), record.Derivatives.RawRowView(r))
	}
	return out, nil
}
