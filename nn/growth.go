package nn

// Structural growth and pruning: adding or removing one input or one neuron
// adjusts the changed layer's matrix dimensions and the following layer's
// input-facing columns, while preserving every unaffected weight and bias.
// New rows and columns are zero-initialized.

// growMatrixColumn returns m with one zero column appended to each row.
func growMatrixColumn(m []float64, rows, cols int) []float64 {
	grown := make([]float64, rows*(cols+1))
	for r := 0; r < rows; r++ {
		copy(grown[r*(cols+1):], m[r*cols:(r+1)*cols])
	}
	return grown
}

// pruneMatrixColumn returns m with column index removed from each row.
func pruneMatrixColumn(m []float64, rows, cols, index int) []float64 {
	pruned := make([]float64, rows*(cols-1))
	for r := 0; r < rows; r++ {
		dst := pruned[r*(cols-1):]
		src := m[r*cols : (r+1)*cols]
		copy(dst, src[:index])
		copy(dst[index:], src[index+1:])
	}
	return pruned
}

// pruneMatrixRow returns m with row index removed.
func pruneMatrixRow(m []float64, cols, index int) []float64 {
	return append(m[:index*cols:index*cols], m[(index+1)*cols:]...)
}

// growSquareMatrix returns m grown from n x n to (n+1) x (n+1) with a zero
// new row and column.
func growSquareMatrix(m []float64, n int) []float64 {
	grown := make([]float64, (n+1)*(n+1))
	for r := 0; r < n; r++ {
		copy(grown[r*(n+1):], m[r*n:(r+1)*n])
	}
	return grown
}

// pruneSquareMatrix removes row and column index from an n x n matrix.
func pruneSquareMatrix(m []float64, n, index int) []float64 {
	pruned := make([]float64, (n-1)*(n-1))
	pr := 0
	for r := 0; r < n; r++ {
		if r == index {
			continue
		}
		dst := pruned[pr*(n-1):]
		src := m[r*n : (r+1)*n]
		copy(dst, src[:index])
		copy(dst[index:], src[index+1:])
		pr++
	}
	return pruned
}

// GrowInput appends one input to the layer: each of the four weight
// matrices gains a zero column.
func (l *LSTMLayer) GrowInput() {
	l.forgetWeights = growMatrixColumn(l.forgetWeights, l.neurons, l.inputs)
	l.inputWeights = growMatrixColumn(l.inputWeights, l.neurons, l.inputs)
	l.stateWeights = growMatrixColumn(l.stateWeights, l.neurons, l.inputs)
	l.outputWeights = growMatrixColumn(l.outputWeights, l.neurons, l.inputs)
	l.inputs++
}

// PruneInput removes input index from the layer. The last input cannot be
// removed.
func (l *LSTMLayer) PruneInput(index int) error {
	if l.inputs == 1 {
		return errStructf("LSTMLayer.PruneInput", "cannot remove the last input")
	}
	if index < 0 || index >= l.inputs {
		return errStructf("LSTMLayer.PruneInput",
			"input index %d out of range [0, %d)", index, l.inputs)
	}
	l.forgetWeights = pruneMatrixColumn(l.forgetWeights, l.neurons, l.inputs, index)
	l.inputWeights = pruneMatrixColumn(l.inputWeights, l.neurons, l.inputs, index)
	l.stateWeights = pruneMatrixColumn(l.stateWeights, l.neurons, l.inputs, index)
	l.outputWeights = pruneMatrixColumn(l.outputWeights, l.neurons, l.inputs, index)
	l.inputs--
	return nil
}

// GrowNeuron appends one neuron: every bias vector, weight matrix row set,
// recurrent matrix and state vector grows by one, zero-initialized.
func (l *LSTMLayer) GrowNeuron() {
	l.forgetBiases = append(l.forgetBiases, 0)
	l.inputBiases = append(l.inputBiases, 0)
	l.stateBiases = append(l.stateBiases, 0)
	l.outputBiases = append(l.outputBiases, 0)

	zeroRow := make([]float64, l.inputs)
	l.forgetWeights = append(l.forgetWeights, zeroRow...)
	l.inputWeights = append(l.inputWeights, zeroRow...)
	l.stateWeights = append(l.stateWeights, zeroRow...)
	l.outputWeights = append(l.outputWeights, zeroRow...)

	l.forgetRecurrentWeights = growSquareMatrix(l.forgetRecurrentWeights, l.neurons)
	l.inputRecurrentWeights = growSquareMatrix(l.inputRecurrentWeights, l.neurons)
	l.stateRecurrentWeights = growSquareMatrix(l.stateRecurrentWeights, l.neurons)
	l.outputRecurrentWeights = growSquareMatrix(l.outputRecurrentWeights, l.neurons)

	l.initialHidden = append(l.initialHidden, 0)
	l.initialCell = append(l.initialCell, 0)
	l.hiddenStates = append(l.hiddenStates, 0)
	l.cellStates = append(l.cellStates, 0)

	l.neurons++
}

// PruneNeuron removes neuron index from the layer. The last neuron cannot
// be removed.
func (l *LSTMLayer) PruneNeuron(index int) error {
	if l.neurons == 1 {
		return errStructf("LSTMLayer.PruneNeuron", "cannot remove the last neuron")
	}
	if index < 0 || index >= l.neurons {
		return errStructf("LSTMLayer.PruneNeuron",
			"neuron index %d out of range [0, %d)", index, l.neurons)
	}

	l.forgetBiases = append(l.forgetBiases[:index], l.forgetBiases[index+1:]...)
	l.inputBiases = append(l.inputBiases[:index], l.inputBiases[index+1:]...)
	l.stateBiases = append(l.stateBiases[:index], l.stateBiases[index+1:]...)
	l.outputBiases = append(l.outputBiases[:index], l.outputBiases[index+1:]...)

	l.forgetWeights = pruneMatrixRow(l.forgetWeights, l.inputs, index)
	l.inputWeights = pruneMatrixRow(l.inputWeights, l.inputs, index)
	l.stateWeights = pruneMatrixRow(l.stateWeights, l.inputs, index)
	l.outputWeights = pruneMatrixRow(l.outputWeights, l.inputs, index)

	l.forgetRecurrentWeights = pruneSquareMatrix(l.forgetRecurrentWeights, l.neurons, index)
	l.inputRecurrentWeights = pruneSquareMatrix(l.inputRecurrentWeights, l.neurons, index)
	l.stateRecurrentWeights = pruneSquareMatrix(l.stateRecurrentWeights, l.neurons, index)
	l.outputRecurrentWeights = pruneSquareMatrix(l.outputRecurrentWeights, l.neurons, index)

	l.initialHidden = append(l.initialHidden[:index], l.initialHidden[index+1:]...)
	l.initialCell = append(l.initialCell[:index], l.initialCell[index+1:]...)
	l.hiddenStates = append(l.hiddenStates[:index], l.hiddenStates[index+1:]...)
	l.cellStates = append(l.cellStates[:index], l.cellStates[index+1:]...)

	l.neurons--
	return nil
}

// structuralLayer is the subset of layer kinds whose dimensions can change
// after construction. The scaling kinds are excluded: their width is fixed
// by the supplied descriptive statistics.
type structuralLayer interface {
	GrowInput()
	PruneInput(index int) error
	GrowNeuron()
	PruneNeuron(index int) error
}

func structural(op string, layer Layer, index int) (structuralLayer, error) {
	s, ok := layer.(structuralLayer)
	if !ok {
		return nil, errStructf(op, "layer %d is %s, which has fixed dimensions", index, layer.Kind())
	}
	return s, nil
}

// GrowInput appends one input to the composition's first layer.
func (m *MultilayerPerceptron) GrowInput() error {
	const op = "MultilayerPerceptron.GrowInput"
	if len(m.layers) == 0 {
		return errStructf(op, "composition is empty")
	}
	s, err := structural(op, m.layers[0], 0)
	if err != nil {
		return err
	}
	s.GrowInput()
	return nil
}

// PruneInput removes input index from the composition's first layer.
func (m *MultilayerPerceptron) PruneInput(index int) error {
	const op = "MultilayerPerceptron.PruneInput"
	if len(m.layers) == 0 {
		return errStructf(op, "composition is empty")
	}
	s, err := structural(op, m.layers[0], 0)
	if err != nil {
		return err
	}
	return s.PruneInput(index)
}

// GrowLayerNeuron appends one neuron to layer layerIndex and one
// zero-initialized input column to the following layer.
func (m *MultilayerPerceptron) GrowLayerNeuron(layerIndex int) error {
	const op = "MultilayerPerceptron.GrowLayerNeuron"
	if layerIndex < 0 || layerIndex >= len(m.layers) {
		return errStructf(op, "layer index %d out of range [0, %d)", layerIndex, len(m.layers))
	}
	s, err := structural(op, m.layers[layerIndex], layerIndex)
	if err != nil {
		return err
	}
	var next structuralLayer
	if layerIndex+1 < len(m.layers) {
		next, err = structural(op, m.layers[layerIndex+1], layerIndex+1)
		if err != nil {
			return err
		}
	}
	s.GrowNeuron()
	if next != nil {
		next.GrowInput()
	}
	return nil
}

// PruneLayerNeuron removes neuron neuronIndex from layer layerIndex and the
// matching input column from the following layer. Removing a layer's last
// neuron is rejected: for a non-terminal layer it would disconnect the
// chain, and no layer may shrink to zero width.
func (m *MultilayerPerceptron) PruneLayerNeuron(layerIndex, neuronIndex int) error {
	const op = "MultilayerPerceptron.PruneLayerNeuron"
	if layerIndex < 0 || layerIndex >= len(m.layers) {
		return errStructf(op, "layer index %d out of range [0, %d)", layerIndex, len(m.layers))
	}
	layer := m.layers[layerIndex]
	if neuronIndex < 0 || neuronIndex >= layer.NeuronsNumber() {
		return errStructf(op, "neuron index %d out of range [0, %d)", neuronIndex, layer.NeuronsNumber())
	}
	if layerIndex+1 < len(m.layers) && layer.NeuronsNumber() == 1 {
		return errStructf(op, "removing the last neuron of layer %d would disconnect the chain", layerIndex)
	}
	s, err := structural(op, layer, layerIndex)
	if err != nil {
		return err
	}
	var next structuralLayer
	if layerIndex+1 < len(m.layers) {
		next, err = structural(op, m.layers[layerIndex+1], layerIndex+1)
		if err != nil {
			return err
		}
	}
	if err := s.PruneNeuron(neuronIndex); err != nil {
		return err
	}
	if next != nil {
		return next.PruneInput(neuronIndex)
	}
	return nil
}
