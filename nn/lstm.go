package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// defaultTimesteps is the sequence length an LSTM layer starts with.
const defaultTimesteps = 10

// LSTMLayer is a recurrent layer with forget, input, state (candidate) and
// output gates. Hidden and cell state persist across the timesteps of one
// sequence and reset at every sequence boundary.
//
// The layer owns its recurrent state: it is not shareable across
// concurrently processed sequences. Callers parallelizing over independent
// sequences must use one layer instance per goroutine.
type LSTMLayer struct {
	inputs    int
	neurons   int
	timesteps int

	forgetBiases []float64 // [neurons]
	inputBiases  []float64
	stateBiases  []float64
	outputBiases []float64

	forgetWeights []float64 // [neurons*inputs], neuron-major
	inputWeights  []float64
	stateWeights  []float64
	outputWeights []float64

	forgetRecurrentWeights []float64 // [neurons*neurons], neuron-major
	inputRecurrentWeights  []float64
	stateRecurrentWeights  []float64
	outputRecurrentWeights []float64

	// activation shapes the candidate path and the cell output;
	// recurrentActivation shapes the three sigmoid-family gates.
	activation          ActivationFunction
	recurrentActivation ActivationFunction

	// initialHidden and initialCell seed the recurrence at every
	// sequence boundary; hiddenStates and cellStates are the working
	// state, mutated every timestep.
	initialHidden []float64
	initialCell   []float64
	hiddenStates  []float64
	cellStates    []float64
}

// NewLSTMLayer creates an LSTM layer with zero parameters, zero initial
// state, HyperbolicTangent activation and HardSigmoid gate activation.
func NewLSTMLayer(inputs, neurons int) *LSTMLayer {
	return &LSTMLayer{
		inputs:    inputs,
		neurons:   neurons,
		timesteps: defaultTimesteps,

		forgetBiases: make([]float64, neurons),
		inputBiases:  make([]float64, neurons),
		stateBiases:  make([]float64, neurons),
		outputBiases: make([]float64, neurons),

		forgetWeights: make([]float64, neurons*inputs),
		inputWeights:  make([]float64, neurons*inputs),
		stateWeights:  make([]float64, neurons*inputs),
		outputWeights: make([]float64, neurons*inputs),

		forgetRecurrentWeights: make([]float64, neurons*neurons),
		inputRecurrentWeights:  make([]float64, neurons*neurons),
		stateRecurrentWeights:  make([]float64, neurons*neurons),
		outputRecurrentWeights: make([]float64, neurons*neurons),

		activation:          HyperbolicTangent,
		recurrentActivation: HardSigmoid,

		initialHidden: make([]float64, neurons),
		initialCell:   make([]float64, neurons),
		hiddenStates:  make([]float64, neurons),
		cellStates:    make([]float64, neurons),
	}
}

func (l *LSTMLayer) Kind() LayerKind    { return LayerLSTM }
func (l *LSTMLayer) InputsNumber() int  { return l.inputs }
func (l *LSTMLayer) NeuronsNumber() int { return l.neurons }

// Timesteps returns the configured sequence length.
func (l *LSTMLayer) Timesteps() int { return l.timesteps }

// SetTimesteps configures the sequence length.
func (l *LSTMLayer) SetTimesteps(timesteps int) error {
	if timesteps < 1 {
		return errConfigf("LSTMLayer.SetTimesteps", "timesteps must be positive, got %d", timesteps)
	}
	l.timesteps = timesteps
	return nil
}

// ActivationFunction returns the candidate-path activation.
func (l *LSTMLayer) ActivationFunction() ActivationFunction { return l.activation }

// RecurrentActivationFunction returns the gate activation.
func (l *LSTMLayer) RecurrentActivationFunction() ActivationFunction { return l.recurrentActivation }

// SetActivationFunction replaces the candidate-path activation.
func (l *LSTMLayer) SetActivationFunction(fn ActivationFunction) { l.activation = fn }

// SetRecurrentActivationFunction replaces the gate activation.
func (l *LSTMLayer) SetRecurrentActivationFunction(fn ActivationFunction) { l.recurrentActivation = fn }

// ResetState restores the working hidden and cell state to the configured
// initial values. Forward calls this at every sequence boundary.
func (l *LSTMLayer) ResetState() {
	copy(l.hiddenStates, l.initialHidden)
	copy(l.cellStates, l.initialCell)
}

// InitializeHiddenStates sets every component of the initial hidden state.
func (l *LSTMLayer) InitializeHiddenStates(v float64) {
	for i := range l.initialHidden {
		l.initialHidden[i] = v
	}
	copy(l.hiddenStates, l.initialHidden)
}

// InitializeCellStates sets every component of the initial cell state.
func (l *LSTMLayer) InitializeCellStates(v float64) {
	for i := range l.initialCell {
		l.initialCell[i] = v
	}
	copy(l.cellStates, l.initialCell)
}

// HiddenStates returns a copy of the current working hidden state.
func (l *LSTMLayer) HiddenStates() []float64 {
	return append([]float64(nil), l.hiddenStates...)
}

// CellStates returns a copy of the current working cell state.
func (l *LSTMLayer) CellStates() []float64 {
	return append([]float64(nil), l.cellStates...)
}

// biasGroups, weightGroups and recurrentGroups fix the canonical parameter
// flattening order: forget, input, state, output.
func (l *LSTMLayer) biasGroups() [][]float64 {
	return [][]float64{l.forgetBiases, l.inputBiases, l.stateBiases, l.outputBiases}
}

func (l *LSTMLayer) weightGroups() [][]float64 {
	return [][]float64{l.forgetWeights, l.inputWeights, l.stateWeights, l.outputWeights}
}

func (l *LSTMLayer) recurrentGroups() [][]float64 {
	return [][]float64{l.forgetRecurrentWeights, l.inputRecurrentWeights,
		l.stateRecurrentWeights, l.outputRecurrentWeights}
}

// ParametersNumber returns the number of learnable scalars across the four
// bias vectors, four weight matrices and four recurrent weight matrices.
func (l *LSTMLayer) ParametersNumber() int {
	return 4*l.neurons + 4*l.neurons*l.inputs + 4*l.neurons*l.neurons
}

// Parameters returns all parameters in the canonical order: the four bias
// groups, then the four weight groups, then the four recurrent groups.
func (l *LSTMLayer) Parameters() []float64 {
	params := make([]float64, 0, l.ParametersNumber())
	for _, g := range l.biasGroups() {
		params = append(params, g...)
	}
	for _, g := range l.weightGroups() {
		params = append(params, g...)
	}
	for _, g := range l.recurrentGroups() {
		params = append(params, g...)
	}
	return params
}

// SetParameters overwrites the layer's parameters from params[offset:],
// in the same order Parameters produces.
func (l *LSTMLayer) SetParameters(params []float64, offset int) error {
	n := l.ParametersNumber()
	if offset < 0 || offset+n > len(params) {
		return errConfigf("LSTMLayer.SetParameters",
			"need %d values at offset %d, vector has %d", n, offset, len(params))
	}
	pos := offset
	for _, groups := range [][][]float64{l.biasGroups(), l.weightGroups(), l.recurrentGroups()} {
		for _, g := range groups {
			copy(g, params[pos:pos+len(g)])
			pos += len(g)
		}
	}
	return nil
}

// InitializeParametersConstant sets every bias and weight to v.
func (l *LSTMLayer) InitializeParametersConstant(v float64) {
	for _, groups := range [][][]float64{l.biasGroups(), l.weightGroups(), l.recurrentGroups()} {
		for _, g := range groups {
			for i := range g {
				g[i] = v
			}
		}
	}
}

// RandomizeParametersGlorot draws weights from Glorot uniform distributions
// sized for each matrix; biases are zeroed except the forget biases, which
// start at one so the layer remembers by default.
func (l *LSTMLayer) RandomizeParametersGlorot() {
	weightDist := distuv.Uniform{
		Min: -math.Sqrt(6.0 / float64(l.inputs+l.neurons)),
		Max: math.Sqrt(6.0 / float64(l.inputs+l.neurons)),
	}
	recurrentDist := distuv.Uniform{
		Min: -math.Sqrt(6.0 / float64(2*l.neurons)),
		Max: math.Sqrt(6.0 / float64(2*l.neurons)),
	}
	for _, g := range l.weightGroups() {
		for i := range g {
			g[i] = weightDist.Rand()
		}
	}
	for _, g := range l.recurrentGroups() {
		for i := range g {
			g[i] = recurrentDist.Rand()
		}
	}
	for _, g := range l.biasGroups() {
		for i := range g {
			g[i] = 0
		}
	}
	for i := range l.forgetBiases {
		l.forgetBiases[i] = 1
	}
}

// gateCombination computes bias + W·x + R·hPrevious for one gate.
func gateCombination(dst, biases, weights, recurrent, x, hPrevious []float64, inputs int) {
	neurons := len(biases)
	for n := 0; n < neurons; n++ {
		sum := biases[n]
		wRow := weights[n*inputs : (n+1)*inputs]
		for i, w := range wRow {
			sum += w * x[i]
		}
		rRow := recurrent[n*neurons : (n+1)*neurons]
		for j, r := range rRow {
			sum += r * hPrevious[j]
		}
		dst[n] = sum
	}
}

// LSTMRecord holds the per-timestep intermediates of one forward pass over
// a batch, as required by backpropagation through time. Rows align with the
// input batch rows.
type LSTMRecord struct {
	Inputs *mat.Dense

	ForgetCombinations *mat.Dense
	InputCombinations  *mat.Dense
	StateCombinations  *mat.Dense
	OutputCombinations *mat.Dense

	ForgetActivations *mat.Dense
	InputActivations  *mat.Dense
	StateActivations  *mat.Dense
	OutputActivations *mat.Dense

	ForgetDerivatives *mat.Dense
	InputDerivatives  *mat.Dense
	StateDerivatives  *mat.Dense
	OutputDerivatives *mat.Dense

	// CellStates and HiddenStates hold the state after each timestep.
	CellStates   *mat.Dense
	HiddenStates *mat.Dense

	// CellActivations is a(c_t); CellDerivatives is a'(c_t).
	CellActivations *mat.Dense
	CellDerivatives *mat.Dense

	// InitialHidden and InitialCell are the reset values that seeded
	// every sequence in this pass.
	InitialHidden []float64
	InitialCell   []float64
}

// Forward propagates a batch of ordered timestep observations. Each row is
// one timestep's feature vector; every block of Timesteps consecutive rows
// is an independent sequence, and the hidden and cell state reset to the
// configured initial values at each block boundary.
//
// The output has one row per input row: the hidden state after that
// timestep. The final state of each sequence is therefore the last row of
// its block. The returned record carries everything CalculateErrorGradient
// needs.
func (l *LSTMLayer) Forward(inputs *mat.Dense) (*mat.Dense, *LayerRecord, error) {
	const op = "LSTMLayer.Forward"
	if err := checkLayerWidth(op, l.inputs, l.neurons); err != nil {
		return nil, nil, err
	}
	if err := checkBatchColumns(op, inputs, l.inputs); err != nil {
		return nil, nil, err
	}
	rows, _ := inputs.Dims()
	if l.timesteps < 1 {
		return nil, nil, errConfigf(op, "timesteps must be positive, got %d", l.timesteps)
	}
	if rows%l.timesteps != 0 {
		return nil, nil, errConfigf(op,
			"batch has %d rows, not a multiple of %d timesteps", rows, l.timesteps)
	}

	rec := &LSTMRecord{
		Inputs: mat.DenseCopyOf(inputs),

		ForgetCombinations: mat.NewDense(rows, l.neurons, nil),
		InputCombinations:  mat.NewDense(rows, l.neurons, nil),
		StateCombinations:  mat.NewDense(rows, l.neurons, nil),
		OutputCombinations: mat.NewDense(rows, l.neurons, nil),

		ForgetActivations: mat.NewDense(rows, l.neurons, nil),
		InputActivations:  mat.NewDense(rows, l.neurons, nil),
		StateActivations:  mat.NewDense(rows, l.neurons, nil),
		OutputActivations: mat.NewDense(rows, l.neurons, nil),

		ForgetDerivatives: mat.NewDense(rows, l.neurons, nil),
		InputDerivatives:  mat.NewDense(rows, l.neurons, nil),
		StateDerivatives:  mat.NewDense(rows, l.neurons, nil),
		OutputDerivatives: mat.NewDense(rows, l.neurons, nil),

		CellStates:   mat.NewDense(rows, l.neurons, nil),
		HiddenStates: mat.NewDense(rows, l.neurons, nil),

		CellActivations: mat.NewDense(rows, l.neurons, nil),
		CellDerivatives: mat.NewDense(rows, l.neurons, nil),

		InitialHidden: append([]float64(nil), l.initialHidden...),
		InitialCell:   append([]float64(nil), l.initialCell...),
	}

	hPrevious := make([]float64, l.neurons)

	for r := 0; r < rows; r++ {
		if r%l.timesteps == 0 {
			l.ResetState()
		}
		copy(hPrevious, l.hiddenStates)
		x := inputs.RawRowView(r)

		forgetComb := rec.ForgetCombinations.RawRowView(r)
		inputComb := rec.InputCombinations.RawRowView(r)
		stateComb := rec.StateCombinations.RawRowView(r)
		outputComb := rec.OutputCombinations.RawRowView(r)

		gateCombination(forgetComb, l.forgetBiases, l.forgetWeights, l.forgetRecurrentWeights, x, hPrevious, l.inputs)
		gateCombination(inputComb, l.inputBiases, l.inputWeights, l.inputRecurrentWeights, x, hPrevious, l.inputs)
		gateCombination(stateComb, l.stateBiases, l.stateWeights, l.stateRecurrentWeights, x, hPrevious, l.inputs)
		gateCombination(outputComb, l.outputBiases, l.outputWeights, l.outputRecurrentWeights, x, hPrevious, l.inputs)

		checkSaturation(op, forgetComb, l.recurrentActivation)
		checkSaturation(op, stateComb, l.activation)

		forgetAct := rec.ForgetActivations.RawRowView(r)
		inputAct := rec.InputActivations.RawRowView(r)
		stateAct := rec.StateActivations.RawRowView(r)
		outputAct := rec.OutputActivations.RawRowView(r)

		activateVec(forgetAct, forgetComb, l.recurrentActivation)
		activateVec(inputAct, inputComb, l.recurrentActivation)
		activateVec(stateAct, stateComb, l.activation)
		activateVec(outputAct, outputComb, l.recurrentActivation)

		activateDerivativeVec(rec.ForgetDerivatives.RawRowView(r), forgetComb, l.recurrentActivation)
		activateDerivativeVec(rec.InputDerivatives.RawRowView(r), inputComb, l.recurrentActivation)
		activateDerivativeVec(rec.StateDerivatives.RawRowView(r), stateComb, l.activation)
		activateDerivativeVec(rec.OutputDerivatives.RawRowView(r), outputComb, l.recurrentActivation)

		cell := rec.CellStates.RawRowView(r)
		hidden := rec.HiddenStates.RawRowView(r)
		cellAct := rec.CellActivations.RawRowView(r)
		cellDer := rec.CellDerivatives.RawRowView(r)

		for n := 0; n < l.neurons; n++ {
			// cell(t) = forget ⊙ cell(t-1) + input ⊙ candidate
			cell[n] = forgetAct[n]*l.cellStates[n] + inputAct[n]*stateAct[n]
			cellAct[n] = Activate(cell[n], l.activation)
			cellDer[n] = ActivateDerivative(cell[n], l.activation)
			// hidden(t) = output ⊙ a(cell(t))
			hidden[n] = outputAct[n] * cellAct[n]
		}
		copy(l.cellStates, cell)
		copy(l.hiddenStates, hidden)
	}

	outputs := mat.DenseCopyOf(rec.HiddenStates)
	layerRec := &LayerRecord{
		Inputs:      rec.Inputs,
		Activations: rec.HiddenStates,
		LSTM:        rec,
	}
	return outputs, layerRec, nil
}

// ForwardFinal is the alternate forward mode for static compositions: each
// input row is one whole sequence, flattened timestep-major (Timesteps ×
// InputsNumber columns). The output has one row per input row holding the
// final timestep's hidden state. No record is produced; this mode is for
// inference.
func (l *LSTMLayer) ForwardFinal(inputs *mat.Dense) (*mat.Dense, error) {
	const op = "LSTMLayer.ForwardFinal"
	if err := checkLayerWidth(op, l.inputs, l.neurons); err != nil {
		return nil, err
	}
	rows, cols := inputs.Dims()
	if cols != l.timesteps*l.inputs {
		return nil, errConfigf(op,
			"batch has %d columns, expected %d timesteps x %d inputs", cols, l.timesteps, l.inputs)
	}

	outputs := mat.NewDense(rows, l.neurons, nil)

	forgetComb := make([]float64, l.neurons)
	inputComb := make([]float64, l.neurons)
	stateComb := make([]float64, l.neurons)
	outputComb := make([]float64, l.neurons)
	gate := make([]float64, 4*l.neurons)
	hPrevious := make([]float64, l.neurons)

	for r := 0; r < rows; r++ {
		l.ResetState()
		sequence := inputs.RawRowView(r)
		for t := 0; t < l.timesteps; t++ {
			x := sequence[t*l.inputs : (t+1)*l.inputs]
			copy(hPrevious, l.hiddenStates)

			gateCombination(forgetComb, l.forgetBiases, l.forgetWeights, l.forgetRecurrentWeights, x, hPrevious, l.inputs)
			gateCombination(inputComb, l.inputBiases, l.inputWeights, l.inputRecurrentWeights, x, hPrevious, l.inputs)
			gateCombination(stateComb, l.stateBiases, l.stateWeights, l.stateRecurrentWeights, x, hPrevious, l.inputs)
			gateCombination(outputComb, l.outputBiases, l.outputWeights, l.outputRecurrentWeights, x, hPrevious, l.inputs)

			forgetAct := gate[0*l.neurons : 1*l.neurons]
			inputAct := gate[1*l.neurons : 2*l.neurons]
			stateAct := gate[2*l.neurons : 3*l.neurons]
			outputAct := gate[3*l.neurons : 4*l.neurons]

			activateVec(forgetAct, forgetComb, l.recurrentActivation)
			activateVec(inputAct, inputComb, l.recurrentActivation)
			activateVec(stateAct, stateComb, l.activation)
			activateVec(outputAct, outputComb, l.recurrentActivation)

			for n := 0; n < l.neurons; n++ {
				l.cellStates[n] = forgetAct[n]*l.cellStates[n] + inputAct[n]*stateAct[n]
				l.hiddenStates[n] = outputAct[n] * Activate(l.cellStates[n], l.activation)
			}
		}
		copy(outputs.RawRowView(r), l.hiddenStates)
	}
	return outputs, nil
}

// CombinationJacobian is not defined for the recurrent layer: its output is
// a product of four gate paths, not a single activated combination. Use
// InputJacobian for single-timestep sensitivity analysis.
func (l *LSTMLayer) CombinationJacobian(combination []float64) (*mat.Dense, error) {
	return nil, errConfigf("LSTMLayer.CombinationJacobian",
		"recurrent layers have no single combination Jacobian; use InputJacobian with one timestep")
}

// InputJacobian computes the derivative of the hidden state with respect to
// the external input for a single timestep starting from the configured
// initial state. Only layers configured with one timestep support it;
// sensitivity analysis of the composition engine applies to static
// architectures.
func (l *LSTMLayer) InputJacobian(input []float64) (*mat.Dense, error) {
	const op = "LSTMLayer.InputJacobian"
	if err := checkLayerWidth(op, l.inputs, l.neurons); err != nil {
		return nil, err
	}
	if l.timesteps != 1 {
		return nil, errConfigf(op, "layer has %d timesteps, Jacobian defined only for 1", l.timesteps)
	}
	if len(input) != l.inputs {
		return nil, errConfigf(op, "input has length %d, layer expects %d", len(input), l.inputs)
	}

	hPrevious := l.initialHidden
	forgetComb := make([]float64, l.neurons)
	inputComb := make([]float64, l.neurons)
	stateComb := make([]float64, l.neurons)
	outputComb := make([]float64, l.neurons)

	gateCombination(forgetComb, l.forgetBiases, l.forgetWeights, l.forgetRecurrentWeights, input, hPrevious, l.inputs)
	gateCombination(inputComb, l.inputBiases, l.inputWeights, l.inputRecurrentWeights, input, hPrevious, l.inputs)
	gateCombination(stateComb, l.stateBiases, l.stateWeights, l.stateRecurrentWeights, input, hPrevious, l.inputs)
	gateCombination(outputComb, l.outputBiases, l.outputWeights, l.outputRecurrentWeights, input, hPrevious, l.inputs)

	jacobian := mat.NewDense(l.neurons, l.inputs, nil)
	for n := 0; n < l.neurons; n++ {
		forgetAct := Activate(forgetComb[n], l.recurrentActivation)
		inputAct := Activate(inputComb[n], l.recurrentActivation)
		stateAct := Activate(stateComb[n], l.activation)
		outputAct := Activate(outputComb[n], l.recurrentActivation)

		// cell = forget*initialCell + input*candidate
		cell := forgetAct*l.initialCell[n] + inputAct*stateAct
		cellAct := Activate(cell, l.activation)
		cellDer := ActivateDerivative(cell, l.activation)

		inputDer := ActivateDerivative(inputComb[n], l.recurrentActivation)
		stateDer := ActivateDerivative(stateComb[n], l.activation)
		outputDer := ActivateDerivative(outputComb[n], l.recurrentActivation)
		forgetDer := ActivateDerivative(forgetComb[n], l.recurrentActivation)

		for k := 0; k < l.inputs; k++ {
			dCell := forgetDer*l.forgetWeights[n*l.inputs+k]*l.initialCell[n] +
				inputDer*l.inputWeights[n*l.inputs+k]*stateAct +
				inputAct*stateDer*l.stateWeights[n*l.inputs+k]
			dHidden := outputDer*l.outputWeights[n*l.inputs+k]*cellAct +
				outputAct*cellDer*dCell
			jacobian.Set(n, k, dHidden)
		}
	}
	return jacobian, nil
}
