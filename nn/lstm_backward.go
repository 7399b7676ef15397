package nn

import (
	"gonum.org/v1/gonum/mat"
)

// LSTMGradient holds the error gradient of one backward pass through an
// LSTM layer: one tensor per weight/bias group. Because the same weights
// are reused at every timestep, each group is the sum of its per-timestep
// contributions.
type LSTMGradient struct {
	ForgetBiases []float64
	InputBiases  []float64
	StateBiases  []float64
	OutputBiases []float64

	ForgetWeights []float64
	InputWeights  []float64
	StateWeights  []float64
	OutputWeights []float64

	ForgetRecurrentWeights []float64
	InputRecurrentWeights  []float64
	StateRecurrentWeights  []float64
	OutputRecurrentWeights []float64

	// InputDeltas is the error gradient with respect to the layer's
	// inputs, one row per batch row, for chaining into a preceding layer.
	InputDeltas *mat.Dense
}

// Flatten returns the gradient in the layer's parameter order, aligned with
// LSTMLayer.Parameters.
func (g *LSTMGradient) Flatten() []float64 {
	groups := [][]float64{
		g.ForgetBiases, g.InputBiases, g.StateBiases, g.OutputBiases,
		g.ForgetWeights, g.InputWeights, g.StateWeights, g.OutputWeights,
		g.ForgetRecurrentWeights, g.InputRecurrentWeights, g.StateRecurrentWeights, g.OutputRecurrentWeights,
	}
	total := 0
	for _, grp := range groups {
		total += len(grp)
	}
	flat := make([]float64, 0, total)
	for _, grp := range groups {
		flat = append(flat, grp...)
	}
	return flat
}

// CalculateErrorGradient backpropagates an output delta through time.
//
// outputDeltas holds the error gradient with respect to the hidden state at
// every timestep (row-aligned with the forward batch; zero rows for
// timesteps that do not contribute to the error). Timesteps are walked in
// reverse within each sequence: a gate's delta is the chain-rule product of
// the downstream hidden-state delta, its elementwise partners from the same
// timestep, and the gate's own activation derivative at the recorded
// combination. The recurrent path adds the previous timestep's hidden-state
// contribution; at the first timestep of a sequence the recurrence
// terminates at the recorded initial state.
func (l *LSTMLayer) CalculateErrorGradient(record *LayerRecord, outputDeltas *mat.Dense) (*LSTMGradient, error) {
	const op = "LSTMLayer.CalculateErrorGradient"
	if record == nil || record.LSTM == nil {
		return nil, errConfigf(op, "record does not come from an LSTM forward pass")
	}
	rec := record.LSTM
	rows, cols := outputDeltas.Dims()
	recRows, _ := rec.HiddenStates.Dims()
	if rows != recRows || cols != l.neurons {
		return nil, errConfigf(op,
			"deltas are %dx%d, record holds %d rows of %d neurons", rows, cols, recRows, l.neurons)
	}
	if rows%l.timesteps != 0 {
		return nil, errConfigf(op, "record has %d rows, not a multiple of %d timesteps", rows, l.timesteps)
	}

	grad := &LSTMGradient{
		ForgetBiases: make([]float64, l.neurons),
		InputBiases:  make([]float64, l.neurons),
		StateBiases:  make([]float64, l.neurons),
		OutputBiases: make([]float64, l.neurons),

		ForgetWeights: make([]float64, l.neurons*l.inputs),
		InputWeights:  make([]float64, l.neurons*l.inputs),
		StateWeights:  make([]float64, l.neurons*l.inputs),
		OutputWeights: make([]float64, l.neurons*l.inputs),

		ForgetRecurrentWeights: make([]float64, l.neurons*l.neurons),
		InputRecurrentWeights:  make([]float64, l.neurons*l.neurons),
		StateRecurrentWeights:  make([]float64, l.neurons*l.neurons),
		OutputRecurrentWeights: make([]float64, l.neurons*l.neurons),

		InputDeltas: mat.NewDense(rows, l.inputs, nil),
	}

	sequences := rows / l.timesteps

	deltaHidden := make([]float64, l.neurons)     // dE/dh flowing from t+1
	deltaCell := make([]float64, l.neurons)       // dE/dc flowing from t+1
	deltaHiddenPrev := make([]float64, l.neurons) // accumulator for t-1

	deltaForget := make([]float64, l.neurons)
	deltaInput := make([]float64, l.neurons)
	deltaState := make([]float64, l.neurons)
	deltaOutput := make([]float64, l.neurons)

	for s := 0; s < sequences; s++ {
		for i := range deltaHidden {
			deltaHidden[i] = 0
			deltaCell[i] = 0
		}

		for t := l.timesteps - 1; t >= 0; t-- {
			r := s*l.timesteps + t
			x := rec.Inputs.RawRowView(r)

			var hPrevious, cPrevious []float64
			if t > 0 {
				hPrevious = rec.HiddenStates.RawRowView(r - 1)
				cPrevious = rec.CellStates.RawRowView(r - 1)
			} else {
				hPrevious = rec.InitialHidden
				cPrevious = rec.InitialCell
			}

			forgetAct := rec.ForgetActivations.RawRowView(r)
			inputAct := rec.InputActivations.RawRowView(r)
			stateAct := rec.StateActivations.RawRowView(r)
			outputAct := rec.OutputActivations.RawRowView(r)

			forgetDer := rec.ForgetDerivatives.RawRowView(r)
			inputDer := rec.InputDerivatives.RawRowView(r)
			stateDer := rec.StateDerivatives.RawRowView(r)
			outputDer := rec.OutputDerivatives.RawRowView(r)

			cellAct := rec.CellActivations.RawRowView(r)
			cellDer := rec.CellDerivatives.RawRowView(r)

			upstream := outputDeltas.RawRowView(r)

			for n := 0; n < l.neurons; n++ {
				// Hidden delta: upstream error plus the recurrent
				// contribution from timestep t+1.
				dh := upstream[n] + deltaHidden[n]

				// hidden = output ⊙ a(cell)
				deltaOutput[n] = dh * cellAct[n] * outputDer[n]
				dc := dh*outputAct[n]*cellDer[n] + deltaCell[n]

				// cell = forget ⊙ cellPrev + input ⊙ candidate
				deltaForget[n] = dc * cPrevious[n] * forgetDer[n]
				deltaInput[n] = dc * stateAct[n] * inputDer[n]
				deltaState[n] = dc * inputAct[n] * stateDer[n]

				deltaCell[n] = dc * forgetAct[n]
			}

			inputDelta := grad.InputDeltas.RawRowView(r)
			for i := range deltaHiddenPrev {
				deltaHiddenPrev[i] = 0
			}

			for n := 0; n < l.neurons; n++ {
				grad.ForgetBiases[n] += deltaForget[n]
				grad.InputBiases[n] += deltaInput[n]
				grad.StateBiases[n] += deltaState[n]
				grad.OutputBiases[n] += deltaOutput[n]

				wOff := n * l.inputs
				for i := 0; i < l.inputs; i++ {
					grad.ForgetWeights[wOff+i] += deltaForget[n] * x[i]
					grad.InputWeights[wOff+i] += deltaInput[n] * x[i]
					grad.StateWeights[wOff+i] += deltaState[n] * x[i]
					grad.OutputWeights[wOff+i] += deltaOutput[n] * x[i]

					inputDelta[i] += l.forgetWeights[wOff+i]*deltaForget[n] +
						l.inputWeights[wOff+i]*deltaInput[n] +
						l.stateWeights[wOff+i]*deltaState[n] +
						l.outputWeights[wOff+i]*deltaOutput[n]
				}

				rOff := n * l.neurons
				for j := 0; j < l.neurons; j++ {
					grad.ForgetRecurrentWeights[rOff+j] += deltaForget[n] * hPrevious[j]
					grad.InputRecurrentWeights[rOff+j] += deltaInput[n] * hPrevious[j]
					grad.StateRecurrentWeights[rOff+j] += deltaState[n] * hPrevious[j]
					grad.OutputRecurrentWeights[rOff+j] += deltaOutput[n] * hPrevious[j]

					deltaHiddenPrev[j] += l.forgetRecurrentWeights[rOff+j]*deltaForget[n] +
						l.inputRecurrentWeights[rOff+j]*deltaInput[n] +
						l.stateRecurrentWeights[rOff+j]*deltaState[n] +
						l.outputRecurrentWeights[rOff+j]*deltaOutput[n]
				}
			}
			copy(deltaHidden, deltaHiddenPrev)
		}
	}
	return grad, nil
}
