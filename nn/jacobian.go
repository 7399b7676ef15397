package nn

import (
	"gonum.org/v1/gonum/mat"
)

// CombinationCombinationJacobian computes how a perturbation to layer
// layerIndex's combination propagates to layer layerIndex+1's combination:
// the next layer's weight matrix chained with this layer's local Jacobian,
// W(l+1) · diag(a'(c)). Both layers must be perceptron layers.
func (m *MultilayerPerceptron) CombinationCombinationJacobian(layerIndex int, combination []float64) (*mat.Dense, error) {
	const op = "MultilayerPerceptron.CombinationCombinationJacobian"
	if layerIndex < 0 || layerIndex+1 >= len(m.layers) {
		return nil, errConfigf(op, "layer index %d out of range [0, %d)", layerIndex, len(m.layers)-1)
	}
	layer, ok := m.layers[layerIndex].(*PerceptronLayer)
	if !ok {
		return nil, errConfigf(op, "layer %d is %s, combination propagation needs a perceptron layer",
			layerIndex, m.layers[layerIndex].Kind())
	}
	next, ok := m.layers[layerIndex+1].(*PerceptronLayer)
	if !ok {
		return nil, errConfigf(op, "layer %d is %s, combination propagation needs a perceptron layer",
			layerIndex+1, m.layers[layerIndex+1].Kind())
	}

	local, err := layer.CombinationJacobian(combination)
	if err != nil {
		return nil, err
	}
	w := mat.NewDense(next.neurons, next.inputs, next.weights)

	jacobian := mat.NewDense(next.neurons, layer.neurons, nil)
	jacobian.Mul(w, local)
	return jacobian, nil
}

// layerInputJacobian computes the derivative of one layer's output with
// respect to its input, evaluated at a single sample.
func layerInputJacobian(layer Layer, input []float64) (*mat.Dense, error) {
	switch l := layer.(type) {
	case *PerceptronLayer:
		combination := l.Combination(input)
		jacobian := mat.NewDense(l.neurons, l.inputs, nil)
		for n := 0; n < l.neurons; n++ {
			d := ActivateDerivative(combination[n], l.activation)
			for i := 0; i < l.inputs; i++ {
				jacobian.Set(n, i, d*l.weights[n*l.inputs+i])
			}
		}
		return jacobian, nil
	case *ScalingLayer:
		return l.CombinationJacobian(input)
	case *UnscalingLayer:
		return l.CombinationJacobian(input)
	case *LSTMLayer:
		return l.InputJacobian(input)
	default:
		return nil, errConfigf("layerInputJacobian", "unsupported layer kind %s", layer.Kind())
	}
}

// layerOutput propagates one sample through one layer.
func layerOutput(layer Layer, input []float64) ([]float64, error) {
	batch := mat.NewDense(1, len(input), append([]float64(nil), input...))
	out, _, err := layer.Forward(batch)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), out.RawRowView(0)...), nil
}

// Jacobian computes the end-to-end derivative of the composition's outputs
// with respect to its inputs at one sample, by chaining per-layer local
// Jacobians. LSTM layers participate only in single-timestep
// configurations.
func (m *MultilayerPerceptron) Jacobian(input []float64) (*mat.Dense, error) {
	const op = "MultilayerPerceptron.Jacobian"
	if len(m.layers) == 0 {
		return nil, errConfigf(op, "composition is empty")
	}
	if len(input) != m.InputsNumber() {
		return nil, errConfigf(op, "input has length %d, composition expects %d", len(input), m.InputsNumber())
	}

	current := append([]float64(nil), input...)
	var jacobian *mat.Dense

	for _, layer := range m.layers {
		local, err := layerInputJacobian(layer, current)
		if err != nil {
			return nil, err
		}
		if jacobian == nil {
			jacobian = local
		} else {
			chained := mat.NewDense(layer.NeuronsNumber(), m.InputsNumber(), nil)
			chained.Mul(local, jacobian)
			jacobian = chained
		}
		current, err = layerOutput(layer, current)
		if err != nil {
			return nil, err
		}
	}
	return jacobian, nil
}

// HessianForm computes, for each composition output k, the matrix of second
// derivatives d²y_k / dx_i dx_j at one sample. Defined for layers with
// elementwise activations (perceptron and scaling kinds); a recurrent layer
// in the chain is a configuration error, since Hessian-form sensitivity
// analysis applies to static architectures.
//
// The recursion per perceptron layer, with J the cumulative Jacobian up to
// the layer's input and H the cumulative Hessians:
//
//	H'_k = a''(c_k)·(Jᵀw_k)(Jᵀw_k)ᵀ + a'(c_k)·Σ_m W[k,m]·H_m
func (m *MultilayerPerceptron) HessianForm(input []float64) ([]*mat.Dense, error) {
	const op = "MultilayerPerceptron.HessianForm"
	if len(m.layers) == 0 {
		return nil, errConfigf(op, "composition is empty")
	}
	inputs := m.InputsNumber()
	if len(input) != inputs {
		return nil, errConfigf(op, "input has length %d, composition expects %d", len(input), inputs)
	}

	// Cumulative state for the identity "layer zero".
	jacobian := mat.NewDense(inputs, inputs, nil)
	for i := 0; i < inputs; i++ {
		jacobian.Set(i, i, 1)
	}
	hessians := make([]*mat.Dense, inputs)
	for i := range hessians {
		hessians[i] = mat.NewDense(inputs, inputs, nil)
	}

	current := append([]float64(nil), input...)

	for _, layer := range m.layers {
		switch l := layer.(type) {
		case *PerceptronLayer:
			combination := l.Combination(current)
			newJacobian := mat.NewDense(l.neurons, inputs, nil)
			newHessians := make([]*mat.Dense, l.neurons)

			u := make([]float64, inputs)
			for k := 0; k < l.neurons; k++ {
				first := ActivateDerivative(combination[k], l.activation)
				second := ActivateSecondDerivative(combination[k], l.activation)
				wRow := l.weights[k*l.inputs : (k+1)*l.inputs]

				// u = Jᵀ w_k
				for i := 0; i < inputs; i++ {
					sum := 0.0
					for mIdx := 0; mIdx < l.inputs; mIdx++ {
						sum += wRow[mIdx] * jacobian.At(mIdx, i)
					}
					u[i] = sum
					newJacobian.Set(k, i, first*sum)
				}

				h := mat.NewDense(inputs, inputs, nil)
				for i := 0; i < inputs; i++ {
					for j := 0; j < inputs; j++ {
						sum := second * u[i] * u[j]
						for mIdx := 0; mIdx < l.inputs; mIdx++ {
							sum += first * wRow[mIdx] * hessians[mIdx].At(i, j)
						}
						h.Set(i, j, sum)
					}
				}
				newHessians[k] = h
			}
			jacobian = newJacobian
			hessians = newHessians
		case *ScalingLayer, *UnscalingLayer:
			local, err := layerInputJacobian(layer, current)
			if err != nil {
				return nil, err
			}
			n := layer.NeuronsNumber()
			newJacobian := mat.NewDense(n, inputs, nil)
			newJacobian.Mul(local, jacobian)
			newHessians := make([]*mat.Dense, n)
			for k := 0; k < n; k++ {
				h := mat.NewDense(inputs, inputs, nil)
				h.Scale(local.At(k, k), hessians[k])
				newHessians[k] = h
			}
			jacobian = newJacobian
			hessians = newHessians
		default:
			return nil, errConfigf(op, "Hessian form undefined for %s layers", layer.Kind())
		}

		var err error
		current, err = layerOutput(layer, current)
		if err != nil {
			return nil, err
		}
	}
	return hessians, nil
}
