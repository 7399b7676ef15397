// Package nn provides neural-network layer implementations for supervised
// learning tasks such as regression, classification and time-series
// prediction.
//
// The package is organized around a small closed set of layer kinds sharing
// one contract (forward propagation, parameter access, local Jacobians):
//   - PerceptronLayer: fully-connected feed-forward layer
//   - LSTMLayer: recurrent layer with forget/input/state/output gates and
//     backpropagation through time
//   - ScalingLayer / UnscalingLayer: per-feature normalization from
//     descriptive statistics
//
// Layers compose into a MultilayerPerceptron, which chains layer outputs
// into subsequent layer inputs, flattens all learnable parameters into one
// vector for optimizer drivers, and propagates Jacobians and Hessian forms
// for sensitivity analysis.
//
// Example usage:
//
//	mlp, _ := nn.NewMultilayerPerceptron([]int{4, 8, 1}, nn.HyperbolicTangent, nn.Logistic)
//	mlp.RandomizeParametersGlorot()
//
//	outputs, records, _ := mlp.Forward(batch)
//	_ = records // per-layer combinations, activations and derivatives
//
//	params := mlp.Parameters()       // flat vector for the optimizer
//	_ = mlp.SetParameters(params)    // exact round trip
//
// Execution is single-threaded and synchronous. Forward and backward passes
// are pure functions of (parameters, batch, persisted recurrent state);
// callers parallelizing across independent sequences must give each
// goroutine its own layer instance, since recurrent state is owned by the
// layer and mutated every timestep.
package nn
