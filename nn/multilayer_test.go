package nn

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func TestMultilayerArchitecture(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{3, 4, 2}, HyperbolicTangent)
	if err != nil {
		t.Fatal(err)
	}
	architecture := network.Architecture()
	want := []int{3, 4, 2}
	for i := range want {
		if architecture[i] != want[i] {
			t.Fatalf("expected architecture %v, got %v", want, architecture)
		}
	}
	if network.InputsNumber() != 3 || network.OutputsNumber() != 2 {
		t.Errorf("expected 3 inputs and 2 outputs, got %d and %d",
			network.InputsNumber(), network.OutputsNumber())
	}
	// (4 biases + 4x3 weights) + (2 biases + 2x4 weights)
	if n := network.ParametersNumber(); n != 16+10 {
		t.Errorf("expected 26 parameters, got %d", n)
	}
	offsets := network.LayerParameterOffsets()
	if offsets[0] != 0 || offsets[1] != 16 {
		t.Errorf("expected offsets [0 16], got %v", offsets)
	}
}

func TestMultilayerRejectsZeroLayerSizes(t *testing.T) {
	var cfg *ConfigurationError
	if _, err := NewMultilayerPerceptron([]int{2, 0, 1}, Linear); !errors.As(err, &cfg) {
		t.Errorf("expected a ConfigurationError for a zero-size layer, got %v", err)
	}
	if _, err := NewComposition(NewPerceptronLayer(2, 0, Linear)); !errors.As(err, &cfg) {
		t.Errorf("expected a ConfigurationError for a zero-neuron layer, got %v", err)
	}
}

func TestMultilayerActivationCountMismatch(t *testing.T) {
	_, err := NewMultilayerPerceptron([]int{2, 3, 1}, Logistic, Linear, HyperbolicTangent)
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected a ConfigurationError for 3 activations on 2 layers, got %v", err)
	}
}

func TestCompositionAdjacencyValidation(t *testing.T) {
	_, err := NewComposition(
		NewPerceptronLayer(2, 3, HyperbolicTangent),
		NewPerceptronLayer(4, 1, Linear),
	)
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected a ConfigurationError for mismatched adjacency, got %v", err)
	}
}

func TestMultilayerParametersRoundTrip(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{3, 5, 2}, Logistic, Linear)
	if err != nil {
		t.Fatal(err)
	}
	network.RandomizeParametersGlorot()

	params := network.Parameters()
	if err := network.SetParameters(params); err != nil {
		t.Fatal(err)
	}
	again := network.Parameters()
	for i := range params {
		if again[i] != params[i] {
			t.Fatalf("parameter %d changed across a set/get round trip: %v vs %v",
				i, params[i], again[i])
		}
	}

	if err := network.SetParameters(params[:5]); err == nil {
		t.Error("expected an error for a short parameter vector")
	}
}

func TestMultilayerForwardChaining(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 2, 1}, Linear)
	if err != nil {
		t.Fatal(err)
	}
	network.InitializeParametersConstant(1)

	// Layer 1: each neuron outputs 1 + x1 + x2. Layer 2: 1 + sum of both.
	outputs, err := network.Outputs(mat.NewDense(1, 2, []float64{2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if got := outputs.At(0, 0); got != 13 {
		t.Errorf("expected 13, got %v", got)
	}
}

func TestMultilayerGradientMatchesFiniteDifference(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 3, 2}, HyperbolicTangent, Linear)
	if err != nil {
		t.Fatal(err)
	}
	params := randomParameters(network.ParametersNumber(), 61)
	if err := network.SetParameters(params); err != nil {
		t.Fatal(err)
	}

	inputs := mat.NewDense(3, 2, randomParameters(6, 67))
	_, records, err := network.Forward(inputs)
	if err != nil {
		t.Fatal(err)
	}
	deltas := mat.NewDense(3, 2, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			deltas.Set(r, c, 1)
		}
	}
	analytic, err := network.CalculateErrorGradient(records, deltas)
	if err != nil {
		t.Fatal(err)
	}

	numeric := make([]float64, len(params))
	fd.Gradient(numeric, func(p []float64) float64 {
		if err := network.SetParameters(p); err != nil {
			t.Fatal(err)
		}
		out, err := network.Outputs(inputs)
		if err != nil {
			t.Fatal(err)
		}
		return mat.Sum(out)
	}, params, &fd.Settings{Formula: fd.Central})

	for i := range analytic {
		if math.Abs(analytic[i]-numeric[i]) > 1e-6 {
			t.Errorf("parameter %d: expected gradient %v, got %v", i, numeric[i], analytic[i])
		}
	}
}

func TestMixedCompositionGradient(t *testing.T) {
	scaling := NewScalingLayer(2)
	if err := scaling.SetDescriptives([]Descriptives{
		{Minimum: -2, Maximum: 2, Mean: 0, StandardDeviation: 1},
		{Minimum: -4, Maximum: 4, Mean: 0, StandardDeviation: 2},
	}); err != nil {
		t.Fatal(err)
	}

	lstm := NewLSTMLayer(2, 3)
	if err := lstm.SetTimesteps(1); err != nil {
		t.Fatal(err)
	}
	readout := NewPerceptronLayer(3, 1, Linear)

	network, err := NewComposition(scaling, lstm, readout)
	if err != nil {
		t.Fatal(err)
	}
	params := randomParameters(network.ParametersNumber(), 71)
	if err := network.SetParameters(params); err != nil {
		t.Fatal(err)
	}

	inputs := mat.NewDense(4, 2, randomParameters(8, 73))
	_, records, err := network.Forward(inputs)
	if err != nil {
		t.Fatal(err)
	}
	deltas := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	analytic, err := network.CalculateErrorGradient(records, deltas)
	if err != nil {
		t.Fatal(err)
	}

	numeric := make([]float64, len(params))
	fd.Gradient(numeric, func(p []float64) float64 {
		if err := network.SetParameters(p); err != nil {
			t.Fatal(err)
		}
		out, err := network.Outputs(inputs)
		if err != nil {
			t.Fatal(err)
		}
		return mat.Sum(out)
	}, params, &fd.Settings{Formula: fd.Central})

	for i := range analytic {
		tolerance := 1e-6 + 1e-6*math.Abs(numeric[i])
		if math.Abs(analytic[i]-numeric[i]) > tolerance {
			t.Errorf("parameter %d: expected gradient %v, got %v", i, numeric[i], analytic[i])
		}
	}
}

func TestMultilayerJacobianMatchesFiniteDifference(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 3, 2}, HyperbolicTangent, Logistic)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.SetParameters(randomParameters(network.ParametersNumber(), 79)); err != nil {
		t.Fatal(err)
	}

	sample := []float64{0.3, -0.6}
	analytic, err := network.Jacobian(sample)
	if err != nil {
		t.Fatal(err)
	}

	numeric := mat.NewDense(2, 2, nil)
	fd.Jacobian(numeric, func(y, x []float64) {
		out, err := network.Outputs(mat.NewDense(1, 2, append([]float64(nil), x...)))
		if err != nil {
			t.Fatal(err)
		}
		copy(y, out.RawRowView(0))
	}, sample, &fd.JacobianSettings{Formula: fd.Central})

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if got, want := analytic.At(r, c), numeric.At(r, c); math.Abs(got-want) > 1e-6 {
				t.Errorf("(%d,%d): expected %v, got %v", r, c, want, got)
			}
		}
	}
}

func TestJacobianThroughScalingLayers(t *testing.T) {
	scaling := NewScalingLayer(2)
	if err := scaling.SetDescriptives([]Descriptives{
		{Minimum: 0, Maximum: 4, Mean: 2, StandardDeviation: 1},
		{Minimum: -1, Maximum: 3, Mean: 1, StandardDeviation: 1},
	}); err != nil {
		t.Fatal(err)
	}
	hidden := NewPerceptronLayer(2, 2, HyperbolicTangent)
	unscaling := NewUnscalingLayer(2)

	network, err := NewComposition(scaling, hidden, unscaling)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.SetParameters(randomParameters(network.ParametersNumber(), 83)); err != nil {
		t.Fatal(err)
	}

	sample := []float64{1.0, 2.0}
	analytic, err := network.Jacobian(sample)
	if err != nil {
		t.Fatal(err)
	}

	numeric := mat.NewDense(2, 2, nil)
	fd.Jacobian(numeric, func(y, x []float64) {
		out, err := network.Outputs(mat.NewDense(1, 2, append([]float64(nil), x...)))
		if err != nil {
			t.Fatal(err)
		}
		copy(y, out.RawRowView(0))
	}, sample, &fd.JacobianSettings{Formula: fd.Central})

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if got, want := analytic.At(r, c), numeric.At(r, c); math.Abs(got-want) > 1e-6 {
				t.Errorf("(%d,%d): expected %v, got %v", r, c, want, got)
			}
		}
	}
}

func TestCombinationCombinationJacobian(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 3, 2}, HyperbolicTangent, Linear)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.SetParameters(randomParameters(network.ParametersNumber(), 89)); err != nil {
		t.Fatal(err)
	}

	combination := []float64{0.2, -0.5, 0.8}
	jacobian, err := network.CombinationCombinationJacobian(0, combination)
	if err != nil {
		t.Fatal(err)
	}
	next := network.Layer(1).(*PerceptronLayer)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			want := next.weights[r*3+c] * ActivateDerivative(combination[c], HyperbolicTangent)
			if got := jacobian.At(r, c); math.Abs(got-want) > 1e-15 {
				t.Errorf("(%d,%d): expected %v, got %v", r, c, want, got)
			}
		}
	}

	if _, err := network.CombinationCombinationJacobian(1, combination); err == nil {
		t.Error("expected an error for the terminal layer")
	}
}

func TestHessianFormMatchesFiniteDifference(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 2, 1}, HyperbolicTangent, Logistic)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.SetParameters(randomParameters(network.ParametersNumber(), 97)); err != nil {
		t.Fatal(err)
	}

	sample := []float64{0.4, -0.2}
	hessians, err := network.HessianForm(sample)
	if err != nil {
		t.Fatal(err)
	}
	if len(hessians) != 1 {
		t.Fatalf("expected one Hessian per output, got %d", len(hessians))
	}
	h := hessians[0]

	output := func(x0, x1 float64) float64 {
		out, err := network.Outputs(mat.NewDense(1, 2, []float64{x0, x1}))
		if err != nil {
			t.Fatal(err)
		}
		return out.At(0, 0)
	}

	const step = 1e-4
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			ei := []float64{0, 0}
			ej := []float64{0, 0}
			ei[i] = step
			ej[j] = step
			numeric := (output(sample[0]+ei[0]+ej[0], sample[1]+ei[1]+ej[1]) -
				output(sample[0]+ei[0]-ej[0], sample[1]+ei[1]-ej[1]) -
				output(sample[0]-ei[0]+ej[0], sample[1]-ei[1]+ej[1]) +
				output(sample[0]-ei[0]-ej[0], sample[1]-ei[1]-ej[1])) / (4 * step * step)
			if got := h.At(i, j); math.Abs(got-numeric) > 1e-4 {
				t.Errorf("H(%d,%d): expected %v, got %v", i, j, numeric, got)
			}
		}
	}

	// Second derivatives commute, so the matrix must be symmetric.
	if math.Abs(h.At(0, 1)-h.At(1, 0)) > 1e-12 {
		t.Errorf("Hessian is not symmetric: %v vs %v", h.At(0, 1), h.At(1, 0))
	}
}

func TestHessianFormRejectsRecurrentLayers(t *testing.T) {
	lstm := NewLSTMLayer(2, 2)
	if err := lstm.SetTimesteps(1); err != nil {
		t.Fatal(err)
	}
	network, err := NewComposition(lstm)
	if err != nil {
		t.Fatal(err)
	}
	_, err = network.HessianForm([]float64{0.1, 0.2})
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}
}

func TestGrowLayerNeuronPreservesWeights(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 2, 1}, Linear)
	if err != nil {
		t.Fatal(err)
	}
	params := randomParameters(network.ParametersNumber(), 101)
	if err := network.SetParameters(params); err != nil {
		t.Fatal(err)
	}
	inputs := mat.NewDense(1, 2, []float64{0.7, -0.3})
	before, err := network.Outputs(inputs)
	if err != nil {
		t.Fatal(err)
	}
	beforeValue := before.At(0, 0)

	if err := network.GrowLayerNeuron(0); err != nil {
		t.Fatal(err)
	}
	arch := network.Architecture()
	if arch[1] != 3 {
		t.Fatalf("expected architecture [2 3 1], got %v", arch)
	}

	// The new neuron has zero weights and the next layer's new column is
	// zero, so the network function is unchanged.
	after, err := network.Outputs(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if got := after.At(0, 0); got != beforeValue {
		t.Errorf("growing changed the output from %v to %v", beforeValue, got)
	}
}

func TestPruneLayerNeuron(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 3, 1}, Linear)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.PruneLayerNeuron(0, 1); err != nil {
		t.Fatal(err)
	}
	arch := network.Architecture()
	if arch[1] != 2 {
		t.Fatalf("expected architecture [2 2 1], got %v", arch)
	}
	if network.Layer(1).InputsNumber() != 2 {
		t.Errorf("expected the next layer to lose an input, has %d", network.Layer(1).InputsNumber())
	}
}

func TestPruneLastNeuronDisconnects(t *testing.T) {
	network, err := NewMultilayerPerceptron([]int{2, 1, 1}, Linear)
	if err != nil {
		t.Fatal(err)
	}
	err = network.PruneLayerNeuron(0, 0)
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected a StructuralError for disconnecting the chain, got %v", err)
	}

	// The terminal layer cannot shrink to zero width either.
	if err := network.PruneLayerNeuron(1, 0); !errors.As(err, &structural) {
		t.Errorf("expected a StructuralError for removing the terminal layer's last neuron, got %v", err)
	}
}

func TestGrowInputOnScalingLayerRejected(t *testing.T) {
	scaling := NewScalingLayer(2)
	hidden := NewPerceptronLayer(2, 1, Linear)
	network, err := NewComposition(scaling, hidden)
	if err != nil {
		t.Fatal(err)
	}
	var structural *StructuralError
	if err := network.GrowInput(); !errors.As(err, &structural) {
		t.Fatalf("expected a StructuralError for a fixed-dimension layer, got %v", err)
	}
}
