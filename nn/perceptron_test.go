package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// randomParameters fills a parameter vector with small values from a seeded
// source, so derivative tests are deterministic and stay away from
// saturation.
func randomParameters(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	params := make([]float64, n)
	for i := range params {
		params[i] = rng.Float64() - 0.5
	}
	return params
}

func TestPerceptronForwardKnownValues(t *testing.T) {
	layer := NewPerceptronLayer(2, 1, Linear)
	// bias 0.5, weights [2, -1]
	if err := layer.SetParameters([]float64{0.5, 2, -1}, 0); err != nil {
		t.Fatal(err)
	}

	inputs := mat.NewDense(2, 2, []float64{
		1, 1,
		3, 0,
	})
	outputs, record, err := layer.Forward(inputs)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5 + 2 - 1, 0.5 + 6}
	for r, w := range want {
		if got := outputs.At(r, 0); got != w {
			t.Errorf("row %d: expected %v, got %v", r, w, got)
		}
	}
	if got := record.Combinations.At(1, 0); got != want[1] {
		t.Errorf("linear combination should equal the output, got %v", got)
	}
}

func TestPerceptronZeroWidthRejected(t *testing.T) {
	var cfg *ConfigurationError

	empty := NewPerceptronLayer(2, 0, Linear)
	if _, _, err := empty.Forward(mat.NewDense(3, 2, nil)); !errors.As(err, &cfg) {
		t.Errorf("zero neurons: expected a ConfigurationError, got %v", err)
	}
	if _, err := empty.CombinationJacobian(nil); !errors.As(err, &cfg) {
		t.Errorf("zero neurons: expected a ConfigurationError, got %v", err)
	}

	noInputs := NewPerceptronLayer(0, 2, Linear)
	if _, _, err := noInputs.Forward(mat.NewDense(1, 1, nil)); !errors.As(err, &cfg) {
		t.Errorf("zero inputs: expected a ConfigurationError, got %v", err)
	}
}

func TestPerceptronForwardShapeMismatch(t *testing.T) {
	layer := NewPerceptronLayer(3, 2, HyperbolicTangent)
	_, _, err := layer.Forward(mat.NewDense(1, 2, nil))
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}
}

func TestPerceptronParametersRoundTrip(t *testing.T) {
	layer := NewPerceptronLayer(4, 3, Logistic)
	params := randomParameters(layer.ParametersNumber(), 7)
	if err := layer.SetParameters(params, 0); err != nil {
		t.Fatal(err)
	}
	got := layer.Parameters()
	for i := range params {
		if got[i] != params[i] {
			t.Fatalf("parameter %d: expected %v, got %v", i, params[i], got[i])
		}
	}

	if err := layer.SetParameters(params[:3], 0); err == nil {
		t.Error("expected an error for a short parameter vector")
	}
}

func TestPerceptronGradientMatchesFiniteDifference(t *testing.T) {
	layer := NewPerceptronLayer(3, 2, HyperbolicTangent)
	params := randomParameters(layer.ParametersNumber(), 11)
	if err := layer.SetParameters(params, 0); err != nil {
		t.Fatal(err)
	}

	inputs := mat.NewDense(4, 3, randomParameters(12, 13))
	_, record, err := layer.Forward(inputs)
	if err != nil {
		t.Fatal(err)
	}

	// Error term: the sum of every output, so the output deltas are all one.
	deltas := mat.NewDense(4, 2, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 2; c++ {
			deltas.Set(r, c, 1)
		}
	}
	grad, err := layer.CalculateErrorGradient(record, deltas)
	if err != nil {
		t.Fatal(err)
	}
	analytic := grad.Flatten()

	numeric := make([]float64, len(params))
	fd.Gradient(numeric, func(p []float64) float64 {
		if err := layer.SetParameters(p, 0); err != nil {
			t.Fatal(err)
		}
		out, _, err := layer.Forward(inputs)
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

func TestPerceptronInputDeltasMatchFiniteDifference(t *testing.T) {
	layer := NewPerceptronLayer(3, 2, Logistic)
	if err := layer.SetParameters(randomParameters(layer.ParametersNumber(), 17), 0); err != nil {
		t.Fatal(err)
	}

	sample := []float64{0.2, -0.4, 0.7}
	inputs := mat.NewDense(1, 3, append([]float64(nil), sample...))
	_, record, err := layer.Forward(inputs)
	if err != nil {
		t.Fatal(err)
	}
	deltas := mat.NewDense(1, 2, []float64{1, 1})
	grad, err := layer.CalculateErrorGradient(record, deltas)
	if err != nil {
		t.Fatal(err)
	}

	numeric := make([]float64, 3)
	fd.Gradient(numeric, func(x []float64) float64 {
		out, _, err := layer.Forward(mat.NewDense(1, 3, append([]float64(nil), x...)))
		if err != nil {
			t.Fatal(err)
		}
		return mat.Sum(out)
	}, sample, &fd.Settings{Formula: fd.Central})

	for i := range numeric {
		if got := grad.InputDeltas.At(0, i); math.Abs(got-numeric[i]) > 1e-6 {
			t.Errorf("input %d: expected delta %v, got %v", i, numeric[i], got)
		}
	}
}

func TestPerceptronGrowPreservesWeights(t *testing.T) {
	layer := NewPerceptronLayer(2, 2, Linear)
	if err := layer.SetParameters([]float64{1, 2, 3, 4, 5, 6}, 0); err != nil {
		t.Fatal(err)
	}

	layer.GrowInput()
	if layer.InputsNumber() != 3 {
		t.Fatalf("expected 3 inputs after growing, got %d", layer.InputsNumber())
	}
	want := []float64{1, 2, 3, 4, 0, 5, 6, 0}
	got := layer.Parameters()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after GrowInput: expected parameters %v, got %v", want, got)
		}
	}

	layer.GrowNeuron()
	if layer.NeuronsNumber() != 3 {
		t.Fatalf("expected 3 neurons after growing, got %d", layer.NeuronsNumber())
	}
	if n := layer.ParametersNumber(); n != 3+3*3 {
		t.Errorf("expected 12 parameters, got %d", n)
	}
}

func TestPerceptronPruneErrors(t *testing.T) {
	layer := NewPerceptronLayer(2, 2, Linear)

	var structural *StructuralError
	if err := layer.PruneInput(5); !errors.As(err, &structural) {
		t.Errorf("expected a StructuralError for an out-of-range input index, got %v", err)
	}
	if err := layer.PruneNeuron(-1); !errors.As(err, &structural) {
		t.Errorf("expected a StructuralError for a negative neuron index, got %v", err)
	}

	if err := layer.PruneNeuron(0); err != nil {
		t.Fatal(err)
	}
	if layer.NeuronsNumber() != 1 {
		t.Errorf("expected 1 neuron after pruning, got %d", layer.NeuronsNumber())
	}
	if err := layer.PruneNeuron(0); !errors.As(err, &structural) {
		t.Errorf("expected a StructuralError for removing the last neuron, got %v", err)
	}
}
