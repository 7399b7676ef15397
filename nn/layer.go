package nn

import (
	"gonum.org/v1/gonum/mat"
)

// LayerKind tags the closed set of layer variants.
type LayerKind int

const (
	LayerPerceptron LayerKind = 0 // fully-connected feed-forward layer
	LayerLSTM       LayerKind = 1 // long short-term memory recurrent layer
	LayerScaling    LayerKind = 2 // per-feature input scaling
	LayerUnscaling  LayerKind = 3 // per-feature output unscaling
)

var layerKindNames = map[LayerKind]string{
	LayerPerceptron: "perceptron",
	LayerLSTM:       "lstm",
	LayerScaling:    "scaling",
	LayerUnscaling:  "unscaling",
}

func (k LayerKind) String() string {
	if name, ok := layerKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// LayerRecord holds the intermediates of one forward pass through one
// layer: everything a backward pass needs. Records are allocated fresh per
// forward call and never persisted by the layer.
type LayerRecord struct {
	// Inputs is the batch the layer received.
	Inputs *mat.Dense

	// Combinations, Activations and Derivatives are row-per-sample
	// matrices with one column per neuron. For scaling layers the
	// combination is the input itself and the derivative is the constant
	// per-feature scale factor.
	Combinations *mat.Dense
	Activations  *mat.Dense
	Derivatives  *mat.Dense

	// LSTM carries the per-timestep gate records when the layer is
	// recurrent; nil otherwise.
	LSTM *LSTMRecord
}

// Layer is the uniform contract the multilayer composition engine requires
// of every layer variant. The set of implementations is fixed: kind-specific
// behavior elsewhere in the package dispatches on Kind rather than growing
// this interface.
type Layer interface {
	Kind() LayerKind
	InputsNumber() int
	NeuronsNumber() int

	// ParametersNumber returns the number of learnable scalars.
	ParametersNumber() int

	// Parameters returns a fresh copy of the layer's parameters in its
	// canonical flattening order (biases before weights).
	Parameters() []float64

	// SetParameters overwrites the layer's parameters from
	// params[offset : offset+ParametersNumber()]. The slice is copied;
	// a short slice yields a ConfigurationError and no mutation.
	SetParameters(params []float64, offset int) error

	// Forward propagates a batch (rows = samples, cols = features) and
	// returns the output batch plus the full intermediate record.
	Forward(inputs *mat.Dense) (*mat.Dense, *LayerRecord, error)

	// CombinationJacobian returns the derivative of the layer's output
	// with respect to its own combination, evaluated at one sample's
	// combination vector. For elementwise activations this is diagonal.
	// A recurrent layer has no single combination and returns a
	// ConfigurationError here; its input sensitivity is exposed through
	// LSTMLayer.InputJacobian instead.
	CombinationJacobian(combination []float64) (*mat.Dense, error)
}

// diagFromSlice builds a dense diagonal matrix from v.
func diagFromSlice(v []float64) *mat.Dense {
	n := len(v)
	d := mat.NewDense(n, n, nil)
	for i, x := range v {
		d.Set(i, i, x)
	}
	return d
}

// checkBatchColumns validates that a batch has the expected column count.
func checkBatchColumns(op string, batch *mat.Dense, want int) error {
	_, cols := batch.Dims()
	if cols != want {
		return errConfigf(op, "batch has %d columns, layer expects %d inputs", cols, want)
	}
	return nil
}

// checkLayerWidth rejects zero-size layers at the operation boundary. Dense
// matrices require positive dimensions, so a layer with no inputs or no
// neurons cannot produce an output batch.
func checkLayerWidth(op string, inputs, neurons int) error {
	if inputs < 1 || neurons < 1 {
		return errConfigf(op, "layer has %d inputs and %d neurons, both must be positive", inputs, neurons)
	}
	return nil
}
