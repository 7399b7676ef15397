package nn

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func buildSampleNetwork(t *testing.T) *MultilayerPerceptron {
	t.Helper()

	scaling := NewScalingLayer(2)
	if err := scaling.SetDescriptives([]Descriptives{
		{Minimum: -3, Maximum: 3, Mean: 0, StandardDeviation: 1.2},
		{Minimum: 0, Maximum: 8, Mean: 4, StandardDeviation: 2},
	}); err != nil {
		t.Fatal(err)
	}
	scaling.SetMethod(MeanStandardDeviation)

	lstm := NewLSTMLayer(2, 3)
	if err := lstm.SetTimesteps(1); err != nil {
		t.Fatal(err)
	}
	lstm.SetActivationFunction(HyperbolicTangent)
	lstm.SetRecurrentActivationFunction(Logistic)

	readout := NewPerceptronLayer(3, 2, Linear)
	unscaling := NewUnscalingLayer(2)

	network, err := NewComposition(scaling, lstm, readout, unscaling)
	if err != nil {
		t.Fatal(err)
	}
	if err := network.SetParameters(randomParameters(network.ParametersNumber(), 103)); err != nil {
		t.Fatal(err)
	}
	return network
}

func TestSaveLoadRoundTrip(t *testing.T) {
	network := buildSampleNetwork(t)
	path := filepath.Join(t.TempDir(), "network.json")
	if err := network.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadNetwork(path)
	if err != nil {
		t.Fatal(err)
	}

	wantArch := network.Architecture()
	gotArch := loaded.Architecture()
	for i := range wantArch {
		if gotArch[i] != wantArch[i] {
			t.Fatalf("expected architecture %v, got %v", wantArch, gotArch)
		}
	}
	for i := 0; i < network.LayersNumber(); i++ {
		if loaded.Layer(i).Kind() != network.Layer(i).Kind() {
			t.Fatalf("layer %d: expected kind %s, got %s",
				i, network.Layer(i).Kind(), loaded.Layer(i).Kind())
		}
	}

	want := network.Parameters()
	got := loaded.Parameters()
	if len(got) != len(want) {
		t.Fatalf("expected %d parameters, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parameter %d: expected %v, got %v (round trip must be exact)", i, want[i], got[i])
		}
	}

	lstm := loaded.Layer(1).(*LSTMLayer)
	if lstm.Timesteps() != 1 {
		t.Errorf("expected 1 timestep, got %d", lstm.Timesteps())
	}
	if lstm.RecurrentActivationFunction() != Logistic {
		t.Errorf("expected Logistic gate activation, got %s", lstm.RecurrentActivationFunction())
	}

	inputs := mat.NewDense(2, 2, []float64{0.5, 3, -1, 6})
	wantOut, err := network.Outputs(inputs)
	if err != nil {
		t.Fatal(err)
	}
	gotOut, err := loaded.Outputs(inputs)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if gotOut.At(r, c) != wantOut.At(r, c) {
				t.Errorf("output (%d,%d): expected %v, got %v", r, c, wantOut.At(r, c), gotOut.At(r, c))
			}
		}
	}
}

func TestDefinitionCarriesScalingConfiguration(t *testing.T) {
	network := buildSampleNetwork(t)
	def, err := network.Definition()
	if err != nil {
		t.Fatal(err)
	}
	if def.Type != "strata.network" || def.Version != 1 {
		t.Fatalf("unexpected document header: %q version %d", def.Type, def.Version)
	}
	scalingDef := def.Layers[0]
	if scalingDef.Kind != "scaling" {
		t.Fatalf("expected a scaling layer first, got %q", scalingDef.Kind)
	}
	if len(scalingDef.Descriptives) != 2 || scalingDef.Descriptives[1].Maximum != 8 {
		t.Errorf("descriptives not carried: %+v", scalingDef.Descriptives)
	}
	if scalingDef.Methods[0] != "MeanStandardDeviation" {
		t.Errorf("expected MeanStandardDeviation, got %q", scalingDef.Methods[0])
	}
}

func TestNetworkFromDefinitionValidation(t *testing.T) {
	if _, err := NetworkFromDefinition(&NetworkDefinition{Type: "other", Version: 1}); err == nil {
		t.Error("expected an error for an unknown document type")
	}
	if _, err := NetworkFromDefinition(&NetworkDefinition{Type: "strata.network", Version: 99}); err == nil {
		t.Error("expected an error for an unsupported version")
	}
	def := &NetworkDefinition{
		Type:    "strata.network",
		Version: 1,
		Layers:  []LayerDefinition{{Kind: "convolutional", Inputs: 2, Neurons: 2}},
	}
	if _, err := NetworkFromDefinition(def); err == nil {
		t.Error("expected an error for an unregistered layer kind")
	}
}

func TestListLayerKinds(t *testing.T) {
	kinds := ListLayerKinds()
	want := []string{"lstm", "perceptron", "scaling", "unscaling"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}

func TestParameterEncodingRoundTrip(t *testing.T) {
	params := []float64{0, -1.5, 3.141592653589793, 1e-300}
	decoded, err := decodeParameters(encodeParameters(params))
	if err != nil {
		t.Fatal(err)
	}
	for i := range params {
		if decoded[i] != params[i] {
			t.Errorf("value %d: expected %v, got %v", i, params[i], decoded[i])
		}
	}

	if _, err := decodeParameters("not base64!"); err == nil {
		t.Error("expected an error for invalid base64")
	}
}
