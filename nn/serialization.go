package nn

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
)

// networkDefinitionType tags serialized networks so loaders can reject
// unrelated JSON documents.
const networkDefinitionType = "strata.network"

// networkDefinitionVersion is bumped on incompatible format changes.
const networkDefinitionVersion = 1

// LayerDefinition is the serializable description of one layer's shape and
// configuration. Parameters are stored separately, in the network-level flat
// vector.
type LayerDefinition struct {
	Kind    string `json:"kind"`
	Inputs  int    `json:"inputs"`
	Neurons int    `json:"neurons"`

	Activation          string `json:"activation,omitempty"`
	RecurrentActivation string `json:"recurrent_activation,omitempty"`
	Timesteps           int    `json:"timesteps,omitempty"`

	Descriptives []Descriptives `json:"descriptives,omitempty"`
	Methods      []string       `json:"methods,omitempty"`
}

// NetworkDefinition is the serializable form of a whole composition. The
// flat parameter vector is encoded as base64 over little-endian float64
// bits, so a save/load round trip is exact.
type NetworkDefinition struct {
	Type       string            `json:"type"`
	Version    int               `json:"version"`
	Layers     []LayerDefinition `json:"layers"`
	Parameters string            `json:"parameters,omitempty"`
}

func encodeParameters(params []float64) string {
	if len(params) == 0 {
		return ""
	}
	buf := make([]byte, 8*len(params))
	for i, p := range params {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(p))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeParameters(encoded string) ([]float64, error) {
	if encoded == "" {
		return nil, nil
	}
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errConfigf("decodeParameters", "invalid base64: %v", err)
	}
	if len(buf)%8 != 0 {
		return nil, errConfigf("decodeParameters", "encoded length %d is not a multiple of 8", len(buf))
	}
	params := make([]float64, len(buf)/8)
	for i := range params {
		params[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return params, nil
}

func scalingMethodNamesOf(methods []ScalingMethod) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return names
}

func layerDefinition(layer Layer) (LayerDefinition, error) {
	switch l := layer.(type) {
	case *PerceptronLayer:
		return LayerDefinition{
			Kind:       "perceptron",
			Inputs:     l.InputsNumber(),
			Neurons:    l.NeuronsNumber(),
			Activation: l.ActivationFunction().String(),
		}, nil
	case *LSTMLayer:
		return LayerDefinition{
			Kind:                "lstm",
			Inputs:              l.InputsNumber(),
			Neurons:             l.NeuronsNumber(),
			Activation:          l.ActivationFunction().String(),
			RecurrentActivation: l.RecurrentActivationFunction().String(),
			Timesteps:           l.Timesteps(),
		}, nil
	case *ScalingLayer:
		return LayerDefinition{
			Kind:         "scaling",
			Inputs:       l.InputsNumber(),
			Neurons:      l.NeuronsNumber(),
			Descriptives: l.Descriptives(),
			Methods:      scalingMethodNamesOf(l.Methods()),
		}, nil
	case *UnscalingLayer:
		return LayerDefinition{
			Kind:         "unscaling",
			Inputs:       l.InputsNumber(),
			Neurons:      l.NeuronsNumber(),
			Descriptives: l.Descriptives(),
			Methods:      scalingMethodNamesOf(l.Methods()),
		}, nil
	default:
		return LayerDefinition{}, errConfigf("layerDefinition", "unsupported layer kind %s", layer.Kind())
	}
}

// Definition produces the serializable form of the composition, including a
// snapshot of the current parameters.
func (m *MultilayerPerceptron) Definition() (*NetworkDefinition, error) {
	layers := make([]LayerDefinition, len(m.layers))
	for i, layer := range m.layers {
		def, err := layerDefinition(layer)
		if err != nil {
			return nil, err
		}
		layers[i] = def
	}
	return &NetworkDefinition{
		Type:       networkDefinitionType,
		Version:    networkDefinitionVersion,
		Layers:     layers,
		Parameters: encodeParameters(m.Parameters()),
	}, nil
}

// Save writes the composition to path as indented JSON.
func (m *MultilayerPerceptron) Save(path string) error {
	def, err := m.Definition()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// NetworkFromDefinition rebuilds a composition from its serialized form,
// restoring layer configuration and the exact parameter values.
func NetworkFromDefinition(def *NetworkDefinition) (*MultilayerPerceptron, error) {
	const op = "NetworkFromDefinition"
	if def.Type != networkDefinitionType {
		return nil, errConfigf(op, "unexpected document type %q", def.Type)
	}
	if def.Version != networkDefinitionVersion {
		return nil, errConfigf(op, "unsupported version %d", def.Version)
	}
	if len(def.Layers) == 0 {
		return nil, errConfigf(op, "definition has no layers")
	}

	layers := make([]Layer, len(def.Layers))
	for i, layerDef := range def.Layers {
		construct, ok := GetLayerConstructor(layerDef.Kind)
		if !ok {
			return nil, errConfigf(op, "unknown layer kind %q", layerDef.Kind)
		}
		layer, err := construct(layerDef)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}

	network, err := NewComposition(layers...)
	if err != nil {
		return nil, err
	}
	params, err := decodeParameters(def.Parameters)
	if err != nil {
		return nil, err
	}
	if params != nil {
		if err := network.SetParameters(params); err != nil {
			return nil, err
		}
	}
	return network, nil
}

// LoadNetwork reads a composition saved by Save.
func LoadNetwork(path string) (*MultilayerPerceptron, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def NetworkDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, errConfigf("LoadNetwork", "invalid JSON: %v", err)
	}
	return NetworkFromDefinition(&def)
}
