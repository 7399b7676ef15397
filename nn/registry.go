package nn

import (
	"sort"
)

// LayerConstructor rebuilds a layer from its serialized definition.
type LayerConstructor func(def LayerDefinition) (Layer, error)

// layerRegistry maps the serialized kind names to their constructors. The
// set of kinds is closed; the registry exists so persistence and external
// tooling can rebuild layers by name.
var layerRegistry = map[string]LayerConstructor{
	"perceptron": newPerceptronFromDefinition,
	"lstm":       newLSTMFromDefinition,
	"scaling":    newScalingFromDefinition,
	"unscaling":  newUnscalingFromDefinition,
}

// GetLayerConstructor returns the constructor registered for a kind name.
func GetLayerConstructor(kind string) (LayerConstructor, bool) {
	fn, ok := layerRegistry[kind]
	return fn, ok
}

// ListLayerKinds returns the registered kind names, sorted.
func ListLayerKinds() []string {
	kinds := make([]string, 0, len(layerRegistry))
	for kind := range layerRegistry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func newPerceptronFromDefinition(def LayerDefinition) (Layer, error) {
	activation := HyperbolicTangent
	if def.Activation != "" {
		var err error
		activation, err = ParseActivationFunction(def.Activation)
		if err != nil {
			return nil, err
		}
	}
	return NewPerceptronLayer(def.Inputs, def.Neurons, activation), nil
}

func newLSTMFromDefinition(def LayerDefinition) (Layer, error) {
	layer := NewLSTMLayer(def.Inputs, def.Neurons)
	if def.Timesteps > 0 {
		if err := layer.SetTimesteps(def.Timesteps); err != nil {
			return nil, err
		}
	}
	if def.Activation != "" {
		fn, err := ParseActivationFunction(def.Activation)
		if err != nil {
			return nil, err
		}
		layer.SetActivationFunction(fn)
	}
	if def.RecurrentActivation != "" {
		fn, err := ParseActivationFunction(def.RecurrentActivation)
		if err != nil {
			return nil, err
		}
		layer.SetRecurrentActivationFunction(fn)
	}
	return layer, nil
}

func scalingMethodsFromDefinition(def LayerDefinition) ([]ScalingMethod, error) {
	if len(def.Methods) == 0 {
		return nil, nil
	}
	methods := make([]ScalingMethod, len(def.Methods))
	for i, name := range def.Methods {
		m, err := ParseScalingMethod(name)
		if err != nil {
			return nil, err
		}
		methods[i] = m
	}
	return methods, nil
}

func newScalingFromDefinition(def LayerDefinition) (Layer, error) {
	layer := NewScalingLayer(def.Neurons)
	if len(def.Descriptives) > 0 {
		if err := layer.SetDescriptives(def.Descriptives); err != nil {
			return nil, err
		}
	}
	methods, err := scalingMethodsFromDefinition(def)
	if err != nil {
		return nil, err
	}
	if methods != nil {
		if err := layer.SetMethods(methods); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

func newUnscalingFromDefinition(def LayerDefinition) (Layer, error) {
	layer := NewUnscalingLayer(def.Neurons)
	if len(def.Descriptives) > 0 {
		if err := layer.SetDescriptives(def.Descriptives); err != nil {
			return nil, err
		}
	}
	methods, err := scalingMethodsFromDefinition(def)
	if err != nil {
		return nil, err
	}
	if methods != nil {
		if err := layer.SetMethods(methods); err != nil {
			return nil, err
		}
	}
	return layer, nil
}
