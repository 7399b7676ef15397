package nn

import (
	"fmt"
	"math"
)

// ActivationFunction identifies the nonlinearity applied to a combination.
type ActivationFunction int

const (
	Threshold               ActivationFunction = 0  // 0 if v < 0, else 1
	SymmetricThreshold      ActivationFunction = 1  // -1 if v < 0, else 1
	Logistic                ActivationFunction = 2  // 1 / (1 + exp(-v))
	HyperbolicTangent       ActivationFunction = 3  // tanh(v)
	Linear                  ActivationFunction = 4  // v
	RectifiedLinear         ActivationFunction = 5  // max(0, v)
	ExponentialLinear       ActivationFunction = 6  // v if v >= 0, else exp(v)-1
	ScaledExponentialLinear ActivationFunction = 7  // selu(v)
	SoftPlus                ActivationFunction = 8  // log(1 + exp(v))
	SoftSign                ActivationFunction = 9  // v / (1 + |v|)
	HardSigmoid             ActivationFunction = 10 // clamp(0.2*v + 0.5, 0, 1)
)

// SELU constants (Klambauer et al.).
const (
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

var activationNames = map[ActivationFunction]string{
	Threshold:               "Threshold",
	SymmetricThreshold:      "SymmetricThreshold",
	Logistic:                "Logistic",
	HyperbolicTangent:       "HyperbolicTangent",
	Linear:                  "Linear",
	RectifiedLinear:         "RectifiedLinear",
	ExponentialLinear:       "ExponentialLinear",
	ScaledExponentialLinear: "ScaledExponentialLinear",
	SoftPlus:                "SoftPlus",
	SoftSign:                "SoftSign",
	HardSigmoid:             "HardSigmoid",
}

func (f ActivationFunction) String() string {
	if name, ok := activationNames[f]; ok {
		return name
	}
	return fmt.Sprintf("ActivationFunction(%d)", int(f))
}

// ParseActivationFunction is the inverse of String.
func ParseActivationFunction(name string) (ActivationFunction, error) {
	for f, n := range activationNames {
		if n == name {
			return f, nil
		}
	}
	return 0, errConfigf("ParseActivationFunction", "unknown activation function %q", name)
}

// logistic computes 1/(1+exp(-v)) without exponentiating large positive
// arguments, so it cannot overflow at saturation.
func logistic(v float64) float64 {
	if v >= 0 {
		return 1.0 / (1.0 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1.0 + e)
}

// Activate applies the activation function to a single pre-activation value.
func Activate(v float64, fn ActivationFunction) float64 {
	switch fn {
	case Threshold:
		if v < 0 {
			return 0
		}
		return 1
	case SymmetricThreshold:
		if v < 0 {
			return -1
		}
		return 1
	case Logistic:
		return logistic(v)
	case HyperbolicTangent:
		return math.Tanh(v)
	case Linear:
		return v
	case RectifiedLinear:
		if v < 0 {
			return 0
		}
		return v
	case ExponentialLinear:
		if v < 0 {
			return math.Exp(v) - 1.0
		}
		return v
	case ScaledExponentialLinear:
		if v < 0 {
			return seluLambda * seluAlpha * (math.Exp(v) - 1.0)
		}
		return seluLambda * v
	case SoftPlus:
		// log(1+exp(v)) = max(v, 0) + log1p(exp(-|v|))
		return math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v)))
	case SoftSign:
		return v / (1.0 + math.Abs(v))
	case HardSigmoid:
		if v < -2.5 {
			return 0
		}
		if v > 2.5 {
			return 1
		}
		return 0.2*v + 0.5
	default:
		return v
	}
}

// ActivateDerivative computes the first derivative of the activation
// function with respect to the pre-activation value.
func ActivateDerivative(v float64, fn ActivationFunction) float64 {
	switch fn {
	case Threshold, SymmetricThreshold:
		return 0
	case Logistic:
		// s * (1 - s)
		s := logistic(v)
		return s * (1.0 - s)
	case HyperbolicTangent:
		// 1 - tanh^2(v)
		t := math.Tanh(v)
		return 1.0 - t*t
	case Linear:
		return 1
	case RectifiedLinear:
		if v < 0 {
			return 0
		}
		return 1
	case ExponentialLinear:
		if v < 0 {
			return math.Exp(v)
		}
		return 1
	case ScaledExponentialLinear:
		if v < 0 {
			return seluLambda * seluAlpha * math.Exp(v)
		}
		return seluLambda
	case SoftPlus:
		// d/dv log(1+exp(v)) = logistic(v)
		return logistic(v)
	case SoftSign:
		d := 1.0 + math.Abs(v)
		return 1.0 / (d * d)
	case HardSigmoid:
		if v < -2.5 || v > 2.5 {
			return 0
		}
		return 0.2
	default:
		return 1
	}
}

// ActivateSecondDerivative computes the second derivative of the activation
// function with respect to the pre-activation value. Used by the
// Hessian-form propagation of the multilayer composition.
func ActivateSecondDerivative(v float64, fn ActivationFunction) float64 {
	switch fn {
	case Threshold, SymmetricThreshold, Linear, RectifiedLinear, HardSigmoid:
		return 0
	case Logistic:
		// s * (1 - s) * (1 - 2s)
		s := logistic(v)
		return s * (1.0 - s) * (1.0 - 2.0*s)
	case HyperbolicTangent:
		// -2 * tanh(v) * (1 - tanh^2(v))
		t := math.Tanh(v)
		return -2.0 * t * (1.0 - t*t)
	case ExponentialLinear:
		if v < 0 {
			return math.Exp(v)
		}
		return 0
	case ScaledExponentialLinear:
		if v < 0 {
			return seluLambda * seluAlpha * math.Exp(v)
		}
		return 0
	case SoftPlus:
		s := logistic(v)
		return s * (1.0 - s)
	case SoftSign:
		d := 1.0 + math.Abs(v)
		if v >= 0 {
			return -2.0 / (d * d * d)
		}
		return 2.0 / (d * d * d)
	default:
		return 0
	}
}

// activateVec writes Activate(src[i]) into dst[i]. dst and src must have the
// same length; dst may alias src.
func activateVec(dst, src []float64, fn ActivationFunction) {
	for i, v := range src {
		dst[i] = Activate(v, fn)
	}
}

// activateDerivativeVec writes ActivateDerivative(src[i]) into dst[i].
func activateDerivativeVec(dst, src []float64, fn ActivationFunction) {
	for i, v := range src {
		dst[i] = ActivateDerivative(v, fn)
	}
}

// saturationBound is the combination magnitude beyond which the
// sigmoid-family activations are flat to double precision.
const saturationBound = 20.0

// isSaturating reports whether fn flattens out for large |v|.
func isSaturating(fn ActivationFunction) bool {
	switch fn {
	case Logistic, HyperbolicTangent, SoftSign, HardSigmoid:
		return true
	}
	return false
}

// checkSaturation emits at most one NumericalWarning when a combination
// vector has been driven into activation saturation.
func checkSaturation(op string, combinations []float64, fn ActivationFunction) {
	if !isSaturating(fn) {
		return
	}
	for _, v := range combinations {
		if math.Abs(v) > saturationBound {
			warnf(op, "combination %.4g saturates %s; continuing with clamped activation", v, fn)
			return
		}
	}
}
