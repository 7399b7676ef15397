package nn

import (
	"fmt"
	"os"
)

// ConfigurationError reports a shape or configuration mismatch detected at
// the boundary of a public operation: batch dimensions that do not match the
// configured input or timestep counts, parameter vectors of the wrong
// length, incompatible layer adjacency.
type ConfigurationError struct {
	Op     string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("nn: %s: %s", e.Op, e.Detail)
}

func errConfigf(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// StructuralError reports an invalid growth or pruning request: an index out
// of range, or a removal that would disconnect the layer chain.
type StructuralError struct {
	Op     string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("nn: %s: %s", e.Op, e.Detail)
}

func errStructf(op, format string, args ...interface{}) error {
	return &StructuralError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// NumericalWarning is a non-fatal numerical event: an activation driven deep
// into saturation, a scaling input outside its recorded range, a zero
// standard deviation clamped to one. Computation continues after a warning.
type NumericalWarning struct {
	Op     string
	Detail string
}

func (w NumericalWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Op, w.Detail)
}

// WarningHandler receives every NumericalWarning. The default writes a
// single line to stderr; a training driver can replace it to collect or
// silence warnings. Set to nil to discard them.
var WarningHandler = func(w NumericalWarning) {
	fmt.Fprintf(os.Stderr, "[WARNING] %s\n", w)
}

func warnf(op, format string, args ...interface{}) {
	if WarningHandler != nil {
		WarningHandler(NumericalWarning{Op: op, Detail: fmt.Sprintf(format, args...)})
	}
}
