package nn

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// RocArea computes the area under the ROC curve of a binary classifier by
// trapezoidal integration over the score thresholds. Targets above 0.5 are
// the positive class. Ties in the scores are integrated as a single
// threshold step, which matches the rank-statistic definition.
func RocArea(scores, targets []float64) (float64, error) {
	if len(scores) != len(targets) {
		return 0, errConfigf("RocArea", "got %d scores for %d targets", len(scores), len(targets))
	}

	positives, negatives := 0, 0
	for _, t := range targets {
		if t > 0.5 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		// A single-class batch has no ranking to measure. Expected in
		// small data sets; fall back to the chance diagonal.
		warnf("RocArea", "batch has %d positives and %d negatives; returning chance area 0.5",
			positives, negatives)
		return 0.5, nil
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	area := 0.0
	truePositives, falsePositives := 0, 0
	for i := 0; i < len(order); {
		// Consume the whole tie group at this threshold.
		j := i
		groupPositives, groupNegatives := 0, 0
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			if targets[order[j]] > 0.5 {
				groupPositives++
			} else {
				groupNegatives++
			}
			j++
		}
		// Trapezoid between the curve points before and after the group.
		area += float64(groupNegatives) * (float64(truePositives) + float64(groupPositives)/2.0)
		truePositives += groupPositives
		falsePositives += groupNegatives
		i = j
	}
	return area / (float64(positives) * float64(negatives)), nil
}

// defaultRocSmoothing is the width of the logistic surrogate used by the
// ROC-area gradient.
const defaultRocSmoothing = 0.1

// RocAreaError is the loss term 1 - AUC for binary classification. The
// exact area is a rank statistic with zero gradient almost everywhere, so
// the output gradient uses the logistic-smoothed Wilcoxon-Mann-Whitney
// surrogate: area ≈ mean over (positive, negative) pairs of
// logistic((s⁺ - s⁻)/h).
type RocAreaError struct {
	// Smoothing is the surrogate width h. Zero selects the default.
	Smoothing float64
}

// NewRocAreaError creates a ROC-area error term with the default smoothing.
func NewRocAreaError() *RocAreaError {
	return &RocAreaError{Smoothing: defaultRocSmoothing}
}

func (e *RocAreaError) smoothing() float64 {
	if e.Smoothing <= 0 {
		return defaultRocSmoothing
	}
	return e.Smoothing
}

// CalculateError returns 1 - RocArea for a single-output batch.
func (e *RocAreaError) CalculateError(outputs, targets *mat.Dense) (float64, error) {
	scores, classes, err := rocColumns("RocAreaError.CalculateError", outputs, targets)
	if err != nil {
		return 0, err
	}
	area, err := RocArea(scores, classes)
	if err != nil {
		return 0, err
	}
	return 1.0 - area, nil
}

// CalculateOutputGradient returns the gradient of the smoothed error with
// respect to each output score, one row per sample.
func (e *RocAreaError) CalculateOutputGradient(outputs, targets *mat.Dense) (*mat.Dense, error) {
	scores, classes, err := rocColumns("RocAreaError.CalculateOutputGradient", outputs, targets)
	if err != nil {
		return nil, err
	}

	var positives, negatives []int
	for i, t := range classes {
		if t > 0.5 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}

	gradient := mat.NewDense(len(scores), 1, nil)
	if len(positives) == 0 || len(negatives) == 0 {
		return gradient, nil
	}

	h := e.smoothing()
	scale := 1.0 / (float64(len(positives)) * float64(len(negatives)) * h)
	for _, p := range positives {
		for _, n := range negatives {
			// d/ds of -logistic((s_p - s_n)/h), split between the pair.
			d := (scores[p] - scores[n]) / h
			slope := ActivateDerivative(d, Logistic) * scale
			gradient.Set(p, 0, gradient.At(p, 0)-slope)
			gradient.Set(n, 0, gradient.At(n, 0)+slope)
		}
	}
	return gradient, nil
}

func rocColumns(op string, outputs, targets *mat.Dense) ([]float64, []float64, error) {
	rows, cols := outputs.Dims()
	tRows, tCols := targets.Dims()
	if cols != 1 || tCols != 1 {
		return nil, nil, errConfigf(op, "ROC area needs single-column outputs and targets, got %d and %d", cols, tCols)
	}
	if rows != tRows {
		return nil, nil, errConfigf(op, "got %d outputs for %d targets", rows, tRows)
	}
	scores := make([]float64, rows)
	classes := make([]float64, rows)
	for i := 0; i < rows; i++ {
		scores[i] = outputs.At(i, 0)
		classes[i] = targets.At(i, 0)
	}
	return scores, classes, nil
}
