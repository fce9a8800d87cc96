package core

import "github.com/signalsfoundry/production-optimizer/model"

// CompoundYield multiplies the upstream quality fractions together and then by
// (1 - ownDefectRate). The multiplication order is fixed (left to right,
// own rate last) so results are reproducible to the last bit.
func CompoundYield(parts []float64, ownDefectRate float64) (float64, error) {
	y := 1.0
	for _, q := range parts {
		if err := model.CheckFraction("", "quality", q); err != nil {
			return 0, err
		}
		y *= q
	}
	if err := model.CheckFraction("", "defect_rate", ownDefectRate); err != nil {
		return 0, err
	}
	return y * (1 - ownDefectRate), nil
}

// Purity is the true-good share of a batch of nominal size qualified.
// An empty batch (0/0) has purity 0.
func Purity(qualified, actualQualified int) float64 {
	if qualified <= 0 {
		return 0
	}
	return float64(actualQualified) / float64(qualified)
}

// floorUnits truncates a nonnegative unit estimate toward zero.
func floorUnits(x float64) int {
	if x <= 0 {
		return 0
	}
	return int(x)
}
