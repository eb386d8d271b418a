package network

import "math"

// Patch geometry
func BoundPatchDim(v int) int {
	return int(math.Max(1, math.Min(255, float64(v)))) // Default: 31
}

func BoundEmbeddingSize(v int) int {
	return int(math.Max(1, math.Min(64, float64(v)))) // Default: 2
}

// Pair sampling
func BoundNumDraw(v int) int {
	return int(math.Max(1, math.Min(50, float64(v)))) // Default: 10
}

func BoundNumTargets(v int) int {
	return int(math.Max(1, math.Min(50, float64(v)))) // Default: 1
}

// Regularization and loss
func BoundDropoutRate(v float64) float64 {
	return math.Max(0, math.Min(0.9, v)) // Default: 0.1
}

func BoundL2Penalty(v float64) float64 {
	return math.Max(0, math.Min(0.5, v)) // Default: 0.001
}

func BoundMargin(v float64) float64 {
	return math.Max(0.01, math.Min(100, v)) // Default: 1.0
}

func BoundLearnRate(v float64) float64 {
	return math.Max(1e-7, math.Min(0.5, v)) // Default: 0.001
}

// Optimization loop
func BoundBatchSize(v int) int {
	return int(math.Max(1, math.Min(1024, float64(v)))) // Default: 32
}

func BoundEpochs(v int) int {
	return int(math.Max(1, math.Min(1000, float64(v)))) // Default: 1
}

func BoundValidationSplit(v float64) float64 {
	return math.Max(0, math.Min(0.5, v)) // Default: 0.1
}
