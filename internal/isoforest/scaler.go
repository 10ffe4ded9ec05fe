package isoforest

import (
	"fmt"
	"math"
)

// StandardScaler centers each feature column to zero mean and unit
// variance (population standard deviation). Constant columns keep a scale
// of 1 so transformed values stay finite.
type StandardScaler struct {
	means  []float64
	scales []float64
}

// FitScaler computes per-column statistics over data.
func FitScaler(data [][]float64) (*StandardScaler, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty dataset")
	}

	features := len(data[0])
	means := make([]float64, features)
	scales := make([]float64, features)

	for _, row := range data {
		if len(row) != features {
			return nil, fmt.Errorf("ragged row: expected %d features, got %d", features, len(row))
		}
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(data))
	}

	for _, row := range data {
		for j, v := range row {
			diff := v - means[j]
			scales[j] += diff * diff
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j] / float64(len(data)))
		if scales[j] == 0 {
			scales[j] = 1
		}
	}

	return &StandardScaler{means: means, scales: scales}, nil
}

// Transform returns a standardized copy of data; the input is not mutated.
func (s *StandardScaler) Transform(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.means[j]) / s.scales[j]
		}
		out[i] = scaled
	}
	return out
}
