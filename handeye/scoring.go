package handeye

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Residuals returns, for each pose, the translation and rotation error of
// Δ = inv(A·X)·(Y·B). Rotation errors are in degrees.
func Residuals(a, b PoseSequence, x, y Transform) (trans, rot []float64, err error) {
	if err := checkSequences(a, b); err != nil {
		return nil, nil, fmt.Errorf("scoring: %w", err)
	}
	trans = make([]float64, len(a))
	rot = make([]float64, len(a))
	for i := range a {
		delta := a[i].Mul(x).Inverse().Mul(y.Mul(b[i]))
		trans[i] = r3.Norm(delta.T)
		rot[i] = r3.Norm(LogSO3(delta.Rotation())) * 180 / math.Pi
	}
	return trans, rot, nil
}

// Score evaluates X and Y against the pose sequences and returns independent
// translation and rotation statistics.
func Score(a, b PoseSequence, x, y Transform) (ErrorStatistics, ErrorStatistics, error) {
	trans, rot, err := Residuals(a, b, x, y)
	if err != nil {
		return ErrorStatistics{}, ErrorStatistics{}, err
	}
	return SummarizeErrors(trans), SummarizeErrors(rot), nil
}

// SummarizeErrors aggregates a scalar error array. An empty array yields zero
// statistics.
func SummarizeErrors(values []float64) ErrorStatistics {
	if len(values) == 0 {
		return ErrorStatistics{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return ErrorStatistics{
		Mean:   stat.Mean(values, nil),
		Median: percentile(sorted, 0.5),
		RMSE:   math.Sqrt(floats.Dot(values, values) / float64(len(values))),
		P95:    percentile(sorted, 0.95),
		Max:    floats.Max(values),
	}
}

// percentile linearly interpolates between the closest ranks of a sorted
// slice at position (n−1)·p.
func percentile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
