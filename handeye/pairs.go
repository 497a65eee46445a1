package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMinRotationDeg is the minimum rotation, in degrees, that both
// relative motions of a pair must reach to be kept.
const DefaultMinRotationDeg = 2.0

// SelectionOptions controls motion pair selection.
type SelectionOptions struct {
	// MinRotationDeg is the minimum rotation angle of both relative motions.
	MinRotationDeg float64 `json:"minRotationDeg"`
	// FallbackToAll keeps every consecutive pair when none passes the
	// threshold. Without it an empty selection is an error.
	FallbackToAll bool `json:"fallbackToAll"`
}

// DefaultSelectionOptions returns a 2° threshold with fallback enabled.
func DefaultSelectionOptions() SelectionOptions {
	return SelectionOptions{MinRotationDeg: DefaultMinRotationDeg, FallbackToAll: true}
}

// RelativeMotion returns inv(from)·to.
func RelativeMotion(from, to Transform) Transform {
	return from.Inverse().Mul(to)
}

// SelectMotionPairs builds relative motions between consecutive poses and
// keeps the pairs in which both motions rotate by at least the threshold.
// Pairs keep their consecutive order.
func SelectMotionPairs(a, b PoseSequence, opts SelectionOptions) ([]MotionPair, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("selecting motion pairs from %d and %d poses: %w", len(a), len(b), ErrLengthMismatch)
	}
	if len(a) < 2 {
		return nil, fmt.Errorf("selecting motion pairs from %d poses: %w", len(a), ErrInsufficientPoses)
	}

	threshold := opts.MinRotationDeg * math.Pi / 180
	all := make([]MotionPair, 0, len(a)-1)
	var kept []MotionPair
	for i := 0; i+1 < len(a); i++ {
		p := MotionPair{
			A: RelativeMotion(a[i], a[i+1]),
			B: RelativeMotion(b[i], b[i+1]),
		}
		all = append(all, p)
		if rotationNorm(p.A) >= threshold && rotationNorm(p.B) >= threshold {
			kept = append(kept, p)
		}
	}

	if len(kept) == 0 {
		if !opts.FallbackToAll {
			return nil, fmt.Errorf("no motion pair rotates by %.2f° or more: %w", opts.MinRotationDeg, ErrInsufficientPoses)
		}
		return all, nil
	}
	return kept, nil
}

func rotationNorm(t Transform) float64 {
	return r3.Norm(LogSO3(t.Rotation()))
}
