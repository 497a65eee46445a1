package handeye

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid 4x4 homogeneous transform: a rotation R in SO(3) and a
// translation T. The bottom row [0 0 0 1] is implicit.
//
// Transforms are values. Every operation returns a new Transform and never
// modifies its receiver.
type Transform struct {
	R [3][3]float64
	T r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// PoseSequence is an ordered list of poses. Two sequences handed to a solver
// are index-aligned: pose i of A was measured at the same instant as pose i of B.
type PoseSequence []Transform

// MotionPair holds the relative motion between consecutive poses in each of
// the two sequences.
type MotionPair struct {
	A Transform
	B Transform
}

// ErrorStatistics summarizes a scalar error array.
type ErrorStatistics struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	RMSE   float64 `json:"rmse" yaml:"rmse"`
	P95    float64 `json:"p95" yaml:"p95"`
	Max    float64 `json:"max" yaml:"max"`
}

// CalibrationResult is the output bundle of one solver run.
// Y holds the second unknown, which is Z for the methods that recover it
// through the Z refiner.
type CalibrationResult struct {
	Method      string          `json:"method"`
	X           Transform       `json:"x"`
	Y           Transform       `json:"y"`
	Translation ErrorStatistics `json:"translation"`
	Rotation    ErrorStatistics `json:"rotation"`
}

// Outcome is the per-method result of a batch run: either Result is set, or
// Err explains why the method produced nothing.
type Outcome struct {
	Method string
	Result *CalibrationResult
	Err    error
}

// OK reports whether the method produced a result.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// BatchResult collects the outcomes of a batch run in request order.
type BatchResult struct {
	Outcomes  []Outcome
	PoseCount int
	Started   time.Time
	Duration  time.Duration
}

// Get returns the outcome for a method name.
func (b *BatchResult) Get(method string) (Outcome, bool) {
	if b == nil {
		return Outcome{}, false
	}
	for _, o := range b.Outcomes {
		if o.Method == method {
			return o, true
		}
	}
	return Outcome{}, false
}

// TranslationStats maps each method to its translation statistics, or nil
// when the method failed.
func (b *BatchResult) TranslationStats() map[string]*ErrorStatistics {
	out := make(map[string]*ErrorStatistics, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.OK() {
			s := o.Result.Translation
			out[o.Method] = &s
		} else {
			out[o.Method] = nil
		}
	}
	return out
}

// RotationStats maps each method to its rotation statistics, or nil when the
// method failed.
func (b *BatchResult) RotationStats() map[string]*ErrorStatistics {
	out := make(map[string]*ErrorStatistics, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.OK() {
			s := o.Result.Rotation
			out[o.Method] = &s
		} else {
			out[o.Method] = nil
		}
	}
	return out
}

// CalibrationJob is a batch calibration request as received over HTTP or MQTT.
// Poses are 4x4 row-major homogeneous matrices.
type CalibrationJob struct {
	A       PoseSequence `json:"a"`
	B       PoseSequence `json:"b"`
	Methods []string     `json:"methods,omitempty"`
}

// Validate checks the job's structural preconditions.
func (j *CalibrationJob) Validate() error {
	if len(j.A) != len(j.B) {
		return fmt.Errorf("job has %d A poses and %d B poses: %w", len(j.A), len(j.B), ErrLengthMismatch)
	}
	if len(j.A) == 0 {
		return fmt.Errorf("job has no poses: %w", ErrInsufficientPoses)
	}
	return nil
}

// MarshalJSON encodes the transform as a 4x4 row-major matrix.
func (t Transform) MarshalJSON() ([]byte, error) {
	var m [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = t.At(i, j)
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a 4x4 row-major matrix. The bottom row must be
// [0 0 0 1].
func (t *Transform) UnmarshalJSON(data []byte) error {
	var m [][]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 4 {
		return fmt.Errorf("transform must have 4 rows, got %d", len(m))
	}
	for i, row := range m {
		if len(row) != 4 {
			return fmt.Errorf("transform row %d must have 4 columns, got %d", i, len(row))
		}
	}
	if m[3][0] != 0 || m[3][1] != 0 || m[3][2] != 0 || m[3][3] != 1 {
		return fmt.Errorf("transform bottom row must be [0 0 0 1], got %v", m[3])
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.R[i][j] = m[i][j]
		}
	}
	t.T = r3.Vec{X: m[0][3], Y: m[1][3], Z: m[2][3]}
	return nil
}
