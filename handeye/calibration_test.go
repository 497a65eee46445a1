package handeye

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCalibration_NotExists(t *testing.T) {
	cal, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, err)
	assert.Nil(t, cal)
}

func TestLoadCalibration_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadCalibration(path)
	assert.ErrorContains(t, err, "parsing calibration file")
}

func TestSaveLoadCalibration_RoundTrip(t *testing.T) {
	a, b := genericTrajectory(5, knownX, knownY)
	cal := NewCalibrationCache(a, b, DefaultSelectionOptions(), sampleBatch())
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	require.NoError(t, SaveCalibration(path, cal))
	assert.NotZero(t, cal.LastUpdated)

	loaded, err := LoadCalibration(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, 5, loaded.PoseCount)
	assert.True(t, loaded.Matches(a, b))
	require.NotNil(t, loaded.GetResult("shah"))
	dt, dr := transformDistance(loaded.GetResult("shah").X, knownX)
	assert.Less(t, dt, 1e-9)
	assert.Less(t, dr, 1e-6)
	assert.Nil(t, loaded.GetResult("tsai-lenz"))
	assert.Contains(t, loaded.Failures["tsai-lenz"], "no motion")
}

func TestCalibrationCache_GetResultNil(t *testing.T) {
	var cal *CalibrationCache
	assert.Nil(t, cal.GetResult("shah"))
	assert.False(t, cal.Matches(nil, nil))
}

func TestCalibrationCache_NeedsRecalibration(t *testing.T) {
	a, b := genericTrajectory(5, knownX, knownY)
	other, _ := genericTrajectory(6, knownX, knownY)
	fresh := NewCalibrationCache(a, b, DefaultSelectionOptions(), sampleBatch())
	stale := NewCalibrationCache(a, b, DefaultSelectionOptions(), sampleBatch())
	stale.LastUpdated = time.Now().Add(-2 * time.Hour).Unix()

	defaults := DefaultSelectionOptions()
	strict := SelectionOptions{MinRotationDeg: 179, FallbackToAll: false}
	noFallback := SelectionOptions{MinRotationDeg: defaults.MinRotationDeg}

	tests := []struct {
		name   string
		cal    *CalibrationCache
		a, b   PoseSequence
		sel    SelectionOptions
		maxAge time.Duration
		want   bool
	}{
		{name: "nil cache", cal: nil, a: a, b: b, sel: defaults, want: true},
		{name: "never updated", cal: &CalibrationCache{InputDigest: PoseDigest(a, b), Selection: defaults}, a: a, b: b, sel: defaults, want: true},
		{name: "same poses", cal: fresh, a: a, b: b, sel: defaults, want: false},
		{name: "different poses", cal: fresh, a: other, b: b, sel: defaults, want: true},
		{name: "other threshold", cal: fresh, a: a, b: b, sel: strict, want: true},
		{name: "fallback disabled", cal: fresh, a: a, b: b, sel: noFallback, want: true},
		{name: "too old", cal: stale, a: a, b: b, sel: defaults, maxAge: time.Hour, want: true},
		{name: "age ignored", cal: stale, a: a, b: b, sel: defaults, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cal.NeedsRecalibration(tt.a, tt.b, tt.sel, tt.maxAge))
		})
	}
}

func TestCalibrationCache_BatchResultOrder(t *testing.T) {
	res := &BatchResult{Outcomes: []Outcome{
		{Method: "shah", Result: &CalibrationResult{X: knownX, Y: knownY}},
		{Method: "daniilidis", Err: errors.New("singular")},
		{Method: "tsai-lenz", Result: &CalibrationResult{X: knownX, Y: knownY}},
	}}
	cal := NewCalibrationCache(nil, nil, DefaultSelectionOptions(), res)

	batch := cal.BatchResult()
	require.Len(t, batch.Outcomes, 3)
	assert.Equal(t, "tsai-lenz", batch.Outcomes[0].Method)
	assert.Equal(t, "daniilidis", batch.Outcomes[1].Method)
	assert.Equal(t, "shah", batch.Outcomes[2].Method)
	assert.False(t, batch.Outcomes[1].OK())
	assert.EqualError(t, batch.Outcomes[1].Err, "singular")
}

func TestCalibrationCache_FailuresKeepSentinels(t *testing.T) {
	res := RunBatch(t.Context(), []string{"tsai-lenz", "bogus", "shah"}, planarTrajectory(3), planarTrajectory(3),
		WithSelection(SelectionOptions{MinRotationDeg: 179}))
	fresh, _ := res.Get("tsai-lenz")
	require.ErrorIs(t, fresh.Err, ErrInsufficientPoses)

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, SaveCalibration(path, NewCalibrationCache(nil, nil, DefaultSelectionOptions(), res)))
	loaded, err := LoadCalibration(path)
	require.NoError(t, err)

	batch := loaded.BatchResult()
	tsai, ok := batch.Get("tsai-lenz")
	require.True(t, ok)
	assert.ErrorIs(t, tsai.Err, ErrInsufficientPoses)
	assert.NotErrorIs(t, tsai.Err, ErrAlgorithmFailed)
	assert.EqualError(t, tsai.Err, fresh.Err.Error())

	// Unknown names are not canonical methods and never come back from the cache.
	_, ok = batch.Get("bogus")
	assert.False(t, ok)
	assert.Equal(t, "unknown-method", loaded.FailureKinds["bogus"])
}

func TestPoseDigest(t *testing.T) {
	a, b := genericTrajectory(4, knownX, knownY)
	assert.Equal(t, PoseDigest(a, b), PoseDigest(a, b))
	assert.NotEqual(t, PoseDigest(a, b), PoseDigest(b, a))
	assert.Len(t, PoseDigest(a, b), 64)
}
