package handeye

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCalibrationCachePath is the default path of the result cache
const DefaultCalibrationCachePath = ".calibration-cache.json"

// CalibrationCache persists the results of the last successful batch so a
// restarted service can serve them without solving again.
type CalibrationCache struct {
	InputDigest  string                        `json:"inputDigest"`
	PoseCount    int                           `json:"poseCount"`
	Selection    SelectionOptions              `json:"selection"`
	Results      map[string]*CalibrationResult `json:"results"`
	Failures     map[string]string             `json:"failures,omitempty"`
	FailureKinds map[string]string             `json:"failureKinds,omitempty"`
	LastUpdated  int64                         `json:"lastUpdated"`
}

// NewCalibrationCache captures a batch result solved from the given inputs
// under the given selection options.
func NewCalibrationCache(a, b PoseSequence, sel SelectionOptions, res *BatchResult) *CalibrationCache {
	c := &CalibrationCache{
		InputDigest:  PoseDigest(a, b),
		PoseCount:    len(a),
		Selection:    sel,
		Results:      make(map[string]*CalibrationResult),
		Failures:     make(map[string]string),
		FailureKinds: make(map[string]string),
		LastUpdated:  time.Now().Unix(),
	}
	for _, o := range res.Outcomes {
		if o.OK() {
			c.Results[o.Method] = o.Result
		} else if o.Err != nil {
			c.Failures[o.Method] = o.Err.Error()
			if kind := failureKind(o.Err); kind != "" {
				c.FailureKinds[o.Method] = kind
			}
		}
	}
	return c
}

// failureKinds names the sentinel errors a cached failure can carry.
var failureKinds = []struct {
	name string
	err  error
}{
	{"unknown-method", ErrUnknownMethod},
	{"algorithm-failed", ErrAlgorithmFailed},
	{"length-mismatch", ErrLengthMismatch},
	{"insufficient-poses", ErrInsufficientPoses},
}

func failureKind(err error) string {
	for _, k := range failureKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

func failureSentinel(name string) error {
	for _, k := range failureKinds {
		if k.name == name {
			return k.err
		}
	}
	return nil
}

// cachedError restores a failure read from the cache: the original message,
// still matching its sentinel with errors.Is.
type cachedError struct {
	msg  string
	kind error
}

func (e *cachedError) Error() string { return e.msg }
func (e *cachedError) Unwrap() error { return e.kind }

// LoadCalibration loads the result cache. A missing file is not an error and
// yields nil.
func LoadCalibration(path string) (*CalibrationCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache yet
		}
		return nil, fmt.Errorf("reading calibration file: %w", err)
	}

	var cal CalibrationCache
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parsing calibration file: %w", err)
	}

	return &cal, nil
}

// SaveCalibration writes the result cache, creating its directory if needed.
func SaveCalibration(path string, cal *CalibrationCache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating calibration directory: %w", err)
	}

	cal.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling calibration data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing calibration file: %w", err)
	}

	return nil
}

// GetResult returns the cached result of a method, or nil.
func (c *CalibrationCache) GetResult(method string) *CalibrationResult {
	if c == nil || c.Results == nil {
		return nil
	}
	return c.Results[method]
}

// Matches reports whether the cache was computed from exactly these poses.
func (c *CalibrationCache) Matches(a, b PoseSequence) bool {
	return c != nil && c.InputDigest == PoseDigest(a, b)
}

// NeedsRecalibration reports whether the cache is missing, older than maxAge,
// or computed from other poses or under other selection options.
func (c *CalibrationCache) NeedsRecalibration(a, b PoseSequence, sel SelectionOptions, maxAge time.Duration) bool {
	if c == nil || c.LastUpdated == 0 {
		return true
	}
	if !c.Matches(a, b) || c.Selection != sel {
		return true
	}
	return maxAge > 0 && time.Since(time.Unix(c.LastUpdated, 0)) > maxAge
}

// BatchResult rebuilds a batch result from the cache in canonical order.
func (c *CalibrationCache) BatchResult() *BatchResult {
	res := &BatchResult{PoseCount: c.PoseCount, Started: time.Unix(c.LastUpdated, 0)}
	for _, m := range MethodNames() {
		if r := c.Results[m]; r != nil {
			res.Outcomes = append(res.Outcomes, Outcome{Method: m, Result: r})
		} else if msg, ok := c.Failures[m]; ok {
			res.Outcomes = append(res.Outcomes, Outcome{Method: m, Err: &cachedError{msg: msg, kind: failureSentinel(c.FailureKinds[m])}})
		}
	}
	return res
}

// PoseDigest fingerprints a pair of pose sequences.
func PoseDigest(a, b PoseSequence) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(a)
	_ = enc.Encode(b)
	return hex.EncodeToString(h.Sum(nil))
}
