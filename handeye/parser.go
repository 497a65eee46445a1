package handeye

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/spatial/r3"
)

// PoseRecord is one row of a pose file: a frame id, a position and ZYX Euler
// angles in degrees.
type PoseRecord struct {
	ID         string
	X, Y, Z    float64
	RZ, RY, RX float64
}

// Transform converts the record into a rigid transform.
func (p PoseRecord) Transform() Transform {
	return PoseFromEuler(deg2rad(p.RZ), deg2rad(p.RY), deg2rad(p.RX), r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
}

// ParsePoseFile reads a pose file from disk.
func ParsePoseFile(path string) (PoseSequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	poses, err := ParsePoses(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return poses, nil
}

// ParsePoses reads pose records and converts them to transforms.
func ParsePoses(r io.Reader) (PoseSequence, error) {
	records, err := ParsePoseRecords(r)
	if err != nil {
		return nil, err
	}
	poses := make(PoseSequence, len(records))
	for i, rec := range records {
		poses[i] = rec.Transform()
	}
	return poses, nil
}

// ParsePoseRecords reads whitespace or comma delimited rows with columns
// id, X, Y, Z, RZ, RY, RX. Columns past the seventh are ignored. Blank lines
// and lines starting with '#' are skipped.
func ParsePoseRecords(r io.Reader) ([]PoseRecord, error) {
	var records []PoseRecord
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ';' || unicode.IsSpace(c)
		})
		if len(fields) < 7 {
			return nil, fmt.Errorf("line %d: expected 7 columns, got %d", line, len(fields))
		}
		var vals [6]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+2, err)
			}
			vals[i] = v
		}
		records = append(records, PoseRecord{
			ID: fields[0],
			X:  vals[0], Y: vals[1], Z: vals[2],
			RZ: vals[3], RY: vals[4], RX: vals[5],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading poses: %w", err)
	}
	return records, nil
}

// LoadPosePair reads two index-aligned pose files.
func LoadPosePair(pathA, pathB string) (PoseSequence, PoseSequence, error) {
	a, err := ParsePoseFile(pathA)
	if err != nil {
		return nil, nil, err
	}
	b, err := ParsePoseFile(pathB)
	if err != nil {
		return nil, nil, err
	}
	if err := checkSequences(a, b); err != nil {
		return nil, nil, fmt.Errorf("%s and %s: %w", pathA, pathB, err)
	}
	return a, b, nil
}

// RotationToEulerZYX returns (rz, ry, rx) in radians such that
// EulerZYXToRotation(rz, ry, rx) reproduces the rotation. At gimbal lock rx
// is set to zero.
func RotationToEulerZYX(t Transform) (rz, ry, rx float64) {
	sy := -t.R[2][0]
	sy = math.Max(-1, math.Min(1, sy))
	ry = math.Asin(sy)
	if math.Abs(sy) > 1-1e-12 {
		rz = math.Atan2(-t.R[0][1], t.R[1][1])
		return rz, ry, 0
	}
	rz = math.Atan2(t.R[1][0], t.R[0][0])
	rx = math.Atan2(t.R[2][1], t.R[2][2])
	return rz, ry, rx
}

// FormatPoses writes poses in the format read by ParsePoses, one row per
// pose numbered from 1.
func FormatPoses(w io.Writer, poses PoseSequence) error {
	for i, p := range poses {
		rz, ry, rx := RotationToEulerZYX(p)
		_, err := fmt.Fprintf(w, "%d %.6f %.6f %.6f %.6f %.6f %.6f\n",
			i+1, p.T.X, p.T.Y, p.T.Z, rad2deg(rz), rad2deg(ry), rad2deg(rx))
		if err != nil {
			return err
		}
	}
	return nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
