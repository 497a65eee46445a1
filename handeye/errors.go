package handeye

import "errors"

var (
	// ErrUnknownMethod is returned when a method identifier is not one of the
	// five recognized solvers.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrAlgorithmFailed marks a numerical failure inside a solver: a
	// factorization that did not converge, a singular normalization, or a
	// non-finite result.
	ErrAlgorithmFailed = errors.New("algorithm failed")

	// ErrLengthMismatch is returned when the two pose sequences are not
	// index-aligned.
	ErrLengthMismatch = errors.New("pose sequences differ in length")

	// ErrInsufficientPoses is returned when a sequence is too short for the
	// requested operation.
	ErrInsufficientPoses = errors.New("not enough poses")
)
