package handeye

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Method identifies one of the supported solvers.
type Method int

const (
	TsaiLenz Method = iota
	ParkMartin
	Daniilidis
	LiWangWu
	Shah
)

var methodNames = [...]string{
	TsaiLenz:   "tsai-lenz",
	ParkMartin: "park-martin",
	Daniilidis: "daniilidis",
	LiWangWu:   "li-wang-wu",
	Shah:       "shah",
}

// AllMethods returns every solver in canonical order.
func AllMethods() []Method {
	return []Method{TsaiLenz, ParkMartin, Daniilidis, LiWangWu, Shah}
}

// MethodNames returns the canonical identifiers in canonical order.
func MethodNames() []string {
	out := make([]string, len(methodNames))
	copy(out, methodNames[:])
	return out
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// UsesMotionPairs reports whether the solver works on selected relative
// motions and recovers its second unknown with RefineZ.
func (m Method) UsesMotionPairs() bool {
	switch m {
	case TsaiLenz, ParkMartin, Daniilidis:
		return true
	default:
		return false
	}
}

// ParseMethod maps a canonical identifier to its Method.
func ParseMethod(name string) (Method, error) {
	for i, n := range methodNames {
		if n == name {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnknownMethod)
}

// SolveOption configures a solver run.
type SolveOption func(*solveConfig)

type solveConfig struct {
	selection   SelectionOptions
	concurrency int
}

func newSolveConfig(opts []SolveOption) solveConfig {
	cfg := solveConfig{selection: DefaultSelectionOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithSelection replaces the motion pair selection options.
func WithSelection(s SelectionOptions) SolveOption {
	return func(c *solveConfig) {
		c.selection = s
	}
}

// WithMinRotationDeg sets the motion pair rotation threshold in degrees.
func WithMinRotationDeg(deg float64) SolveOption {
	return func(c *solveConfig) {
		c.selection.MinRotationDeg = deg
	}
}

// WithFallbackToAll sets whether an empty selection falls back to all pairs.
func WithFallbackToAll(fallback bool) SolveOption {
	return func(c *solveConfig) {
		c.selection.FallbackToAll = fallback
	}
}

// WithConcurrency bounds the number of methods a batch runs at once.
// Zero or less runs every method at once.
func WithConcurrency(n int) SolveOption {
	return func(c *solveConfig) {
		c.concurrency = n
	}
}

// Solve runs the solver and returns (X, Y) for the joint methods or (X, Z)
// for the methods that refine Z from X.
func (m Method) Solve(a, b PoseSequence, opts ...SolveOption) (Transform, Transform, error) {
	cfg := newSolveConfig(opts)
	switch m {
	case TsaiLenz:
		return SolveTsaiLenz(a, b, cfg.selection)
	case ParkMartin:
		return SolveParkMartin(a, b, cfg.selection)
	case Daniilidis:
		return SolveDaniilidis(a, b, cfg.selection)
	case LiWangWu:
		return SolveLiWangWu(a, b)
	case Shah:
		return SolveShah(a, b)
	default:
		return Transform{}, Transform{}, fmt.Errorf("%s: %w", m, ErrUnknownMethod)
	}
}

// Calibrate solves with m and scores the result against the same poses.
func Calibrate(m Method, a, b PoseSequence, opts ...SolveOption) (*CalibrationResult, error) {
	x, y, err := m.Solve(a, b, opts...)
	if err != nil {
		return nil, err
	}
	if !x.IsFinite() || !y.IsFinite() {
		return nil, fmt.Errorf("%s: non-finite transform: %w", m, ErrAlgorithmFailed)
	}
	tStats, rStats, err := Score(a, b, x, y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	return &CalibrationResult{
		Method:      m.String(),
		X:           x,
		Y:           y,
		Translation: tStats,
		Rotation:    rStats,
	}, nil
}

// RunMethod resolves a canonical method name, then calibrates with it.
func RunMethod(name string, a, b PoseSequence, opts ...SolveOption) (*CalibrationResult, error) {
	m, err := ParseMethod(name)
	if err != nil {
		return nil, err
	}
	return Calibrate(m, a, b, opts...)
}

// RunBatch calibrates with every named method against the same poses. A nil
// or empty list runs all methods. Each method runs in isolation: a failure,
// including an unknown name, becomes that method's Outcome.Err and never
// affects the others. Outcomes keep the order of names.
func RunBatch(ctx context.Context, names []string, a, b PoseSequence, opts ...SolveOption) *BatchResult {
	if len(names) == 0 {
		names = MethodNames()
	}
	cfg := newSolveConfig(opts)
	res := &BatchResult{
		Outcomes:  make([]Outcome, len(names)),
		PoseCount: len(a),
		Started:   time.Now(),
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.concurrency > 0 {
		g.SetLimit(cfg.concurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			res.Outcomes[i] = runIsolated(ctx, name, a, b, opts)
			return nil
		})
	}
	_ = g.Wait()
	res.Duration = time.Since(res.Started)

	for _, o := range res.Outcomes {
		if o.Err != nil {
			log.Printf("[BATCH] %s failed: %v", o.Method, o.Err)
		}
	}
	return res
}

func runIsolated(ctx context.Context, name string, a, b PoseSequence, opts []SolveOption) (out Outcome) {
	out.Method = name
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Err = fmt.Errorf("%s: panic: %v: %w", name, r, ErrAlgorithmFailed)
		}
	}()
	out.Result, out.Err = RunMethod(name, a, b, opts...)
	return out
}
