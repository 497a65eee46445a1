package handeye

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ResidualKind selects which per-pose residual a plot shows.
type ResidualKind string

const (
	TranslationResidual ResidualKind = "translation"
	RotationResidual    ResidualKind = "rotation"
)

// ResidualPlot builds a line plot of the per-pose residual of every
// successful method in a batch.
func ResidualPlot(a, b PoseSequence, res *BatchResult, kind ResidualKind, unit string) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Pose"
	switch kind {
	case TranslationResidual:
		p.Title.Text = "Translation residual per pose"
		p.Y.Label.Text = fmt.Sprintf("Error (%s)", unit)
	case RotationResidual:
		p.Title.Text = "Rotation residual per pose"
		p.Y.Label.Text = "Error (deg)"
	default:
		return nil, fmt.Errorf("unknown residual kind %q", kind)
	}

	for _, o := range res.Outcomes {
		if !o.OK() {
			continue
		}
		trans, rot, err := Residuals(a, b, o.Result.X, o.Result.Y)
		if err != nil {
			return nil, err
		}
		vals := trans
		if kind == RotationResidual {
			vals = rot
		}
		if len(vals) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(vals))
		for i, v := range vals {
			pts[i] = plotter.XY{X: float64(i), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s residuals: %w", o.Method, err)
		}
		line.Color = MethodColor(o.Method)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(o.Method, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteResidualPlot renders a residual plot as PNG.
func WriteResidualPlot(w io.Writer, a, b PoseSequence, res *BatchResult, kind ResidualKind, unit string) error {
	p, err := ResidualPlot(a, b, res, kind, unit)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering residual plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
