package handeye

import (
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// PredictPoses maps the B sequence into the A frame through a solved pair:
// A ≈ Y·B·X⁻¹.
func PredictPoses(b PoseSequence, x, y Transform) PoseSequence {
	xInv := x.Inverse()
	out := make(PoseSequence, len(b))
	for i, p := range b {
		out[i] = y.Mul(p).Mul(xInv)
	}
	return out
}

// TrajectoryRenderer draws the measured A positions projected onto the XY
// plane together with the positions each method predicts from B.
type TrajectoryRenderer struct {
	Measured          orb.LineString
	Predicted         map[string]orb.LineString
	Resolution        canvas.Resolution
	GridSpacing       float64 // Grid line spacing in translation units; 0 disables
	SimplifyTolerance float64 // Douglas-Peucker tolerance for the drawn paths; 0 disables
	Padding           float64
}

// NewTrajectoryRenderer builds a renderer from the measured poses and every
// successful outcome of a batch.
func NewTrajectoryRenderer(a, b PoseSequence, res *BatchResult) *TrajectoryRenderer {
	r := &TrajectoryRenderer{
		Measured:    planPath(a),
		Predicted:   make(map[string]orb.LineString),
		Resolution:  canvas.DPI(DefaultResolution),
		GridSpacing: DefaultGridSpacing,
	}
	if res != nil {
		for _, o := range res.Outcomes {
			if o.OK() {
				r.Predicted[o.Method] = planPath(PredictPoses(b, o.Result.X, o.Result.Y))
			}
		}
	}
	r.Padding = 0.05 * math.Max(boundSpan(r.bounds()), 1)
	return r
}

// ApplyConfig copies the render settings of a configuration onto the
// renderer.
func (r *TrajectoryRenderer) ApplyConfig(c *Config) {
	r.Resolution = canvas.DPI(c.Resolution())
	r.GridSpacing = c.GridSpacing()
	if c != nil {
		r.SimplifyTolerance = c.Render.SimplifyTolerance
	}
}

func planPath(poses PoseSequence) orb.LineString {
	ls := make(orb.LineString, len(poses))
	for i, p := range poses {
		ls[i] = orb.Point{p.T.X, p.T.Y}
	}
	return ls
}

func boundSpan(b orb.Bound) float64 {
	return math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
}

// PathLength returns the planar length of the measured trajectory.
func (r *TrajectoryRenderer) PathLength() float64 {
	return planar.Length(r.Measured)
}

func (r *TrajectoryRenderer) bounds() orb.Bound {
	b := r.Measured.Bound()
	for _, ls := range r.Predicted {
		if len(ls) > 0 {
			b = b.Union(ls.Bound())
		}
	}
	return b
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the trajectories as SVG
func (r *TrajectoryRenderer) RenderToSVG(w io.Writer) error {
	b := r.bounds()
	width, height := r.size(b)
	s := svg.New(w, width, height, nil)
	r.renderToCanvas(s, b, width, height)
	return s.Close()
}

// RenderToPNG writes the trajectories as PNG
func (r *TrajectoryRenderer) RenderToPNG(w io.Writer) error {
	b := r.bounds()
	width, height := r.size(b)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)
	return png.Encode(w, rast)
}

func (r *TrajectoryRenderer) size(b orb.Bound) (float64, float64) {
	width := b.Max[0] - b.Min[0] + 2*r.Padding
	height := b.Max[1] - b.Min[1] + 2*r.Padding
	return math.Max(width, 1), math.Max(height, 1)
}

func (r *TrajectoryRenderer) renderToCanvas(renderer canvasRenderer, b orb.Bound, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p orb.Point) (float64, float64) {
		return p[0] - b.Min[0] + r.Padding, p[1] - b.Min[1] + r.Padding
	}
	stroke := math.Max(width, height) / 400

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: color.RGBA{211, 211, 211, 255}}
		gridStyle.StrokeWidth = stroke / 2
		gridStyle.Dashes = []float64{2 * stroke, 2 * stroke}

		for x := math.Floor(b.Min[0]/r.GridSpacing) * r.GridSpacing; x <= b.Max[0]; x += r.GridSpacing {
			p := &canvas.Path{}
			p.MoveTo(toCanvas(orb.Point{x, b.Min[1]}))
			p.LineTo(toCanvas(orb.Point{x, b.Max[1]}))
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
		for y := math.Floor(b.Min[1]/r.GridSpacing) * r.GridSpacing; y <= b.Max[1]; y += r.GridSpacing {
			p := &canvas.Path{}
			p.MoveTo(toCanvas(orb.Point{b.Min[0], y}))
			p.LineTo(toCanvas(orb.Point{b.Max[0], y}))
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
	}

	methods := make([]string, 0, len(r.Predicted))
	for m := range r.Predicted {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		r.drawPath(renderer, r.Predicted[m], MethodColor(m), stroke, toCanvas)
	}

	// Measured poses go on top, as a black path with a marker per pose.
	r.drawPath(renderer, r.Measured, color.RGBA{0, 0, 0, 255}, 1.5*stroke, toCanvas)
	markerStyle := canvas.DefaultStyle
	markerStyle.Fill = canvas.Paint{Color: canvas.Black}
	markerStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, p := range r.Measured {
		cx, cy := toCanvas(p)
		renderer.RenderPath(canvas.Circle(2*stroke).Translate(cx, cy), markerStyle, canvas.Identity)
	}
}

func (r *TrajectoryRenderer) drawPath(renderer canvasRenderer, ls orb.LineString, c color.RGBA, width float64, toCanvas func(orb.Point) (float64, float64)) {
	if len(ls) < 2 {
		return
	}
	if r.SimplifyTolerance > 0 {
		ls = simplify.DouglasPeucker(r.SimplifyTolerance).Simplify(ls.Clone()).(orb.LineString)
	}
	style := canvas.DefaultStyle
	style.Fill = canvas.Paint{Color: canvas.Transparent}
	style.Stroke = canvas.Paint{Color: c}
	style.StrokeWidth = width

	p := &canvas.Path{}
	for i, pt := range ls {
		x, y := toCanvas(pt)
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	renderer.RenderPath(p, style, canvas.Identity)
}
