package handeye

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// methodColors assigns each solver a fixed hex color
var methodColors = map[string]string{
	"tsai-lenz":   "#1F77B4",
	"park-martin": "#D62728",
	"daniilidis":  "#2CA02C",
	"li-wang-wu":  "#FF7F0E",
	"shah":        "#9467BD",
}

// MethodColor returns the drawing color of a method. Unknown methods are grey.
func MethodColor(method string) color.RGBA {
	if hex, ok := methodColors[method]; ok {
		return parseHexColor(hex)
	}
	return color.RGBA{128, 128, 128, 255}
}

// ErrorChartRenderer draws a bar chart of per-method mean errors: translation
// on the left half, rotation on the right. Failed methods are labelled ERR.
type ErrorChartRenderer struct {
	Batch  *BatchResult
	Unit   string
	Width  int
	RowH   int
	Margin int
}

// NewErrorChartRenderer creates a chart renderer with default layout.
func NewErrorChartRenderer(res *BatchResult, unit string) *ErrorChartRenderer {
	if unit == "" {
		unit = DefaultUnit
	}
	return &ErrorChartRenderer{
		Batch:  res,
		Unit:   unit,
		Width:  800,
		RowH:   28,
		Margin: 12,
	}
}

const labelWidth = 100

// Render draws the chart.
func (r *ErrorChartRenderer) Render() *image.RGBA {
	rows := len(r.Batch.Outcomes)
	height := r.Margin*2 + 20 + rows*r.RowH
	img := image.NewRGBA(image.Rect(0, 0, r.Width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	black := color.RGBA{0, 0, 0, 255}
	panelW := (r.Width - 2*r.Margin - labelWidth) / 2
	leftX := r.Margin + labelWidth
	rightX := leftX + panelW

	drawText(img, leftX, r.Margin+10, fmt.Sprintf("translation mean (%s)", r.Unit), black)
	drawText(img, rightX, r.Margin+10, "rotation mean (deg)", black)

	var maxT, maxR float64
	for _, o := range r.Batch.Outcomes {
		if o.OK() {
			maxT = math.Max(maxT, o.Result.Translation.Mean)
			maxR = math.Max(maxR, o.Result.Rotation.Mean)
		}
	}

	for i, o := range r.Batch.Outcomes {
		y := r.Margin + 20 + i*r.RowH
		drawText(img, r.Margin, y+r.RowH/2+4, o.Method, black)
		if !o.OK() {
			drawText(img, leftX+4, y+r.RowH/2+4, ErrMarker, color.RGBA{200, 0, 0, 255})
			drawText(img, rightX+4, y+r.RowH/2+4, ErrMarker, color.RGBA{200, 0, 0, 255})
			continue
		}
		c := MethodColor(o.Method)
		r.drawBar(img, leftX, y, panelW, o.Result.Translation.Mean, maxT, c)
		r.drawBar(img, rightX, y, panelW, o.Result.Rotation.Mean, maxR, c)
	}
	return img
}

// drawBar draws one bar scaled against maxVal and prints its value
func (r *ErrorChartRenderer) drawBar(img *image.RGBA, x, y, panelW int, val, maxVal float64, c color.RGBA) {
	usable := panelW - 80
	w := 0
	if maxVal > 0 {
		w = int(float64(usable) * val / maxVal)
	}
	fillRect(img, x, y+4, w, r.RowH-8, c)
	drawText(img, x+w+4, y+r.RowH/2+4, fmt.Sprintf("%.4f", val), color.RGBA{0, 0, 0, 255})
}

// WritePNG encodes the chart as PNG.
func (r *ErrorChartRenderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawText renders text with its baseline at (x, y)
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#FF6B6B" to color.RGBA
func parseHexColor(hex string) color.RGBA {
	defaultColor := color.RGBA{255, 0, 0, 255}
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return defaultColor
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return defaultColor
	}
	return color.RGBA{r, g, b, 255}
}
