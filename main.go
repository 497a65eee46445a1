package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/handeye/handeye"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the parsed command line.
type AppOptions struct {
	ConfigFile       string
	CalibrationCache string
	Method           string
	FileA            string
	FileB            string
	URLA             string
	URLB             string
	PrintXY          bool
	MinRotationDeg   float64
	MinRotationSet   bool
	NoFallback       bool
	Units            string
	Render           bool
	RenderFormat     string
	OutputFile       string
	GridSpacing      float64
	MqttMode         bool
	HttpMode         bool
	HttpPort         int
}

// application is the set of run modes main dispatches to.
type application interface {
	ApplyOptions(opts AppOptions)
	RunCompare() error
	RunRender() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp(os.Stdout)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("handeye: %v", err)
	}
}

func run(args []string, out io.Writer, app application) error {
	fs := flag.NewFlagSet("handeye", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "Path to YAML configuration file")
	fs.StringVar(&opts.CalibrationCache, "calibration-cache", handeye.DefaultCalibrationCachePath, "Path to result cache file")
	fs.StringVar(&opts.Method, "method", handeye.AllAlias, "Method: tsai-lenz | park-martin | daniilidis | li-wang-wu | shah | all")
	fs.StringVar(&opts.Method, "m", handeye.AllAlias, "Shorthand for --method")
	fs.StringVar(&opts.FileA, "file-a", "", "Pose file A (id X Y Z RZ RY RX)")
	fs.StringVar(&opts.FileA, "a", "", "Shorthand for --file-a")
	fs.StringVar(&opts.FileB, "file-b", "", "Pose file B (id X Y Z RZ RY RX)")
	fs.StringVar(&opts.FileB, "b", "", "Shorthand for --file-b")
	fs.StringVar(&opts.URLA, "url-a", "", "Fetch pose file A over HTTP")
	fs.StringVar(&opts.URLB, "url-b", "", "Fetch pose file B over HTTP")
	fs.BoolVar(&opts.PrintXY, "print-xy", false, "Print X and Y(Z) for a single method")
	fs.Float64Var(&opts.MinRotationDeg, "min-rotation", handeye.DefaultMinRotationDeg, "Minimum relative rotation (degrees) of a motion pair")
	fs.BoolVar(&opts.NoFallback, "no-fallback", false, "Fail instead of using all pairs when none passes --min-rotation")
	fs.StringVar(&opts.Units, "units", "", "Length unit of the pose files, used in reports (default mm)")
	fs.BoolVar(&opts.Render, "render", false, "Render calibration results to --output and exit")
	fs.StringVar(&opts.RenderFormat, "format", "svg", "Render format: svg, png, chart, residuals, rotation-residuals")
	fs.StringVar(&opts.OutputFile, "output", "trajectory.svg", "Output file for --render mode")
	fs.Float64Var(&opts.GridSpacing, "grid-spacing", 0, "Grid line spacing in translation units (default 100)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode, solving jobs from mqtt.requestTopic")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable the HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 0, fmt.Sprintf("HTTP server port (default %d)", handeye.DefaultHTTPPort))

	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-rotation" {
			opts.MinRotationSet = true
		}
	})

	fmt.Fprintf(out, "handeye version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	case opts.Render:
		return app.RunRender()
	case opts.FileA != "" || opts.URLA != "" || opts.ConfigFile != "":
		return app.RunCompare()
	}

	fmt.Fprintln(out, "No pose input given.")
	fmt.Fprintln(out, "Use --file-a A.txt --file-b B.txt to compare all methods")
	fmt.Fprintln(out, "Use --method NAME --print-xy to run one method and print X and Y")
	fmt.Fprintln(out, "Use --render --format svg|png|chart|residuals to draw the results")
	fmt.Fprintln(out, "Use --mqtt and/or --http to run as a service")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - inputs, methods, selection, MQTT and render settings")
	fmt.Fprintln(out, "  .calibration-cache.json - results of the last batch (cached)")
	return nil
}
