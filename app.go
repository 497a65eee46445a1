package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/handeye/handeye"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *handeye.Config
	Cache      *handeye.CalibrationCache
	Store      *handeye.ResultStore
	Runner     *handeye.Runner
	MQTTClient *handeye.MQTTClient
	Publisher  *handeye.Publisher
	Out        io.Writer

	opts AppOptions
}

// NewApp creates a new App writing reports to out
func NewApp(out io.Writer) *App {
	return &App{
		Store: handeye.NewResultStore(),
		Out:   out,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file, if any, and lets flags override it.
func (a *App) loadConfig() (*handeye.Config, error) {
	cfg := &handeye.Config{}
	if a.opts.ConfigFile != "" {
		loaded, err := handeye.LoadConfig(a.opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		log.Printf("Loaded config from %s", a.opts.ConfigFile)
	}

	if a.opts.FileA != "" || a.opts.FileB != "" {
		cfg.Inputs.FileA = a.opts.FileA
		cfg.Inputs.FileB = a.opts.FileB
	}
	if a.opts.URLA != "" || a.opts.URLB != "" {
		cfg.Inputs.URLA = a.opts.URLA
		cfg.Inputs.URLB = a.opts.URLB
	}
	if a.opts.Method != "" && !strings.EqualFold(a.opts.Method, handeye.AllAlias) {
		cfg.Methods = []string{a.opts.Method}
	}
	if a.opts.MinRotationSet {
		deg := a.opts.MinRotationDeg
		cfg.Selection.MinRotationDeg = &deg
	}
	if a.opts.NoFallback {
		fallback := false
		cfg.Selection.FallbackToAll = &fallback
	}
	if a.opts.Units != "" {
		cfg.Units.Translation = a.opts.Units
	}
	if a.opts.GridSpacing > 0 {
		cfg.Render.GridSpacing = a.opts.GridSpacing
	}
	if a.opts.HttpPort != 0 {
		cfg.HTTP.Port = a.opts.HttpPort
	}
	if cfg.CachePath == "" {
		cfg.CachePath = a.opts.CalibrationCache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.Config = cfg
	return cfg, nil
}

// singleMethod returns the canonical method name when exactly one method is
// requested.
func (a *App) singleMethod() (string, bool, error) {
	if a.opts.Method == "" {
		return "", false, nil
	}
	names, err := handeye.ResolveMethodAlias(a.opts.Method)
	if err != nil {
		return "", false, err
	}
	if len(names) != 1 {
		return "", false, nil
	}
	return names[0], true, nil
}

func (a *App) setup(ctx context.Context) (handeye.PoseSequence, handeye.PoseSequence, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	poseA, poseB, err := handeye.LoadPoseSource(ctx, cfg.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("loading poses: %w", err)
	}
	a.Store.SetPoses(poseA, poseB)

	cache, err := handeye.LoadCalibration(cfg.CachePath)
	if err != nil {
		log.Printf("[CACHE] Warning: failed to load %s: %v", cfg.CachePath, err)
	}
	a.Cache = cache
	a.Runner = handeye.NewRunner(cfg, cache, cfg.CachePath, a.Store, a.Publisher)
	return poseA, poseB, nil
}

// RunCompare solves the loaded poses with one method or all of them and
// prints the error tables.
func (a *App) RunCompare() error {
	ctx := context.Background()
	method, single, err := a.singleMethod()
	if err != nil {
		return err
	}
	poseA, poseB, err := a.setup(ctx)
	if err != nil {
		return err
	}
	unit := a.Config.TranslationUnit()

	if single {
		res, err := handeye.RunMethod(method, poseA, poseB, a.Config.SolveOptions()...)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		if err := handeye.WriteResultReport(a.Out, res, unit); err != nil {
			return err
		}
		if a.opts.PrintXY {
			fmt.Fprintf(a.Out, "\n%s\n%s\n", handeye.FormatTransform("X", res.X), handeye.FormatTransform("Y", res.Y))
		}
		return nil
	}

	res, err := a.Runner.Run(ctx, poseA, poseB, a.Config.MethodList())
	if err != nil {
		return err
	}
	return handeye.WriteBatchReport(a.Out, res, unit)
}

// RunRender solves the loaded poses with every configured method and writes
// the chosen image to the output file.
func (a *App) RunRender() error {
	ctx := context.Background()
	poseA, poseB, err := a.setup(ctx)
	if err != nil {
		return err
	}
	res, err := a.Runner.Run(ctx, poseA, poseB, a.Config.MethodList())
	if err != nil {
		return err
	}

	f, err := os.Create(a.opts.OutputFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", a.opts.OutputFile, err)
	}
	if err := renderFormat(f, a.opts.RenderFormat, poseA, poseB, res, a.Config); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", a.opts.OutputFile, err)
	}
	fmt.Fprintf(a.Out, "Rendered %s to %s\n", a.opts.RenderFormat, a.opts.OutputFile)
	return nil
}

// renderFormat writes one of the supported images of a batch to w.
func renderFormat(w io.Writer, format string, poseA, poseB handeye.PoseSequence, res *handeye.BatchResult, cfg *handeye.Config) error {
	unit := cfg.TranslationUnit()
	switch format {
	case "svg", "png":
		r := handeye.NewTrajectoryRenderer(poseA, poseB, res)
		r.ApplyConfig(cfg)
		if format == "svg" {
			return r.RenderToSVG(w)
		}
		return r.RenderToPNG(w)
	case "chart":
		return handeye.NewErrorChartRenderer(res, unit).WritePNG(w)
	case "residuals":
		return handeye.WriteResidualPlot(w, poseA, poseB, res, handeye.TranslationResidual, unit)
	case "rotation-residuals":
		return handeye.WriteResidualPlot(w, poseA, poseB, res, handeye.RotationResidual, unit)
	default:
		return fmt.Errorf("unknown render format %q (svg, png, chart, residuals, rotation-residuals)", format)
	}
}

// RunService keeps solving jobs from MQTT and/or HTTP until interrupted.
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting handeye service...")

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	cache, err := handeye.LoadCalibration(cfg.CachePath)
	if err != nil {
		log.Printf("[CACHE] Warning: failed to load %s: %v", cfg.CachePath, err)
	} else if cache != nil {
		log.Printf("[CACHE] Loaded %d cached results from %s", len(cache.Results), cfg.CachePath)
		a.Store.Update(nil, nil, cache.BatchResult())
	}
	a.Cache = cache
	a.Runner = handeye.NewRunner(cfg, cache, cfg.CachePath, a.Store, nil)

	if a.opts.MqttMode {
		client, err := handeye.InitMQTT(cfg, a.Runner.HandleJob)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if client == nil {
			return errors.New("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = client
		a.Publisher = handeye.NewPublisher(client.GetClient())
		if cfg.MQTT.PublishPrefix != "" {
			a.Publisher.SetPrefix(cfg.MQTT.PublishPrefix)
		}
		a.Runner.SetPublisher(a.Publisher)
		fmt.Fprintln(a.Out, "MQTT result publisher initialized")
	}

	if cfg.Inputs.FileA != "" || cfg.Inputs.URLA != "" {
		go a.initialRun(cfg)
	}

	var server *http.Server
	if a.opts.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.HTTPPort()),
			Handler:           newHTTPServer(a.Runner),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

// initialRun solves the configured inputs once at startup.
func (a *App) initialRun(cfg *handeye.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	poseA, poseB, err := handeye.LoadPoseSource(ctx, cfg.Inputs)
	if err != nil {
		log.Printf("[SOLVE] initial inputs not loaded: %v", err)
		a.Store.SetError(err)
		return
	}
	if _, err := a.Runner.Run(ctx, poseA, poseB, cfg.MethodList()); err != nil {
		log.Printf("[SOLVE] initial run failed: %v", err)
	}
}

func (a *App) printServiceInfo(cfg *handeye.Config) {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.opts.MqttMode {
		prefix := cfg.MQTT.PublishPrefix
		if prefix == "" {
			prefix = "handeye"
		}
		fmt.Fprintln(a.Out, "\nMQTT:")
		if cfg.MQTT.RequestTopic != "" {
			fmt.Fprintf(a.Out, "  Job requests: %s\n", cfg.MQTT.RequestTopic)
		}
		fmt.Fprintf(a.Out, "  Publishing to: %s/{method}\n", prefix)
		fmt.Fprintf(a.Out, "  Combined results: %s/results\n", prefix)
	}

	if a.opts.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", cfg.HTTPPort())
		fmt.Fprintln(a.Out, "  GET  /health          - Health check")
		fmt.Fprintln(a.Out, "  GET  /methods         - Available methods")
		fmt.Fprintln(a.Out, "  GET  /results         - Latest results (JSON)")
		fmt.Fprintln(a.Out, "  GET  /report.txt      - Latest results (tables)")
		fmt.Fprintln(a.Out, "  POST /calibrate       - Solve a job {\"a\": [...], \"b\": [...], \"methods\": [...]}")
		fmt.Fprintln(a.Out, "  GET  /trajectory.svg  - Measured and predicted trajectories")
		fmt.Fprintln(a.Out, "  GET  /errors.png      - Error chart")
		fmt.Fprintln(a.Out, "  GET  /residuals.png   - Per-pose translation residuals")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}
