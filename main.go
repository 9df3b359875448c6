package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-acoustic-raytracer/pkg/analysis"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
	"github.com/df07/go-acoustic-raytracer/pkg/loaders"
	"github.com/df07/go-acoustic-raytracer/pkg/renderer"
	"github.com/df07/go-acoustic-raytracer/pkg/scene"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

// options holds the parsed command line
type options struct {
	scene        string
	room         string
	spp          int
	sppPass      int
	timeSteps    int
	maxTime      float64
	maxDepth     int
	rrDepth      int
	octave       int
	fmin, fmax   float64
	workers      int
	timeout      time.Duration
	wavefront    bool
	hideEmitters bool
	filter       string
	out          string
	help         bool

	set map[string]bool // Flags given explicitly
}

func parseOptions(args []string, output io.Writer) (options, error) {
	defaults := renderer.DefaultRenderConfig()
	var opts options

	fs := flag.NewFlagSet("acoustic-raytracer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.scene, "scene", "shoebox", "Built-in scene id, 'room:<name>' below the scenes directory, or a room file path")
	fs.StringVar(&opts.room, "room", "", "Room description file (.json, .yaml); overrides -scene")
	fs.IntVar(&opts.spp, "spp", defaults.SamplesPerPixel, "Paths per time step and band")
	fs.IntVar(&opts.sppPass, "spp-pass", defaults.SamplesPerPass, "Paths per time step and band in one pass (0 = single pass)")
	fs.IntVar(&opts.timeSteps, "time-steps", defaults.Integrator.TimeSteps, "Number of time bins")
	fs.Float64Var(&opts.maxTime, "max-time", defaults.Integrator.MaxTime, "Duration covered by the histogram in seconds")
	fs.IntVar(&opts.maxDepth, "max-depth", defaults.Integrator.MaxDepth, "Maximum number of bounces (-1 = unlimited)")
	fs.IntVar(&opts.rrDepth, "rr-depth", defaults.Integrator.RRDepth, "Depth at which Russian roulette starts")
	fs.IntVar(&opts.octave, "octave", 0, "Use 1/N octave bands between -fmin and -fmax instead of the scene frequencies")
	fs.Float64Var(&opts.fmin, "fmin", 100, "Lowest frequency of the octave bands in Hz")
	fs.Float64Var(&opts.fmax, "fmax", 5000, "Highest frequency of the octave bands in Hz")
	fs.IntVar(&opts.workers, "workers", 0, "Number of parallel workers (0 = CPU count)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Stop the render after this long and keep the partial result (0 = none)")
	fs.BoolVar(&opts.wavefront, "wavefront", false, "Trace each pass as one lane batch on a single goroutine")
	fs.BoolVar(&opts.hideEmitters, "hide-emitters", false, "Do not record sources seen directly from the microphone")
	fs.StringVar(&opts.filter, "filter", "", "Time reconstruction filter: none, box, tent, gaussian, hann")
	fs.StringVar(&opts.out, "out", "", "Output file (.csv, .csv.xz or .xlsx); defaults to output/<scene>/tape_<run>.csv.xz")
	fs.BoolVar(&opts.help, "help", false, "Show help information")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.help {
		fmt.Fprintln(output, "Acoustic Raytracer")
		fmt.Fprintln(output, "Usage: acoustic-raytracer [options]")
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Available scenes:")
		for _, info := range scene.BuiltinSceneInfos() {
			fmt.Fprintf(output, "  %-12s %s\n", info.ID, info.Description)
		}
	}
	return opts, nil
}

// createScene resolves -room or -scene. The room description is nil for built-in scenes.
func createScene(opts options) (*scene.Scene, *loaders.RoomDescription, error) {
	if opts.room != "" {
		return scene.NewRoomScene(opts.room)
	}
	if opts.scene == "" {
		return nil, nil, fmt.Errorf("%w: no scene given", core.ErrConfig)
	}

	if strings.HasPrefix(opts.scene, "room:") {
		path, err := scene.ResolveRoom(opts.scene, scene.FindScenesDir())
		if err != nil {
			return nil, nil, err
		}
		return scene.NewRoomScene(path)
	}
	if _, err := loaders.FormatFromPath(opts.scene); err == nil {
		return scene.NewRoomScene(opts.scene)
	}

	s, err := scene.NewBuiltinScene(opts.scene)
	return s, nil, err
}

// buildRenderConfig merges defaults, the room's render block and explicit flags, in that order
func buildRenderConfig(opts options, desc *loaders.RoomDescription) (renderer.RenderConfig, error) {
	config := renderer.DefaultRenderConfig()
	config.NumWorkers = opts.workers
	config.Timeout = opts.timeout
	config.Integrator.RRDepth = opts.rrDepth
	config.Integrator.HideEmitters = opts.hideEmitters

	if desc != nil {
		r := desc.Render
		if r.MaxTime > 0 {
			config.Integrator.MaxTime = r.MaxTime
		}
		if r.TimeSteps > 0 {
			config.Integrator.TimeSteps = r.TimeSteps
		}
		if r.SamplesPerPixel > 0 {
			config.SamplesPerPixel = r.SamplesPerPixel
		}
		if r.SamplesPerPass > 0 {
			config.SamplesPerPass = r.SamplesPerPass
		}
		if r.MaxDepth != nil {
			config.Integrator.MaxDepth = *r.MaxDepth
		}
	}

	overrides := map[string]func(){
		"spp":        func() { config.SamplesPerPixel = opts.spp },
		"spp-pass":   func() { config.SamplesPerPass = opts.sppPass },
		"time-steps": func() { config.Integrator.TimeSteps = opts.timeSteps },
		"max-time":   func() { config.Integrator.MaxTime = opts.maxTime },
		"max-depth":  func() { config.Integrator.MaxDepth = opts.maxDepth },
	}
	for name, apply := range overrides {
		if opts.set[name] {
			apply()
		}
	}

	f, err := filter.Parse(opts.filter)
	if err != nil {
		return config, err
	}
	config.Filter = f

	return config, config.Validate()
}

// buildMicrophone returns the scene microphone, or octave bands at its position when -octave is set
func buildMicrophone(s *scene.Scene, opts options) (*sensor.Microphone, error) {
	if opts.octave <= 0 {
		return s.Microphone, nil
	}
	return sensor.NewOctaveMicrophone(s.Microphone.Position, opts.octave, opts.fmin, opts.fmax)
}

// createOutputPath returns -out, or a run-specific file below output/<scene>
func createOutputPath(sceneName, out, runID string) string {
	if out != "" {
		return out
	}
	dir := strings.ToLower(strings.Join(strings.Fields(sceneName), "-"))
	if dir == "" {
		dir = "scene"
	}
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return filepath.Join("output", dir, fmt.Sprintf("tape_%s.csv.xz", runID))
}

// saveTape writes the tape in the format named by the file extension
func saveTape(tape *film.Tape, path string, labels []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return tape.SaveXLSX(path, labels)
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv.xz"):
		return tape.SaveCSV(path)
	default:
		return fmt.Errorf("%w: unsupported output format %q", core.ErrConfig, filepath.Ext(path))
	}
}

func bandLabels(mic *sensor.Microphone) []string {
	labels := make([]string, mic.BandCount())
	for i, f := range mic.Frequencies {
		labels[i] = fmt.Sprintf("%g Hz", f)
	}
	return labels
}

func printMetrics(w io.Writer, metrics []analysis.BandMetrics) {
	fmt.Fprintf(w, "%10s %12s %8s %8s %8s %8s %8s %8s\n", "band", "energy", "EDT", "T20", "T30", "C50", "C80", "D50")
	for _, m := range metrics {
		fmt.Fprintf(w, "%7.0f Hz %12.4g %7.3fs %7.3fs %7.3fs %6.1fdB %6.1fdB %8.3f\n",
			m.Frequency, m.Energy, m.EDT, m.T20, m.T30, m.C50, m.C80, m.D50)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseOptions(args, stdout)
	if err != nil || opts.help {
		return err
	}

	fmt.Fprintln(stdout, "Starting Acoustic Raytracer...")

	s, desc, err := createScene(opts)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}
	mic, err := buildMicrophone(s, opts)
	if err != nil {
		return err
	}
	config, err := buildRenderConfig(opts, desc)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Using scene %q (%d primitives, %d sources, %d bands)\n",
		s.Name, s.GetPrimitiveCount(), len(s.Emitters), mic.BandCount())

	tape, err := film.NewTape(config.Integrator.TimeSteps, mic.BandCount(), config.Integrator.MaxTime)
	if err != nil {
		return err
	}
	ti, err := renderer.NewAcousticRenderer(config, renderer.NewDefaultLogger())
	if err != nil {
		return err
	}

	var result renderer.RenderResult
	if opts.wavefront {
		result, err = ti.RenderWavefront(ctx, s, mic, tape)
	} else {
		result, err = ti.Render(ctx, s, mic, tape)
	}
	if err != nil && !errors.Is(err, core.ErrCancelled) {
		return err
	}
	if err != nil {
		fmt.Fprintf(stdout, "Render stopped early: %v\n", err)
	}

	stats := result.Stats
	fmt.Fprintf(stdout, "Render completed in %v\n", stats.Duration)
	fmt.Fprintf(stdout, "Paths: %d (%.1f%% hit the scene), tasks %d/%d\n",
		stats.Paths, 100*stats.ValidFraction(), stats.CompletedTasks, stats.TotalTasks)

	metrics, err := analysis.AnalyzeTape(tape, mic.Frequencies)
	printMetrics(stdout, metrics)
	if err != nil {
		fmt.Fprintf(stdout, "Warning: %v\n", err)
	}

	filename := createOutputPath(s.Name, opts.out, result.RunID)
	if err := saveTape(tape, filename, bandLabels(mic)); err != nil {
		return fmt.Errorf("failed to save tape: %w", err)
	}
	fmt.Fprintf(stdout, "Tape saved as %s\n", filename)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
