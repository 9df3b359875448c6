package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/histogram"
	"github.com/df07/go-acoustic-raytracer/pkg/integrator"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
	"github.com/google/uuid"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// State is the phase of a render invocation
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateDispatching
	StateWaitingForWorkers
	StateMerging
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateDispatching:
		return "dispatching"
	case StateWaitingForWorkers:
		return "waiting for workers"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TimeDependentIntegrator drives an acoustic estimator over every
// (band, pass) pair and merges the results into a film tape
type TimeDependentIntegrator struct {
	config    RenderConfig
	estimator integrator.AcousticIntegrator
	logger    core.Logger

	state atomic.Int32
	stop  atomic.Bool

	progressMu sync.Mutex
	progress   Progress
	onProgress func(Progress)
}

// NewTimeDependentIntegrator validates config and wraps the estimator
func NewTimeDependentIntegrator(config RenderConfig, estimator integrator.AcousticIntegrator, logger core.Logger) (*TimeDependentIntegrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil {
		return nil, fmt.Errorf("%w: no estimator given", core.ErrConfig)
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &TimeDependentIntegrator{
		config:    config,
		estimator: estimator,
		logger:    logger,
	}, nil
}

// NewAcousticRenderer creates a render driver around the acoustic path estimator
func NewAcousticRenderer(config RenderConfig, logger core.Logger) (*TimeDependentIntegrator, error) {
	estimator, err := integrator.NewAcousticPathIntegrator(config.Integrator)
	if err != nil {
		return nil, err
	}
	return NewTimeDependentIntegrator(config, estimator, logger)
}

// Config returns the render configuration
func (ti *TimeDependentIntegrator) Config() RenderConfig {
	return ti.config
}

// State returns the current render phase
func (ti *TimeDependentIntegrator) State() State {
	return State(ti.state.Load())
}

func (ti *TimeDependentIntegrator) setState(s State) {
	ti.state.Store(int32(s))
}

// SetProgressCallback registers fn to run after every completed task.
// Calls are serialized.
func (ti *TimeDependentIntegrator) SetProgressCallback(fn func(Progress)) {
	ti.progressMu.Lock()
	defer ti.progressMu.Unlock()
	ti.onProgress = fn
}

// Cancel asks a render to stop. Tasks finish their current sample batch and
// what was traced so far is still merged. A Cancel issued while no render is
// running stops the next one before it traces anything.
func (ti *TimeDependentIntegrator) Cancel() {
	ti.stop.Store(true)
}

func (ti *TimeDependentIntegrator) stopped() bool {
	return ti.stop.Load()
}

// checkFilm verifies that the tape matches the microphone and time settings
func (ti *TimeDependentIntegrator) checkFilm(mic *sensor.Microphone, tape *film.Tape) error {
	if mic == nil || tape == nil {
		return fmt.Errorf("%w: render needs a microphone and a film", core.ErrConfig)
	}
	timeSteps, bands := tape.Size()
	if timeSteps != ti.config.Integrator.TimeSteps {
		return fmt.Errorf("%w: film has %d time steps, estimator expects %d", core.ErrConfig, timeSteps, ti.config.Integrator.TimeSteps)
	}
	if bands != mic.BandCount() {
		return fmt.Errorf("%w: film has %d bands, microphone has %d", core.ErrConfig, bands, mic.BandCount())
	}
	if tape.MaxTime() != ti.config.Integrator.MaxTime {
		return fmt.Errorf("%w: film covers %gs, estimator expects %gs", core.ErrConfig, tape.MaxTime(), ti.config.Integrator.MaxTime)
	}
	return nil
}

// begin links cancellation to ctx and the timeout. The returned release
// func clears the stop flag once the render is over, so a Cancel issued
// before the render starts still stops it.
func (ti *TimeDependentIntegrator) begin(ctx context.Context) (context.Context, func()) {
	if ctx.Err() != nil {
		ti.stop.Store(true)
		return ctx, func() { ti.stop.Store(false) }
	}

	cancelTimeout := context.CancelFunc(func() {})
	if ti.config.Timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, ti.config.Timeout)
	}
	fired := make(chan struct{})
	stopAfter := context.AfterFunc(ctx, func() {
		ti.Cancel()
		close(fired)
	})
	return ctx, func() {
		if !stopAfter() {
			<-fired
		}
		cancelTimeout()
		ti.stop.Store(false)
	}
}

// finish records the final state and builds the cancellation error
func (ti *TimeDependentIntegrator) finish(ctx context.Context, stats *RenderStats, start time.Time) error {
	stats.Duration = time.Since(start)
	if stats.Cancelled {
		ti.setState(StateCancelled)
		ti.logger.Printf("Rendering cancelled after %v (%d/%d tasks)\n", stats.Duration, stats.CompletedTasks, stats.TotalTasks)
		if cause := context.Cause(ctx); cause != nil {
			return fmt.Errorf("%w: %w", core.ErrCancelled, cause)
		}
		return core.ErrCancelled
	}

	ti.setState(StateDone)
	ti.logger.Printf("Rendering finished. (took %v)\n", stats.Duration)
	return nil
}

// Render traces every band of mic into tape using a pool of workers, one
// task per (band, pass). A cancelled render returns its partial statistics
// together with an error wrapping core.ErrCancelled.
func (ti *TimeDependentIntegrator) Render(ctx context.Context, scene integrator.Scene, mic *sensor.Microphone, tape *film.Tape) (RenderResult, error) {
	ti.setState(StateConfiguring)
	result := RenderResult{RunID: uuid.NewString()}
	if err := ti.checkFilm(mic, tape); err != nil {
		ti.setState(StateIdle)
		return result, err
	}

	ctx, release := ti.begin(ctx)
	defer release()
	start := time.Now()

	passes := ti.config.Passes()
	bands := mic.BandCount()
	totalTasks := bands * passes
	numWorkers := ti.config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, totalTasks)

	result.Stats = RenderStats{
		Bands:        bands,
		Passes:       passes,
		TotalTasks:   totalTasks,
		PathsPerBand: ti.config.Integrator.TimeSteps * ti.config.SamplesPerPixel,
	}
	ti.resetProgress(result.RunID, totalTasks)

	ti.logger.Printf("Starting render job %s (%d time steps x %d bands, %d sample%s,%s %d worker%s)\n",
		result.RunID, ti.config.Integrator.TimeSteps, bands,
		ti.config.SamplesPerPixel, plural(ti.config.SamplesPerPixel),
		passesNote(passes), numWorkers, plural(numWorkers))

	ti.setState(StateDispatching)
	pool := NewWorkerPool(ti, scene, mic, tape, numWorkers, totalTasks)
	pool.Start()
	for i := 0; i < totalTasks; i++ {
		pool.SubmitTask(BandTask{
			TaskID: i,
			Band:   i / passes,
			Pass:   i % passes,
		})
	}

	ti.setState(StateWaitingForWorkers)
	pool.Stop()

	ti.setState(StateMerging)
	var errs []error
	var total BandStats
	for {
		res, ok := pool.GetResult()
		if !ok {
			break
		}
		if res.Error != nil {
			errs = append(errs, fmt.Errorf("band %d pass %d: %w", res.Band, res.Pass, res.Error))
			continue
		}
		total.Add(res.Stats)
		if !res.Skipped && !res.Stats.Cancelled {
			result.Stats.CompletedTasks++
		}
	}
	result.Stats.Paths = total.Paths
	result.Stats.ValidPaths = total.ValidPaths
	result.Stats.Cancelled = total.Cancelled || result.Stats.CompletedTasks < totalTasks && ti.stopped()

	if err := errors.Join(errs...); err != nil {
		ti.setState(StateIdle)
		return result, err
	}
	return result, ti.finish(ctx, &result.Stats, start)
}

// newBandHistogram allocates the task-local buffer for one band: the full
// time axis, a single frequency column placed at the band
func (ti *TimeDependentIntegrator) newBandHistogram(band int) (*histogram.Histogram, error) {
	hist, err := histogram.New(ti.config.Integrator.TimeSteps, 1, 1,
		histogram.WithOffset(0, band),
		histogram.WithFilter(ti.config.Filter))
	if err != nil {
		return nil, err
	}
	hist.Clear()
	return hist, nil
}

// RenderBand traces one pass of a band into hist. For every time-step slot
// the sampler is reseeded from (band, pass, slot) and SamplesPerPass
// microphone rays are traced as one lane batch, so the result does not
// depend on which worker runs the task.
func (ti *TimeDependentIntegrator) RenderBand(scene integrator.Scene, mic *sensor.Microphone, sampler core.ReseedableSampler, hist *histogram.Histogram, band, pass int) BandStats {
	var stats BandStats
	perPass := ti.config.EffectiveSamplesPerPass()
	frequency := mic.Frequency(band)

	rays := make([]integrator.AcousticRay, perPass)
	active := histogram.NewMask(perPass, true)

	for slot := 0; slot < ti.config.Integrator.TimeSteps; slot++ {
		if ti.stopped() {
			stats.Cancelled = true
			return stats
		}

		sampler.Seed(core.MixSeed(band, pass, slot))
		for j := range rays {
			rays[j] = integrator.AcousticRay{
				Ray:       mic.SampleRay(sampler.Get2D()),
				Band:      band,
				Frequency: frequency,
			}
		}

		valid := ti.estimator.TraceAcousticRays(scene, sampler, rays, hist, active)
		stats.Paths += len(rays)
		stats.ValidPaths += valid.Count()
	}
	return stats
}

func (ti *TimeDependentIntegrator) resetProgress(runID string, totalTasks int) {
	ti.progressMu.Lock()
	defer ti.progressMu.Unlock()
	ti.progress = Progress{RunID: runID, TotalTasks: totalTasks}
}

// completeTask bumps the shared progress counter and notifies the callback
func (ti *TimeDependentIntegrator) completeTask(band, pass int) {
	ti.progressMu.Lock()
	defer ti.progressMu.Unlock()
	ti.progress.TasksDone++
	ti.progress.Band = band
	ti.progress.Pass = pass
	if ti.onProgress != nil {
		ti.onProgress(ti.progress)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func passesNote(passes int) string {
	if passes <= 1 {
		return ""
	}
	return fmt.Sprintf(" %d passes,", passes)
}
