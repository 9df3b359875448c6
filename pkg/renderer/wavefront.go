package renderer

import (
	"context"
	"time"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/histogram"
	"github.com/df07/go-acoustic-raytracer/pkg/integrator"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
	"github.com/google/uuid"
)

// RenderWavefront traces each pass as one flat lane batch covering every
// band, slot and sample, on the calling goroutine. Cancellation is observed
// between passes. Microphone rays use the same (band, pass, slot) seeds as
// Render, but scattering draws from one sampler per pass, so the two paths
// agree in expectation rather than bit for bit.
func (ti *TimeDependentIntegrator) RenderWavefront(ctx context.Context, scene integrator.Scene, mic *sensor.Microphone, tape *film.Tape) (RenderResult, error) {
	ti.setState(StateConfiguring)
	result := RenderResult{RunID: uuid.NewString()}
	if err := ti.checkFilm(mic, tape); err != nil {
		ti.setState(StateIdle)
		return result, err
	}

	ctx, release := ti.begin(ctx)
	defer release()
	start := time.Now()

	timeSteps := ti.config.Integrator.TimeSteps
	bands := mic.BandCount()
	passes := ti.config.Passes()
	perPass := ti.config.EffectiveSamplesPerPass()

	result.Stats = RenderStats{
		Bands:        bands,
		Passes:       passes,
		TotalTasks:   passes,
		PathsPerBand: timeSteps * ti.config.SamplesPerPixel,
	}
	ti.resetProgress(result.RunID, passes)
	ti.logger.Printf("Starting wavefront render job %s (%d time steps x %d bands, %d lanes per pass)\n",
		result.RunID, timeSteps, bands, bands*timeSteps*perPass)

	hist, err := histogram.New(timeSteps, bands, 1, histogram.WithFilter(ti.config.Filter))
	if err != nil {
		ti.setState(StateIdle)
		return result, err
	}

	rays := make([]integrator.AcousticRay, bands*timeSteps*perPass)
	active := histogram.NewMask(len(rays), true)
	raySampler := core.NewSeededSampler(0)
	traceSampler := core.NewSeededSampler(0)

	for pass := 0; pass < passes; pass++ {
		if ti.stopped() {
			break
		}
		ti.setState(StateDispatching)

		lane := 0
		for band := 0; band < bands; band++ {
			frequency := mic.Frequency(band)
			for slot := 0; slot < timeSteps; slot++ {
				raySampler.Seed(core.MixSeed(band, pass, slot))
				for j := 0; j < perPass; j++ {
					rays[lane] = integrator.AcousticRay{
						Ray:       mic.SampleRay(raySampler.Get2D()),
						Band:      band,
						Frequency: frequency,
					}
					lane++
				}
			}
		}

		ti.setState(StateWaitingForWorkers)
		traceSampler.Seed(core.MixSeed(-1, pass))
		valid := ti.estimator.TraceAcousticRays(scene, traceSampler, rays, hist, active)
		result.Stats.Paths += len(rays)
		result.Stats.ValidPaths += valid.Count()
		result.Stats.CompletedTasks++
		ti.completeTask(bands-1, pass)
	}

	result.Stats.Cancelled = result.Stats.CompletedTasks < passes

	ti.setState(StateMerging)
	if err := tape.Put(hist); err != nil {
		ti.setState(StateIdle)
		return result, err
	}
	return result, ti.finish(ctx, &result.Stats, start)
}
