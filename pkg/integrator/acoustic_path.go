package integrator

import (
	"fmt"
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/emitters"
	"github.com/df07/go-acoustic-raytracer/pkg/histogram"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// AcousticPathIntegrator traces microphone rays through the scene and records
// every arrival at a sound source into a time histogram. Direct hits and
// emitter sampling are combined with multiple importance sampling.
type AcousticPathIntegrator struct {
	config Config
}

// NewAcousticPathIntegrator creates a path estimator after validating config
func NewAcousticPathIntegrator(config Config) (*AcousticPathIntegrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AcousticPathIntegrator{config: config}, nil
}

// Config returns the estimator settings
func (ap *AcousticPathIntegrator) Config() Config {
	return ap.config
}

// lane is the state of one path during a trace
type lane struct {
	si         *material.SurfaceInteraction
	band       int
	frequency  float64
	throughput float64
	distance   float64 // Path length travelled since the microphone
	active     bool

	// MIS weight for the emitter hit at si, set by the previous bounce
	emissionWeight float64
	lastEmitter    material.Emitter // Source whose boundary was hit last, nil after any other surface

	// Last scattering vertex. Null crossings leave it unchanged so a source
	// seen through another source is weighted from where the path turned.
	vertex      *material.SurfaceInteraction
	vertexPdf   float64
	vertexDelta bool
}

// Sample is not supported: this estimator only records into histograms
func (ap *AcousticPathIntegrator) Sample(scene Scene, sampler core.Sampler, ray core.Ray) (float64, error) {
	return 0, fmt.Errorf("%w: acoustic path estimator has no single-value sample", core.ErrNotImplemented)
}

// TraceAcousticRay traces one path and reports whether its first intersection was valid
func (ap *AcousticPathIntegrator) TraceAcousticRay(scene Scene, sampler core.Sampler, ray AcousticRay, hist *histogram.Histogram) bool {
	valid := ap.TraceAcousticRays(scene, sampler, []AcousticRay{ray}, hist, histogram.Mask{true})
	return valid[0]
}

// TraceAcousticRays advances all active lanes one bounce at a time until the
// depth limit is reached or every lane has terminated. Lanes that miss the
// scene or lose all their energy are dropped silently.
func (ap *AcousticPathIntegrator) TraceAcousticRays(scene Scene, sampler core.Sampler, rays []AcousticRay, hist *histogram.Histogram, active histogram.Mask) histogram.Mask {
	valid := make(histogram.Mask, len(rays))
	lanes := make([]lane, len(rays))

	for i, r := range rays {
		l := &lanes[i]
		l.band = r.Band
		l.frequency = r.Frequency
		l.throughput = 1.0
		l.emissionWeight = 1.0
		if i >= len(active) || !active[i] {
			continue
		}
		l.si = ap.intersect(scene, r.Ray, r.Frequency)
		l.active = true
		valid[i] = l.si != nil
	}

	for depth := 1; ; depth++ {
		anyActive := false
		for i := range lanes {
			l := &lanes[i]
			if !l.active {
				continue
			}
			if l.si == nil {
				l.active = false
				continue
			}

			l.distance += l.si.T

			// Entering a source counts; leaving the same source again does not
			if e := l.si.Emitter; e != nil {
				leaving := e == l.lastEmitter && !l.si.FrontFace
				direct := l.vertex == nil
				if !leaving && !(ap.config.HideEmitters && direct) {
					ap.record(hist, l, l.distance, l.emissionWeight*l.throughput*e.Eval(l.si))
				}
				l.lastEmitter = e
			} else {
				l.lastEmitter = nil
			}

			// Every later arrival would land past the window
			if ap.config.PastWindow(l.distance) {
				l.active = false
				continue
			}
			anyActive = true
		}

		if ap.config.DepthExceeded(depth) || !anyActive {
			break
		}

		for i := range lanes {
			l := &lanes[i]
			if !l.active {
				continue
			}
			ap.sampleEmitter(scene, sampler, hist, l)
			ap.scatter(scene, sampler, l, depth)
		}
	}

	return valid
}

// sampleEmitter connects a diffuse surface to a randomly chosen source
func (ap *AcousticPathIntegrator) sampleEmitter(scene Scene, sampler core.Sampler, hist *histogram.Histogram, l *lane) {
	bsdf := l.si.Material
	if bsdf == nil || !bsdf.Flags().Has(material.DiffuseReflection) {
		return
	}

	ds, weight := scene.SampleEmitterDirection(l.si, sampler.Get2D())
	if ds.PDF == 0 {
		return
	}

	bsdfValue := bsdf.Eval(l.si, ds.Direction)
	bsdfPdf := bsdf.PDF(l.si, ds.Direction)

	mis := 1.0
	if !ds.Delta {
		mis = core.MISWeight(ds.PDF, bsdfPdf)
	}

	ap.record(hist, l, l.distance+ds.Distance, l.throughput*bsdfValue*mis*weight)
}

// scatter samples the surface response, continues the path and prepares the
// MIS weight for the case where the new ray hits a source directly
func (ap *AcousticPathIntegrator) scatter(scene Scene, sampler core.Sampler, l *lane, depth int) {
	bsdf := l.si.Material
	if bsdf == nil {
		l.active = false
		return
	}

	bs, ok := bsdf.Sample(l.si, sampler.Get1D(), sampler.Get2D())
	if !ok {
		l.active = false
		return
	}

	l.throughput *= bs.Weight
	// Comparisons are false for NaN
	if !(l.throughput > 0) {
		l.active = false
		return
	}

	if depth >= ap.config.RRDepth {
		terminate, compensation := applyRussianRoulette(l.throughput, sampler)
		if terminate {
			l.active = false
			return
		}
		l.throughput *= compensation
	}

	if !bs.SampledType.Has(material.Null) {
		l.vertex = l.si
		l.vertexPdf = bs.PDF
		l.vertexDelta = bs.SampledType.Has(material.DeltaReflection)
	}

	next := ap.intersect(scene, l.si.SpawnRay(bs.Direction), l.frequency)
	if next != nil && next.Emitter != nil {
		l.emissionWeight = ap.emissionWeight(scene, l, next)
	}
	l.si = next
}

// emissionWeight is the MIS weight of reaching the source at hit by scattering
// from the lane's last vertex rather than by emitter sampling there
func (ap *AcousticPathIntegrator) emissionWeight(scene Scene, l *lane, hit *material.SurfaceInteraction) float64 {
	if l.vertex == nil || l.vertexDelta {
		return 1.0
	}
	emitterPdf := scene.PDFEmitterDirection(l.vertex, emitters.NewDirectionSample(l.vertex, hit))
	return core.MISWeight(l.vertexPdf, emitterPdf)
}

// applyRussianRoulette decides whether to terminate a path and returns the
// compensation factor for survivors
func applyRussianRoulette(throughput float64, sampler core.Sampler) (bool, float64) {
	survivalProb := math.Min(0.95, math.Max(0.5, throughput))
	if sampler.Get1D() > survivalProb {
		return true, 0.0
	}
	return false, 1.0 / survivalProb
}

func (ap *AcousticPathIntegrator) intersect(scene Scene, ray core.Ray, frequency float64) *material.SurfaceInteraction {
	si, ok := scene.Intersect(ray)
	if !ok || !si.IsValid() {
		return nil
	}
	si.Frequency = frequency
	return si
}

// record writes one arrival at the time bin matching distance
func (ap *AcousticPathIntegrator) record(hist *histogram.Histogram, l *lane, distance, value float64) {
	pos := core.NewVec2(ap.config.TimeBin(distance), float64(l.band))
	hist.Put(pos, []float64{value}, true)
}
