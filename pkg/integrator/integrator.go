package integrator

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/emitters"
	"github.com/df07/go-acoustic-raytracer/pkg/histogram"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// Scene is the view of the scene the estimators need
type Scene interface {
	// Intersect returns the closest hit along ray
	Intersect(ray core.Ray) (*material.SurfaceInteraction, bool)

	// SampleEmitterDirection picks an emitter and samples a visible direction toward it.
	// The weight is zero when the sample is occluded or unusable.
	SampleEmitterDirection(ref *material.SurfaceInteraction, sample core.Vec2) (emitters.DirectionSample, float64)

	// PDFEmitterDirection returns the density of SampleEmitterDirection producing ds
	PDFEmitterDirection(ref *material.SurfaceInteraction, ds emitters.DirectionSample) float64
}

// AcousticRay is one lane of an acoustic trace: a microphone ray tagged with its band
type AcousticRay struct {
	Ray       core.Ray
	Band      int     // Frequency column the lane records into
	Frequency float64 // Frequency used to evaluate materials and emitters (Hz)
}

// AcousticIntegrator defines the interface for time dependent transport estimators
type AcousticIntegrator interface {
	// TraceAcousticRays walks every active lane and records arrivals into hist.
	// Returns the lanes whose first intersection was valid.
	TraceAcousticRays(scene Scene, sampler core.Sampler, rays []AcousticRay, hist *histogram.Histogram, active histogram.Mask) histogram.Mask

	// Sample is the generic single-value entry point of a sampling integrator
	Sample(scene Scene, sampler core.Sampler, ray core.Ray) (float64, error)

	Config() Config
}
