package emitters

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

type EmitterType string

const (
	EmitterTypeArea  EmitterType = "area"
	EmitterTypePoint EmitterType = "point"
)

// Emitter is a sound source that can be sampled from a surface interaction
type Emitter interface {
	material.Emitter

	Type() EmitterType

	// SampleDirection samples a direction from ref toward the source.
	// The returned weight is Le/pdf; zero when the sample is unusable.
	SampleDirection(ref *material.SurfaceInteraction, sample core.Vec2) (DirectionSample, float64)

	// PDFDirection returns the solid angle density SampleDirection assigns to ds
	PDFDirection(ref *material.SurfaceInteraction, ds DirectionSample) float64

	// IsDelta reports whether the source is described by a Dirac distribution
	IsDelta() bool
}

// DirectionSample describes a direction from a reference point toward an emitter
type DirectionSample struct {
	Point     core.Vec3 // Point on the emitter
	Normal    core.Vec3 // Outward emitter normal at Point
	Direction core.Vec3 // Unit direction from the reference point to Point
	Distance  float64   // Distance from the reference point to Point
	PDF       float64   // Solid angle density, including emitter selection
	Delta     bool      // Sampled from a delta emitter
	Emitter   Emitter   // Emitter that produced or was hit by the sample
}

// NewDirectionSample builds the record for a ray from ref that hit an emitter surface at si
func NewDirectionSample(ref, si *material.SurfaceInteraction) DirectionSample {
	toHit := si.Point.Subtract(ref.Point)
	normal := si.Normal
	if !si.FrontFace {
		normal = normal.Negate()
	}
	ds := DirectionSample{
		Point:     si.Point,
		Normal:    normal,
		Direction: toHit.Normalize(),
		Distance:  toHit.Length(),
	}
	if e, ok := si.Emitter.(Emitter); ok {
		ds.Emitter = e
		ds.Delta = e.IsDelta()
	}
	return ds
}
