package emitters

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// PointEmitter is an omnidirectional point source. It cannot be hit by rays.
type PointEmitter struct {
	Position  core.Vec3
	Intensity material.Spectrum
}

// NewPointEmitter creates a new point source
func NewPointEmitter(position core.Vec3, intensity material.Spectrum) *PointEmitter {
	return &PointEmitter{Position: position, Intensity: intensity}
}

func (pe *PointEmitter) Type() EmitterType {
	return EmitterTypePoint
}

func (pe *PointEmitter) IsDelta() bool {
	return true
}

// Eval is always zero since no ray can hit a point
func (pe *PointEmitter) Eval(si *material.SurfaceInteraction) float64 {
	return 0.0
}

// SampleDirection returns the single direction toward the source with inverse square falloff
func (pe *PointEmitter) SampleDirection(ref *material.SurfaceInteraction, sample core.Vec2) (DirectionSample, float64) {
	toSource := pe.Position.Subtract(ref.Point)
	distanceSquared := toSource.LengthSquared()
	if distanceSquared == 0 {
		return DirectionSample{}, 0.0
	}
	direction := toSource.Normalize()

	ds := DirectionSample{
		Point:     pe.Position,
		Normal:    direction.Negate(),
		Direction: direction,
		Distance:  toSource.Length(),
		PDF:       1.0,
		Delta:     true,
		Emitter:   pe,
	}
	if pe.Intensity == nil {
		return ds, 0.0
	}
	return ds, pe.Intensity.Eval(ref.Frequency) / distanceSquared
}

// PDFDirection is zero: a delta source is never found by scattering
func (pe *PointEmitter) PDFDirection(ref *material.SurfaceInteraction, ds DirectionSample) float64 {
	return 0.0
}
