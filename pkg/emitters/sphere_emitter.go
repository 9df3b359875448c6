package emitters

import (
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/geometry"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// DefaultBlur is the profile width used by smooth spheres when none is given
const DefaultBlur = 0.1

// SphereEmitter is a spherical sound source. Its surface lets rays pass through
// so a path can enter and leave the source without scattering.
type SphereEmitter struct {
	*geometry.Sphere // Embed sphere for hit testing
	Radiance         material.Spectrum
	Blur             float64 // Width of the smooth angular profile; 0 disables it
}

// NewSphereEmitter creates a spherical emitter with uniform angular emission
func NewSphereEmitter(center core.Vec3, radius float64, radiance material.Spectrum) *SphereEmitter {
	se := &SphereEmitter{
		Sphere:   geometry.NewSphere(center, radius, material.NewPassThrough()),
		Radiance: radiance,
	}
	se.Sphere.Emitter = se
	return se
}

// NewSmoothSphereEmitter creates a spherical emitter whose emission fades to zero at grazing angles
func NewSmoothSphereEmitter(center core.Vec3, radius float64, radiance material.Spectrum, blur float64) *SphereEmitter {
	se := NewSphereEmitter(center, radius, radiance)
	se.Blur = blur
	return se
}

func (se *SphereEmitter) Type() EmitterType {
	return EmitterTypeArea
}

func (se *SphereEmitter) IsDelta() bool {
	return false
}

// Profile maps x = 0.5 - θ/π to an emission scale in [0, 1]
func (se *SphereEmitter) Profile(x float64) float64 {
	if se.Blur <= 0 || x >= se.Blur {
		return 1.0
	}
	return x / se.Blur
}

// Eval returns the energy emitted toward the ray that produced si.
// Only the outside of the sphere emits.
func (se *SphereEmitter) Eval(si *material.SurfaceInteraction) float64 {
	if !si.FrontFace {
		return 0.0
	}
	return se.emitted(si.Wi.Dot(si.Normal), si.Frequency)
}

func (se *SphereEmitter) emitted(cosTheta, frequency float64) float64 {
	if cosTheta <= 0 || se.Radiance == nil {
		return 0.0
	}
	cosTheta = math.Min(cosTheta, 1.0)
	return se.Radiance.Eval(frequency) * se.Profile(0.5-math.Acos(cosTheta)/math.Pi)
}

// SampleDirection samples the cone of directions subtended by the sphere.
// Points inside the sphere fall back to uniform area sampling.
func (se *SphereEmitter) SampleDirection(ref *material.SurfaceInteraction, sample core.Vec2) (DirectionSample, float64) {
	toCenter := se.Center.Subtract(ref.Point)
	distanceToCenter := toCenter.Length()

	var ds DirectionSample
	if distanceToCenter <= se.Radius {
		ds = se.sampleUniform(ref.Point, sample)
	} else {
		ds = se.sampleVisible(ref.Point, toCenter.Multiply(1.0/distanceToCenter), distanceToCenter, sample)
	}
	ds.Emitter = se

	if ds.PDF <= 0 || ds.Direction.Dot(ds.Normal) >= 0 {
		return ds, 0.0
	}
	return ds, se.emitted(-ds.Direction.Dot(ds.Normal), ref.Frequency) / ds.PDF
}

func (se *SphereEmitter) sampleUniform(point core.Vec3, sample core.Vec2) DirectionSample {
	normal := core.SampleOnUnitSphere(sample)
	samplePoint := se.Center.Add(normal.Multiply(se.Radius))

	direction := samplePoint.Subtract(point)
	distance := direction.Length()
	if distance == 0 {
		return DirectionSample{}
	}
	direction = direction.Multiply(1.0 / distance)

	return DirectionSample{
		Point:     samplePoint,
		Normal:    normal,
		Direction: direction,
		Distance:  distance,
		PDF:       se.areaToSolidAngle(distance, math.Abs(direction.Dot(normal))),
	}
}

func (se *SphereEmitter) sampleVisible(point, w core.Vec3, distanceToCenter float64, sample core.Vec2) DirectionSample {
	sinThetaMax := se.Radius / distanceToCenter
	cosThetaMax := math.Sqrt(math.Max(0, 1.0-sinThetaMax*sinThetaMax))

	direction := core.SampleCone(w, cosThetaMax, sample)

	hit, ok := se.Sphere.Hit(core.NewRay(point, direction), 0, math.Inf(1))
	if !ok {
		// Grazing samples can miss due to rounding
		return DirectionSample{}
	}

	return DirectionSample{
		Point:     hit.Point,
		Normal:    hit.Point.Subtract(se.Center).Multiply(1.0 / se.Radius),
		Direction: direction,
		Distance:  hit.T,
		PDF:       core.UniformConePDF(cosThetaMax),
	}
}

// areaToSolidAngle converts the uniform area density to solid angle at ref
func (se *SphereEmitter) areaToSolidAngle(distance, cosTheta float64) float64 {
	if cosTheta <= 0 {
		return 0.0
	}
	area := 4.0 * math.Pi * se.Radius * se.Radius
	return distance * distance / (cosTheta * area)
}

// PDFDirection returns the density of sampling ds from ref
func (se *SphereEmitter) PDFDirection(ref *material.SurfaceInteraction, ds DirectionSample) float64 {
	if ds.Direction.Dot(ds.Normal) >= 0 {
		return 0.0
	}

	distanceToCenter := se.Center.Subtract(ref.Point).Length()
	if distanceToCenter <= se.Radius {
		return se.areaToSolidAngle(ds.Distance, math.Abs(ds.Direction.Dot(ds.Normal)))
	}

	sinThetaMax := se.Radius / distanceToCenter
	cosThetaMax := math.Sqrt(math.Max(0, 1.0-sinThetaMax*sinThetaMax))
	return core.UniformConePDF(cosThetaMax)
}
