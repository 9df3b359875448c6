package material

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// BSDFFlags describes the lobes a scattering function exposes
type BSDFFlags uint32

const (
	// Null marks an index-matched boundary that lets the ray continue unchanged
	Null BSDFFlags = 1 << iota
	// DiffuseReflection is a smooth lobe that emitter sampling can reach
	DiffuseReflection
	// DeltaReflection is an ideal mirror lobe
	DeltaReflection
)

// Delta matches every lobe described by a Dirac distribution
const Delta = Null | DeltaReflection

// Has reports whether any of the given flags are set
func (f BSDFFlags) Has(flag BSDFFlags) bool {
	return f&flag != 0
}

// BSDF is the surface scattering function consumed by the estimator.
// Eval and Sample follow the projected convention: values include the cosine term.
type BSDF interface {
	Flags() BSDFFlags

	// Sample draws an outgoing direction; Weight is eval/pdf for the sampled lobe
	Sample(si *SurfaceInteraction, sample1 float64, sample2 core.Vec2) (BSDFSample, bool)

	// Eval returns f(wi, wo)·cos(θo) for smooth lobes; delta lobes evaluate to zero
	Eval(si *SurfaceInteraction, wo core.Vec3) float64

	// PDF returns the solid angle density of sampling wo; zero for delta lobes
	PDF(si *SurfaceInteraction, wo core.Vec3) float64
}

// BSDFSample is the result of sampling a BSDF
type BSDFSample struct {
	Direction   core.Vec3 // Outgoing direction in world space
	PDF         float64   // Solid angle density (1 for delta lobes)
	SampledType BSDFFlags // Lobe that produced the sample
	Weight      float64   // eval/pdf, the throughput multiplier
}

// Emitter is implemented by sound sources that can be hit by rays
type Emitter interface {
	// Eval returns the emitted energy toward the ray that produced si
	Eval(si *SurfaceInteraction) float64
}

// SurfaceInteraction contains information about a ray-object intersection
type SurfaceInteraction struct {
	Point     core.Vec3 // Point of intersection
	Normal    core.Vec3 // Surface normal, flipped to face the incoming ray
	Wi        core.Vec3 // Unit direction back toward the ray origin
	T         float64   // Parameter t along the ray
	FrontFace bool      // Whether ray hit the front face
	Frequency float64   // Frequency carried by the ray (Hz)
	Material  BSDF      // Scattering function of the hit surface
	Emitter   Emitter   // Non-nil when the hit surface is a sound source
}

// SetFaceNormal sets the normal vector and determines front/back face
func (si *SurfaceInteraction) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	si.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if si.FrontFace {
		si.Normal = outwardNormal
	} else {
		si.Normal = outwardNormal.Negate()
	}
	si.Wi = ray.Direction.Normalize().Negate()
}

// IsValid reports whether the interaction describes an actual hit
func (si *SurfaceInteraction) IsValid() bool {
	return si != nil && si.T > 0
}

// SpawnRay starts a new ray at the interaction point
func (si *SurfaceInteraction) SpawnRay(direction core.Vec3) core.Ray {
	return core.NewRay(si.Point, direction)
}
