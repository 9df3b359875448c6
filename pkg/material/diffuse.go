package material

import (
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Diffuse represents a Lambertian scattering wall
type Diffuse struct {
	Absorption Spectrum
}

// NewDiffuse creates a diffuse wall with the given absorption spectrum
func NewDiffuse(absorption Spectrum) *Diffuse {
	return &Diffuse{Absorption: absorption}
}

// Flags implements BSDF
func (d *Diffuse) Flags() BSDFFlags {
	return DiffuseReflection
}

// Sample implements BSDF with cosine-weighted hemisphere sampling
func (d *Diffuse) Sample(si *SurfaceInteraction, sample1 float64, sample2 core.Vec2) (BSDFSample, bool) {
	if !si.FrontFace {
		return BSDFSample{}, false
	}

	direction := core.SampleCosineHemisphere(si.Normal, sample2)
	pdf := core.CosineHemispherePDF(direction.Dot(si.Normal))
	if pdf <= 0 {
		return BSDFSample{}, false
	}

	// (R/π · cos) / (cos/π) = R
	return BSDFSample{
		Direction:   direction,
		PDF:         pdf,
		SampledType: DiffuseReflection,
		Weight:      Reflectance(d.Absorption, si.Frequency),
	}, true
}

// Eval implements BSDF
func (d *Diffuse) Eval(si *SurfaceInteraction, wo core.Vec3) float64 {
	cosTheta := wo.Dot(si.Normal)
	if !si.FrontFace || cosTheta <= 0 {
		return 0
	}
	return Reflectance(d.Absorption, si.Frequency) / math.Pi * cosTheta
}

// PDF implements BSDF
func (d *Diffuse) PDF(si *SurfaceInteraction, wo core.Vec3) float64 {
	if !si.FrontFace {
		return 0
	}
	return core.CosineHemispherePDF(wo.Dot(si.Normal))
}
