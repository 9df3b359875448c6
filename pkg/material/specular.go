package material

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Specular is an ideal acoustic mirror whose reflectance is 1 - absorption(f)
type Specular struct {
	Absorption Spectrum
}

// NewSpecular creates a mirror-like wall with the given absorption spectrum
func NewSpecular(absorption Spectrum) *Specular {
	return &Specular{Absorption: absorption}
}

// Flags implements BSDF
func (s *Specular) Flags() BSDFFlags {
	return DeltaReflection
}

// Sample implements BSDF. Only the front side reflects.
func (s *Specular) Sample(si *SurfaceInteraction, sample1 float64, sample2 core.Vec2) (BSDFSample, bool) {
	if !si.FrontFace || si.Wi.Dot(si.Normal) <= 0 {
		return BSDFSample{}, false
	}

	return BSDFSample{
		Direction:   si.Wi.Negate().Reflect(si.Normal),
		PDF:         1,
		SampledType: DeltaReflection,
		Weight:      Reflectance(s.Absorption, si.Frequency),
	}, true
}

// Eval implements BSDF; a delta lobe has no finite value
func (s *Specular) Eval(si *SurfaceInteraction, wo core.Vec3) float64 {
	return 0
}

// PDF implements BSDF
func (s *Specular) PDF(si *SurfaceInteraction, wo core.Vec3) float64 {
	return 0
}
