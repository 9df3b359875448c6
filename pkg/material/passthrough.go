package material

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// PassThrough is the boundary of a sound source: rays cross it unchanged.
type PassThrough struct{}

// NewPassThrough creates a transparent boundary
func NewPassThrough() *PassThrough {
	return &PassThrough{}
}

// Flags implements BSDF
func (p *PassThrough) Flags() BSDFFlags {
	return Null
}

// Sample implements BSDF
func (p *PassThrough) Sample(si *SurfaceInteraction, sample1 float64, sample2 core.Vec2) (BSDFSample, bool) {
	return BSDFSample{
		Direction:   si.Wi.Negate(),
		PDF:         1,
		SampledType: Null,
		Weight:      1,
	}, true
}

// Eval implements BSDF
func (p *PassThrough) Eval(si *SurfaceInteraction, wo core.Vec3) float64 {
	return 0
}

// PDF implements BSDF
func (p *PassThrough) PDF(si *SurfaceInteraction, wo core.Vec3) float64 {
	return 0
}
