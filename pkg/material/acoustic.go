package material

import (
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Acoustic mixes a specular and a diffuse lobe by a frequency-dependent
// scattering coefficient: 0 reflects like a mirror, 1 scatters like Lambert.
type Acoustic struct {
	Absorption Spectrum
	Scattering Spectrum

	specular *Specular
	diffuse  *Diffuse
}

// NewAcoustic creates a wall material from absorption and scattering spectra
func NewAcoustic(absorption, scattering Spectrum) *Acoustic {
	return &Acoustic{
		Absorption: absorption,
		Scattering: scattering,
		specular:   NewSpecular(absorption),
		diffuse:    NewDiffuse(absorption),
	}
}

func (a *Acoustic) scattering(frequency float64) float64 {
	if a.Scattering == nil {
		return 0
	}
	return math.Max(0, math.Min(1, a.Scattering.Eval(frequency)))
}

// Flags implements BSDF
func (a *Acoustic) Flags() BSDFFlags {
	return DeltaReflection | DiffuseReflection
}

// Sample implements BSDF by picking a lobe with probability given by the scattering coefficient
func (a *Acoustic) Sample(si *SurfaceInteraction, sample1 float64, sample2 core.Vec2) (BSDFSample, bool) {
	s := a.scattering(si.Frequency)

	if sample1 < s {
		bs, ok := a.diffuse.Sample(si, sample1, sample2)
		if !ok {
			return BSDFSample{}, false
		}
		// the selection probability cancels against the lobe weight
		bs.PDF *= s
		return bs, true
	}

	bs, ok := a.specular.Sample(si, sample1, sample2)
	if !ok {
		return BSDFSample{}, false
	}
	bs.PDF = 1 - s
	return bs, true
}

// Eval implements BSDF; only the diffuse share has a finite value
func (a *Acoustic) Eval(si *SurfaceInteraction, wo core.Vec3) float64 {
	return a.scattering(si.Frequency) * a.diffuse.Eval(si, wo)
}

// PDF implements BSDF
func (a *Acoustic) PDF(si *SurfaceInteraction, wo core.Vec3) float64 {
	return a.scattering(si.Frequency) * a.diffuse.PDF(si, wo)
}
