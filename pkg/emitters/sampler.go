package emitters

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// UniformSampler picks every emitter with equal probability
type UniformSampler struct {
	emitters []Emitter
}

// NewUniformSampler creates a sampler over the given emitters
func NewUniformSampler(emitters []Emitter) *UniformSampler {
	return &UniformSampler{emitters: emitters}
}

// Count returns the number of emitters in this sampler
func (us *UniformSampler) Count() int {
	return len(us.emitters)
}

// Probability returns the selection probability of any single emitter
func (us *UniformSampler) Probability() float64 {
	if len(us.emitters) == 0 {
		return 0.0
	}
	return 1.0 / float64(len(us.emitters))
}

// Select picks an emitter with u in [0,1) and returns the remapped sample value
func (us *UniformSampler) Select(u float64) (Emitter, float64, float64) {
	n := len(us.emitters)
	if n == 0 {
		return nil, 0.0, u
	}
	scaled := u * float64(n)
	index := int(scaled)
	if index >= n {
		index = n - 1
	}
	return us.emitters[index], 1.0 / float64(n), scaled - float64(index)
}

// SampleDirection selects an emitter and samples a direction toward it.
// PDF and weight include the selection probability.
func (us *UniformSampler) SampleDirection(ref *material.SurfaceInteraction, sample core.Vec2) (DirectionSample, float64) {
	emitter, selectionPdf, remapped := us.Select(sample.X)
	if emitter == nil {
		return DirectionSample{}, 0.0
	}

	ds, weight := emitter.SampleDirection(ref, core.NewVec2(remapped, sample.Y))
	ds.PDF *= selectionPdf
	if selectionPdf > 0 {
		weight /= selectionPdf
	}
	return ds, weight
}

// PDFDirection returns the combined density of selecting ds.Emitter and sampling ds
func (us *UniformSampler) PDFDirection(ref *material.SurfaceInteraction, ds DirectionSample) float64 {
	if ds.Emitter == nil {
		return 0.0
	}
	return ds.Emitter.PDFDirection(ref, ds) * us.Probability()
}
